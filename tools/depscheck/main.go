// Command depscheck fails when a package crosses the layering rules:
// the chat and pong domain packages stay free of transport imports, and the
// wire codec stays free of the websocket library.
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
)

type packageInfo struct {
	ImportPath string
	Imports    []string
}

type rule struct {
	pkgPrefix string
	forbidden []string
}

var rules = []rule{
	{
		pkgPrefix: "croissant/server/internal/chat",
		forbidden: []string{"croissant/server/internal/net", "github.com/gorilla/websocket", "net/http"},
	},
	{
		pkgPrefix: "croissant/server/internal/pong",
		forbidden: []string{"croissant/server/internal/net", "github.com/gorilla/websocket", "net/http"},
	},
	{
		pkgPrefix: "croissant/server/internal/net/proto",
		forbidden: []string{"github.com/gorilla/websocket", "net/http"},
	},
}

func main() {
	cmd := exec.Command("go", "list", "-json", "./internal/...")
	cmd.Env = os.Environ()
	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			os.Stderr.Write(exitErr.Stderr)
		}
		fmt.Fprintf(os.Stderr, "depscheck: failed to list packages: %v\n", err)
		os.Exit(1)
	}

	decoder := json.NewDecoder(bytes.NewReader(output))

	var violations []string
	for {
		var pkg packageInfo
		if err := decoder.Decode(&pkg); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			fmt.Fprintf(os.Stderr, "depscheck: failed to decode package info: %v\n", err)
			os.Exit(1)
		}
		violations = append(violations, check(pkg)...)
	}

	if len(violations) > 0 {
		sort.Strings(violations)
		fmt.Fprintln(os.Stderr, "depscheck: found forbidden imports:")
		for _, violation := range violations {
			fmt.Fprintf(os.Stderr, "  %s\n", violation)
		}
		os.Exit(1)
	}
}

func check(pkg packageInfo) []string {
	var out []string
	for _, r := range rules {
		if !strings.HasPrefix(pkg.ImportPath, r.pkgPrefix) {
			continue
		}
		for _, imp := range pkg.Imports {
			for _, forbidden := range r.forbidden {
				if imp == forbidden || strings.HasPrefix(imp, forbidden+"/") {
					out = append(out, fmt.Sprintf("%s -> %s", pkg.ImportPath, imp))
				}
			}
		}
	}
	return out
}
