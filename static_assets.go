package server

import (
	"fmt"
	"os"
	"path/filepath"
)

var assetDirNames = []string{"client", "data"}

// ResolveAssetsDir locates the static page directory. An explicit dir wins;
// otherwise client/ or data/ is searched next to the working directory and
// the executable, and one level above each.
func ResolveAssetsDir(dir string) (string, error) {
	if dir != "" {
		info, err := os.Stat(dir)
		if err != nil {
			return "", fmt.Errorf("resolve assets: %w", err)
		}
		if !info.IsDir() {
			return "", fmt.Errorf("resolve assets: %s is not a directory", dir)
		}
		return filepath.Abs(dir)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("resolve assets: %w", err)
	}
	if found, ok := resolveAssetsDirFrom(cwd); ok {
		return found, nil
	}
	exePath, err := os.Executable()
	if err == nil {
		if found, ok := resolveAssetsDirFrom(filepath.Dir(exePath)); ok {
			return found, nil
		}
	}
	return "", fmt.Errorf("assets directory not found")
}

func resolveAssetsDirFrom(base string) (string, bool) {
	var candidates []string
	for _, name := range assetDirNames {
		candidates = append(candidates, filepath.Join(base, name), filepath.Join(base, "..", name))
	}
	for _, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err != nil || !info.IsDir() {
			continue
		}
		abs, err := filepath.Abs(candidate)
		if err != nil {
			continue
		}
		return abs, true
	}
	return "", false
}
