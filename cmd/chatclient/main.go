package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"croissant/server/internal/client"
)

func main() {
	cfg, err := client.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("%v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	conn, err := client.Dial(ctx, cfg.Addr)
	cancel()
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer conn.Close()

	ui, err := client.NewChatUI(conn, client.NewModel(cfg.Initials), cfg.Addr)
	if err != nil {
		log.Fatalf("failed to start terminal UI: %v", err)
	}
	defer ui.Close()

	if err := ui.Run(); err != nil {
		log.Printf("ui stopped: %v", err)
	}
}
