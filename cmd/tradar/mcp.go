package main

import (
	"context"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/tradarlab/tradar/internal/config"
	"github.com/tradarlab/tradar/internal/mcp"
	"github.com/tradarlab/tradar/internal/store"
)

func runMCP(args []string) error {
	dbPath := ""
	encoderURL := ""
	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "--db" && i+1 < len(args):
			i++
			dbPath = args[i]
		case args[i] == "--encoder" && i+1 < len(args):
			i++
			encoderURL = args[i]
		default:
			return fmt.Errorf("unknown argument: %s", args[i])
		}
	}

	resolved, err := config.ResolveConfig(config.ResolveOptions{
		CLIDBPath:  dbPath,
		CLIEncoder: encoderURL,
	})
	if err != nil {
		return err
	}

	s, err := store.NewStore(store.StoreConfig{DBPath: resolved.DBPath.Value})
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer s.Close()

	// Without an encoder the server still serves lookup and stats;
	// the search tool reports itself unconfigured.
	p, err := buildPipeline(context.Background(), s, resolved)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v — search tool disabled\n", err)
	}

	srv := mcp.NewServer(mcp.ServerConfig{
		Pipeline: p,
		Store:    s,
		Version:  version,
	})
	return server.ServeStdio(srv)
}
