package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/tradarlab/tradar/internal/config"
	"github.com/tradarlab/tradar/internal/store"
)

func runStats(args []string) error {
	dbPath := ""
	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "--db" && i+1 < len(args):
			i++
			dbPath = args[i]
		default:
			return fmt.Errorf("unknown argument: %s", args[i])
		}
	}

	resolved, err := config.ResolveConfig(config.ResolveOptions{CLIDBPath: dbPath})
	if err != nil {
		return err
	}

	s, err := store.NewStore(store.StoreConfig{DBPath: resolved.DBPath.Value})
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer s.Close()

	stats, err := s.Stats(context.Background())
	if err != nil {
		return err
	}

	fmt.Printf("Trademarks:  %d\n", stats.TrademarkCount)
	fmt.Printf("Embeddings:  %d\n", stats.EmbeddingCount)
	fmt.Printf("Spaces:      %s\n", strings.Join(stats.Spaces, ", "))
	fmt.Printf("DB size:     %s\n", formatBytes(stats.DBSizeBytes))
	return nil
}

func formatBytes(n int64) string {
	switch {
	case n >= 1<<30:
		return fmt.Sprintf("%.1f GB", float64(n)/(1<<30))
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
