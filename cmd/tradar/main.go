package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tradarlab/tradar/internal/config"
)

const version = "0.1.0-dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}

	switch os.Args[1] {
	case "ingest":
		if err := runIngest(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "search":
		if err := runSearch(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "stats":
		if err := runStats(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "config":
		if err := runConfig(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "mcp":
		if err := runMCP(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "version", "--version", "-v":
		fmt.Printf("tradar %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runConfig(args []string) error {
	opts := config.ResolveOptions{}
	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "--config" && i+1 < len(args):
			i++
			opts.ConfigPath = args[i]
		default:
			return fmt.Errorf("unknown argument: %s", args[i])
		}
	}

	resolved, err := config.ResolveConfig(opts)
	if err != nil {
		return err
	}

	// API keys never leave the process.
	resolved.EncoderAPIKey.Value = redact(resolved.EncoderAPIKey.Value)
	for p, v := range resolved.LLMKeys {
		v.Value = redact(v.Value)
		resolved.LLMKeys[p] = v
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(resolved)
}

func redact(key string) string {
	if key == "" {
		return ""
	}
	return "****"
}

func printUsage() {
	fmt.Printf(`tradar %s — Trademark image and text similarity search

Usage:
  tradar <command> [arguments]

Commands:
  ingest <catalog.tsv>  Load trademark records and compute embeddings
  search [query]        Search the catalog by text, image, or both
  stats                 Show catalog statistics
  config                Show resolved configuration and its sources
  mcp                   Serve the catalog over MCP (stdio)
  version               Print version

Search Flags:
  --image <path>        Query by trademark image
  --k <n>               Results per modality (default 20)
  --image-prompt <text> Clarification steering the image ranking
  --text-prompt <text>  Clarification steering the text ranking
  --prompt-mode <mode>  Blend preset: primary_strong, primary_focus,
                        image_focus, balanced, prompt_focus, prompt_strong
  --debug               Print per-stage score tables
  --format json|table   Output format (default: table on a TTY)

Common Flags:
  --db <path>           Database path (default ~/.tradar/tradar.db)
  --encoder <url>       Encoder service endpoint
  --llm <provider/model> LLM for variant expansion and prompts
  -h, --help            Show this help message
  -v, --version         Print version
`, version)
}
