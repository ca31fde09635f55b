package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/tradarlab/tradar/internal/config"
	"github.com/tradarlab/tradar/internal/pipeline"
	"github.com/tradarlab/tradar/internal/store"
)

type searchOptions struct {
	query      string
	imagePath  string
	k          int
	debug      bool
	format     string
	imgPrompt  string
	textPrompt string
	promptMode string
	dbPath     string
	encoderURL string
	llmFlag    string
}

func runSearch(args []string) error {
	opts := searchOptions{}
	var queryParts []string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "--image" && i+1 < len(args):
			i++
			opts.imagePath = args[i]
		case args[i] == "--k" && i+1 < len(args):
			i++
			k, err := strconv.Atoi(args[i])
			if err != nil || k <= 0 {
				return fmt.Errorf("invalid --k value: %s", args[i])
			}
			opts.k = k
		case args[i] == "--debug":
			opts.debug = true
		case args[i] == "--format" && i+1 < len(args):
			i++
			opts.format = strings.ToLower(strings.TrimSpace(args[i]))
		case args[i] == "--image-prompt" && i+1 < len(args):
			i++
			opts.imgPrompt = args[i]
		case args[i] == "--text-prompt" && i+1 < len(args):
			i++
			opts.textPrompt = args[i]
		case args[i] == "--prompt-mode" && i+1 < len(args):
			i++
			opts.promptMode = args[i]
		case args[i] == "--db" && i+1 < len(args):
			i++
			opts.dbPath = args[i]
		case args[i] == "--encoder" && i+1 < len(args):
			i++
			opts.encoderURL = args[i]
		case args[i] == "--llm" && i+1 < len(args):
			i++
			opts.llmFlag = args[i]
		case strings.HasPrefix(args[i], "-"):
			return fmt.Errorf("unknown flag: %s", args[i])
		default:
			queryParts = append(queryParts, args[i])
		}
	}
	opts.query = strings.Join(queryParts, " ")

	if opts.query == "" && opts.imagePath == "" {
		return fmt.Errorf("usage: tradar search <query> [--image PATH] [--k N] [--debug]")
	}

	req := pipeline.Request{
		Text:            opts.query,
		K:               opts.k,
		Debug:           opts.debug,
		ImagePrompt:     opts.imgPrompt,
		ImagePromptMode: opts.promptMode,
		TextPrompt:      opts.textPrompt,
		TextPromptMode:  opts.promptMode,
	}
	if opts.imagePath != "" {
		imageBytes, err := os.ReadFile(opts.imagePath)
		if err != nil {
			return fmt.Errorf("reading image: %w", err)
		}
		req.ImageBytes = imageBytes
	}

	resolved, err := config.ResolveConfig(config.ResolveOptions{
		CLIDBPath:  opts.dbPath,
		CLIEncoder: opts.encoderURL,
		CLILLM:     opts.llmFlag,
	})
	if err != nil {
		return err
	}

	s, err := store.NewStore(store.StoreConfig{DBPath: resolved.DBPath.Value})
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer s.Close()

	ctx := context.Background()
	p, err := buildPipeline(ctx, s, resolved)
	if err != nil {
		return err
	}

	resp, err := p.Search(ctx, req)
	if err != nil {
		return err
	}

	if opts.format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	printResponse(resp)
	return nil
}

func printResponse(resp *pipeline.Response) {
	if len(resp.Query.Variants) > 0 {
		fmt.Printf("Variants: %s\n\n", strings.Join(resp.Query.Variants, ", "))
	}

	printResultTable("IMAGE RESULTS", resp.ImageTop)
	printResultTable("IMAGE MISC (non-primary status)", resp.ImageMisc)
	printResultTable("TEXT RESULTS", resp.TextTop)
	printResultTable("TEXT MISC (non-primary status)", resp.TextMisc)

	if resp.Debug != nil {
		printDebug(resp.Debug)
	}
}

func printResultTable(title string, results []pipeline.Result) {
	if len(results) == 0 {
		return
	}
	fmt.Printf("%s\n", title)
	fmt.Printf("%-4s %-18s %-24s %-10s %-8s %-8s %s\n",
		"#", "APP NO", "TITLE", "STATUS", "IMG", "TXT", "CLASSES")
	for i, r := range results {
		name := r.Title
		if runeLen(name) > 24 {
			name = truncateRunes(name, 23) + "…"
		}
		fmt.Printf("%-4d %-18s %-24s %-10s %-8.4f %-8.4f %s\n",
			i+1, r.ID, name, r.Status, r.ImageSimilarity, r.TextSimilarity,
			strings.Join(r.ClassCodes, ","))
	}
	fmt.Println()
}

func printDebug(d *pipeline.Debug) {
	printRowTable("dino", d.ImageDino)
	printRowTable("metaclip image", d.ImageMetaclip)
	printRowTable("metaclip text", d.TextMetaclip)
	printRowTable("bm25", d.TextBM25)

	if len(d.ImageBlended) > 0 {
		fmt.Println("DEBUG image blend")
		fmt.Printf("%-4s %-18s %-8s %-8s %s\n", "#", "APP NO", "DINO", "CLIP", "BLEND")
		for _, r := range d.ImageBlended {
			fmt.Printf("%-4d %-18s %-8.4f %-8.4f %.4f\n", r.Rank, r.ID, r.Dino, r.Metaclip, r.Blended)
		}
		fmt.Println()
	}
	printRowTable("text ranked", d.TextRanked)

	for _, line := range d.Log {
		fmt.Printf("  log: %s\n", line)
	}
}

func printRowTable(stage string, rows []pipeline.Row) {
	if len(rows) == 0 {
		return
	}
	fmt.Printf("DEBUG %s\n", stage)
	for _, r := range rows {
		fmt.Printf("%-4d %-18s %.4f\n", r.Rank, r.ID, r.Score)
	}
	fmt.Println()
}

func runeLen(s string) int {
	return len([]rune(s))
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
