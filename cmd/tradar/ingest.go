package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tradarlab/tradar/internal/backend"
	"github.com/tradarlab/tradar/internal/config"
	"github.com/tradarlab/tradar/internal/encode"
	"github.com/tradarlab/tradar/internal/store"
)

// textBatchSize bounds one /encode/text call during ingest.
const textBatchSize = 32

type ingestOptions struct {
	catalogPath string
	imagesDir   string
	dbPath      string
	encoderURL  string
	skipEmbed   bool
	dryRun      bool
}

func runIngest(args []string) error {
	opts := ingestOptions{}

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "--images" && i+1 < len(args):
			i++
			opts.imagesDir = args[i]
		case args[i] == "--db" && i+1 < len(args):
			i++
			opts.dbPath = args[i]
		case args[i] == "--encoder" && i+1 < len(args):
			i++
			opts.encoderURL = args[i]
		case args[i] == "--skip-embed":
			opts.skipEmbed = true
		case args[i] == "--dry-run" || args[i] == "-n":
			opts.dryRun = true
		case strings.HasPrefix(args[i], "-"):
			return fmt.Errorf("unknown flag: %s", args[i])
		default:
			if opts.catalogPath != "" {
				return fmt.Errorf("unexpected argument: %s", args[i])
			}
			opts.catalogPath = args[i]
		}
	}

	if opts.catalogPath == "" {
		return fmt.Errorf("usage: tradar ingest <catalog.tsv> [--images DIR] [--db PATH] [--encoder URL] [--skip-embed] [--dry-run]")
	}

	f, err := os.Open(opts.catalogPath)
	if err != nil {
		return fmt.Errorf("opening catalog: %w", err)
	}
	defer f.Close()

	marks, err := parseCatalog(f)
	if err != nil {
		return fmt.Errorf("parsing catalog: %w", err)
	}
	fmt.Printf("Parsed %d records from %s\n", len(marks), opts.catalogPath)

	if opts.dryRun {
		fmt.Println("Dry run mode — no changes will be written")
		return nil
	}

	resolved, err := config.ResolveConfig(config.ResolveOptions{
		CLIDBPath:  opts.dbPath,
		CLIEncoder: opts.encoderURL,
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
	for _, tm := range marks {
		if err := s.AddTrademark(ctx, tm); err != nil {
			return err
		}
	}
	fmt.Printf("Stored %d trademark records\n", len(marks))

	if opts.skipEmbed {
		return nil
	}

	encCfg, err := encode.ResolveConfig(resolved.EncoderEndpoint.Value)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v — skipping embeddings\n", err)
		return nil
	}
	client, err := encode.NewClient(encCfg)
	if err != nil {
		return err
	}

	if err := embedImages(ctx, s, client, marks, opts.imagesDir); err != nil {
		return err
	}
	return embedTitles(ctx, s, client, marks)
}

func embedImages(ctx context.Context, s *store.SQLiteStore, client *encode.Client, marks []*store.Trademark, imagesDir string) error {
	withImages := 0
	for i, tm := range marks {
		if tm.ImagePath == "" {
			continue
		}
		path := tm.ImagePath
		if imagesDir != "" && !filepath.IsAbs(path) {
			path = filepath.Join(imagesDir, path)
		}
		imageBytes, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "  [%d/%d] %s: %v (skipped)\n", i+1, len(marks), tm.ApplicationNumber, err)
			continue
		}

		embeddings, err := client.EncodeImage(ctx, imageBytes)
		if err != nil {
			fmt.Fprintf(os.Stderr, "  [%d/%d] %s: encode: %v (skipped)\n", i+1, len(marks), tm.ApplicationNumber, err)
			continue
		}
		for space, vec := range embeddings {
			if err := s.AddEmbedding(ctx, space, tm.ApplicationNumber, vec); err != nil {
				return err
			}
		}
		withImages++
		if withImages%100 == 0 {
			fmt.Printf("  [%d/%d] image embeddings...\n", i+1, len(marks))
		}
	}
	fmt.Printf("Embedded %d trademark images\n", withImages)
	return nil
}

func embedTitles(ctx context.Context, s *store.SQLiteStore, client *encode.Client, marks []*store.Trademark) error {
	// One embedding per record, preferring the Korean title.
	var ids []string
	var titles []string
	for _, tm := range marks {
		title := strings.TrimSpace(tm.TitleKorean)
		if title == "" {
			title = strings.TrimSpace(tm.TitleEnglish)
		}
		if title == "" || title == tm.ApplicationNumber {
			continue
		}
		ids = append(ids, tm.ApplicationNumber)
		titles = append(titles, title)
	}

	for start := 0; start < len(titles); start += textBatchSize {
		end := start + textBatchSize
		if end > len(titles) {
			end = len(titles)
		}
		vectors, err := client.EmbedTextBatch(ctx, titles[start:end])
		if err != nil {
			return fmt.Errorf("embedding titles: %w", err)
		}
		for i, vec := range vectors {
			if err := s.AddEmbedding(ctx, backend.SpaceMetaclipText, ids[start+i], vec); err != nil {
				return err
			}
		}
	}
	fmt.Printf("Embedded %d trademark titles\n", len(titles))
	return nil
}

// parseCatalog reads a tab-separated catalog with a header row. Only
// application_number is required; class codes are semicolon-separated.
func parseCatalog(r io.Reader) ([]*store.Trademark, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := cols["application_number"]; !ok {
		return nil, fmt.Errorf("catalog is missing the application_number column")
	}

	field := func(row []string, name string) string {
		idx, ok := cols[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	var marks []*store.Trademark
	line := 1
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		appNo := field(row, "application_number")
		if appNo == "" {
			continue
		}

		tm := &store.Trademark{
			ApplicationNumber: appNo,
			TitleKorean:       field(row, "title_korean"),
			TitleEnglish:      field(row, "title_english"),
			Status:            field(row, "status"),
			GoodsServices:     field(row, "goods_services"),
			ImagePath:         field(row, "image_path"),
			ThumbURL:          field(row, "thumb_url"),
		}
		for _, code := range strings.Split(field(row, "class_codes"), ";") {
			if code = strings.TrimSpace(code); code != "" {
				tm.ClassCodes = append(tm.ClassCodes, code)
			}
		}
		marks = append(marks, tm)
	}
	return marks, nil
}
