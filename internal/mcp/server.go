// Package mcp provides a Model Context Protocol server for tradar.
//
// It exposes trademark similarity search (image, text, or both) and
// catalog statistics as MCP tools, plus a stats resource. Runs over
// stdio transport for agent hosts.
package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/tradarlab/tradar/internal/pipeline"
	"github.com/tradarlab/tradar/internal/store"
)

// ServerConfig holds configuration for the MCP server.
type ServerConfig struct {
	Pipeline *pipeline.Pipeline
	Store    *store.SQLiteStore
	Version  string
}

// dbMu serializes MCP tool calls that touch the database. The mcp-go
// library dispatches handlers concurrently via goroutines, and SQLite
// supports only one writer at a time.
var dbMu sync.Mutex

// NewServer creates a configured MCP server with all tradar tools and
// resources.
func NewServer(cfg ServerConfig) *server.MCPServer {
	ver := cfg.Version
	if ver == "" {
		ver = "dev"
	}

	s := server.NewMCPServer(
		"Tradar",
		ver,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(true, false),
	)

	registerSearchTool(s, cfg.Pipeline)
	registerLookupTool(s, cfg.Store)
	registerStatsTool(s, cfg.Store)

	registerStatsResource(s, cfg.Store)

	return s
}

// --- Tools ---

func registerSearchTool(s *server.MCPServer, p *pipeline.Pipeline) {
	tool := mcp.NewTool("tradar_search",
		mcp.WithDescription("Search the trademark catalog for similar marks. Accepts query text, a base64 image, or both, and returns ranked image and text similarity lists with a non-primary-status misc window."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("text",
			mcp.Description("Trademark name to search for. Required unless image_base64 is set."),
		),
		mcp.WithString("image_base64",
			mcp.Description("Base64-encoded trademark image. Required unless text is set."),
		),
		mcp.WithNumber("k",
			mcp.Description("Number of top results per modality (default: 20, max: 100)"),
		),
		mcp.WithString("image_prompt",
			mcp.Description("Free-text clarification steering the image ranking (e.g. 'focus on the logo shape')."),
		),
		mcp.WithString("image_prompt_mode",
			mcp.Description("Blend preset for the image prompt"),
			mcp.Enum("primary_strong", "primary_focus", "image_focus", "balanced", "prompt_focus", "prompt_strong"),
		),
		mcp.WithString("text_prompt",
			mcp.Description("Free-text clarification steering the text ranking. Hard constraints like 'starts with X' reorder results."),
		),
		mcp.WithString("text_prompt_mode",
			mcp.Description("Blend preset for the text prompt"),
			mcp.Enum("primary_strong", "primary_focus", "image_focus", "balanced", "prompt_focus", "prompt_strong"),
		),
		mcp.WithBoolean("debug",
			mcp.Description("Include per-stage debug tables in the response (default: false)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		if p == nil {
			return mcp.NewToolResultError("search pipeline is not configured"), nil
		}

		var sreq pipeline.Request

		if text, err := req.RequireString("text"); err == nil {
			sreq.Text = text
		}
		if b64, err := req.RequireString("image_base64"); err == nil && strings.TrimSpace(b64) != "" {
			img, err := base64.StdEncoding.DecodeString(strings.TrimSpace(b64))
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("invalid image_base64: %v", err)), nil
			}
			sreq.ImageBytes = img
		}
		if sreq.Text == "" && len(sreq.ImageBytes) == 0 {
			return mcp.NewToolResultError("text or image_base64 is required"), nil
		}

		if kVal, err := req.RequireFloat("k"); err == nil {
			k := int(kVal)
			if k > 100 {
				k = 100
			}
			if k > 0 {
				sreq.K = k
			}
		}

		if v, err := req.RequireString("image_prompt"); err == nil {
			sreq.ImagePrompt = v
		}
		if v, err := req.RequireString("image_prompt_mode"); err == nil {
			sreq.ImagePromptMode = v
		}
		if v, err := req.RequireString("text_prompt"); err == nil {
			sreq.TextPrompt = v
		}
		if v, err := req.RequireString("text_prompt_mode"); err == nil {
			sreq.TextPromptMode = v
		}
		if debug, err := req.RequireString("debug"); err == nil {
			sreq.Debug = debug == "true"
		}

		resp, err := p.Search(ctx, sreq)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("search error: %v", err)), nil
		}

		data, _ := json.MarshalIndent(resp, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerLookupTool(s *server.MCPServer, st *store.SQLiteStore) {
	tool := mcp.NewTool("tradar_lookup",
		mcp.WithDescription("Fetch trademark catalog records by application number. Unknown numbers are omitted from the result."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("ids",
			mcp.Required(),
			mcp.Description("Comma-separated application numbers (e.g. '40-2021-0012345,40-2020-0054321')"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		raw, err := req.RequireString("ids")
		if err != nil {
			return mcp.NewToolResultError("ids is required"), nil
		}

		var ids []string
		for _, part := range strings.Split(raw, ",") {
			if id := strings.TrimSpace(part); id != "" {
				ids = append(ids, id)
			}
		}
		if len(ids) == 0 {
			return mcp.NewToolResultError("ids is required"), nil
		}

		records, err := st.BulkByIDs(ctx, ids)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("lookup error: %v", err)), nil
		}

		type record struct {
			ApplicationNumber string   `json:"application_number"`
			TitleKorean       string   `json:"title_korean,omitempty"`
			TitleEnglish      string   `json:"title_english,omitempty"`
			Status            string   `json:"status,omitempty"`
			ClassCodes        []string `json:"class_codes,omitempty"`
			GoodsServices     string   `json:"goods_services,omitempty"`
			ThumbURL          string   `json:"thumb_url,omitempty"`
		}

		// Preserve the requested order for found records.
		out := make([]record, 0, len(records))
		for _, id := range ids {
			tm, ok := records[id]
			if !ok {
				continue
			}
			out = append(out, record{
				ApplicationNumber: tm.ApplicationNumber,
				TitleKorean:       tm.TitleKorean,
				TitleEnglish:      tm.TitleEnglish,
				Status:            tm.Status,
				ClassCodes:        tm.ClassCodes,
				GoodsServices:     tm.GoodsServices,
				ThumbURL:          tm.ThumbURL,
			})
		}

		payload := map[string]interface{}{
			"records": out,
			"found":   len(out),
			"missing": len(ids) - len(out),
		}
		data, _ := json.MarshalIndent(payload, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerStatsTool(s *server.MCPServer, st *store.SQLiteStore) {
	tool := mcp.NewTool("tradar_stats",
		mcp.WithDescription("Get trademark catalog statistics: record count, embedding count, vector spaces, and storage size."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		stats, err := st.Stats(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("stats error: %v", err)), nil
		}

		data, _ := json.MarshalIndent(statsPayload(stats), "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

// --- Resources ---

func registerStatsResource(s *server.MCPServer, st *store.SQLiteStore) {
	resource := mcp.NewResource(
		"tradar://stats",
		"Catalog Statistics",
		mcp.WithResourceDescription("Trademark catalog statistics including record counts, embedding counts per space, and storage size."),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(resource, func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		stats, err := st.Stats(ctx)
		if err != nil {
			return nil, fmt.Errorf("getting stats: %w", err)
		}

		data, _ := json.MarshalIndent(statsPayload(stats), "", "  ")
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	})
}

func statsPayload(stats *store.Stats) map[string]interface{} {
	return map[string]interface{}{
		"trademarks": stats.TrademarkCount,
		"embeddings": stats.EmbeddingCount,
		"spaces":     stats.Spaces,
		"db_bytes":   stats.DBSizeBytes,
	}
}
