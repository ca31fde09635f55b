package main

import (
	"context"
	"fmt"
	"os"

	"github.com/tradarlab/tradar/internal/backend"
	"github.com/tradarlab/tradar/internal/config"
	"github.com/tradarlab/tradar/internal/encode"
	"github.com/tradarlab/tradar/internal/llm"
	"github.com/tradarlab/tradar/internal/pipeline"
	"github.com/tradarlab/tradar/internal/prompt"
	"github.com/tradarlab/tradar/internal/store"
	"github.com/tradarlab/tradar/internal/variants"
)

// allSpaces lists every embedding space the pipeline searches.
var allSpaces = append(append([]string{}, backend.ImageSpaces...), backend.SpaceMetaclipText)

// buildPipeline wires the full search stack for one open store.
// The LLM layer is optional; without credentials the pipeline degrades
// to rule-based variant expansion and pattern-only prompt handling.
func buildPipeline(ctx context.Context, s *store.SQLiteStore, resolved config.ResolvedConfig) (*pipeline.Pipeline, error) {
	encCfg, err := encode.ResolveConfig(resolved.EncoderEndpoint.Value)
	if err != nil {
		return nil, err
	}
	if resolved.EncoderAPIKey.Value != "" {
		encCfg.APIKey = resolved.EncoderAPIKey.Value
	}
	client, err := encode.NewClient(encCfg)
	if err != nil {
		return nil, err
	}

	vectors, err := backend.NewVectorBackend(ctx, s, allSpaces)
	if err != nil {
		return nil, err
	}
	lexical, err := backend.NewLexicalBackend(s)
	if err != nil {
		return nil, err
	}

	deps := pipeline.Deps{
		Images:   client,
		Texts:    client,
		Vectors:  vectors,
		Lexical:  lexical,
		Metadata: s,
	}

	if provider := newLLMProvider(resolved); provider != nil {
		deps.Expander = variants.NewLLMExpander(provider)
		deps.Interpreter = prompt.NewLLMInterpreter(provider)
	}

	return pipeline.New(deps, pipeline.Config{
		DinoWeight:      resolved.DinoWeight.WeightOr(0.5),
		MetaclipWeight:  resolved.MetaclipWeight.WeightOr(0.5),
		PrimaryStatuses: resolved.PrimaryStatuses.StatusList(),
	})
}

// newLLMProvider builds the configured provider, or nil when no usable
// model or credentials are available.
func newLLMProvider(resolved config.ResolvedConfig) llm.Provider {
	model := resolved.EffectiveLLMModel("expand", "google/gemini-2.5-flash")

	cfg, err := llm.ParseLLMFlag(model.Value)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v — LLM features disabled\n", err)
		return nil
	}
	if key := resolved.APIKeyForProvider(cfg.Provider); key.Value != "" {
		cfg.APIKey = key.Value
	}

	provider, err := llm.NewProvider(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v — LLM features disabled\n", err)
		return nil
	}
	return provider
}
