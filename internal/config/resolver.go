package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type ValueSource string

const (
	SourceUnknown ValueSource = "unknown"
	SourceConfig  ValueSource = "config"
	SourceEnv     ValueSource = "env"
	SourceCLI     ValueSource = "cli"
	SourceDefault ValueSource = "default"
)

// ResolvedValue carries a setting together with where it came from, so
// `tradar config` can show users which layer won.
type ResolvedValue struct {
	Value  string      `json:"value"`
	Source ValueSource `json:"source"`
	From   string      `json:"from,omitempty"`
}

type ResolveOptions struct {
	ConfigPath string
	CLILLM     string
	CLIEncoder string
	CLIDBPath  string
}

type ResolvedConfig struct {
	ConfigPath string `json:"config_path"`

	DBPath            ResolvedValue `json:"db_path"`
	LLMProvider       ResolvedValue `json:"llm_provider"`
	LLMExpandModel    ResolvedValue `json:"llm_expand_model"`
	LLMInterpretModel ResolvedValue `json:"llm_interpret_model"`

	EncoderEndpoint ResolvedValue `json:"encoder_endpoint"`
	EncoderAPIKey   ResolvedValue `json:"encoder_api_key"`

	DinoWeight      ResolvedValue `json:"dino_weight"`
	MetaclipWeight  ResolvedValue `json:"metaclip_weight"`
	PrimaryStatuses ResolvedValue `json:"primary_statuses"`

	LLMKeys map[string]ResolvedValue `json:"llm_keys,omitempty"`
}

type fileConfig struct {
	DBPath string `yaml:"db_path"`
	LLM    struct {
		Provider       string `yaml:"provider"`
		APIKey         string `yaml:"api_key"`
		ExpandModel    string `yaml:"expand_model"`
		InterpretModel string `yaml:"interpret_model"`
	} `yaml:"llm"`
	Encoder struct {
		Endpoint string `yaml:"endpoint"`
		APIKey   string `yaml:"api_key"`
	} `yaml:"encoder"`
	Ranking struct {
		DinoWeight      string   `yaml:"dino_weight"`
		MetaclipWeight  string   `yaml:"metaclip_weight"`
		PrimaryStatuses []string `yaml:"primary_statuses"`
	} `yaml:"ranking"`
}

func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".tradar", "config.yaml")
}

func ResolveConfig(opts ResolveOptions) (ResolvedConfig, error) {
	path := strings.TrimSpace(opts.ConfigPath)
	if path == "" {
		path = DefaultConfigPath()
	}

	out := ResolvedConfig{
		ConfigPath: path,
		LLMKeys:    map[string]ResolvedValue{},
	}

	cfg, err := loadConfig(path)
	if err != nil {
		return out, err
	}

	if cfg != nil {
		apply(&out.DBPath, cfg.DBPath, SourceConfig, path)
		apply(&out.LLMProvider, cfg.LLM.Provider, SourceConfig, path)
		apply(&out.LLMExpandModel, cfg.LLM.ExpandModel, SourceConfig, path)
		apply(&out.LLMInterpretModel, cfg.LLM.InterpretModel, SourceConfig, path)
		apply(&out.EncoderEndpoint, cfg.Encoder.Endpoint, SourceConfig, path)
		apply(&out.DinoWeight, cfg.Ranking.DinoWeight, SourceConfig, path)
		apply(&out.MetaclipWeight, cfg.Ranking.MetaclipWeight, SourceConfig, path)
		apply(&out.PrimaryStatuses, strings.Join(cfg.Ranking.PrimaryStatuses, ","), SourceConfig, path)

		if key := strings.TrimSpace(cfg.Encoder.APIKey); key != "" {
			out.EncoderAPIKey = ResolvedValue{Value: key, Source: SourceConfig, From: path}
		}

		if key := strings.TrimSpace(cfg.LLM.APIKey); key != "" {
			providers := map[string]struct{}{}
			for _, v := range []string{cfg.LLM.Provider, cfg.LLM.ExpandModel, cfg.LLM.InterpretModel} {
				p := providerOf(v)
				if p != "" {
					providers[p] = struct{}{}
				}
			}
			if len(providers) == 0 {
				providers["default"] = struct{}{}
			}
			for p := range providers {
				out.LLMKeys[p] = ResolvedValue{Value: key, Source: SourceConfig, From: path}
			}
		}
	}

	applyEnv(&out.DBPath, "TRADAR_DB")
	applyEnv(&out.DBPath, "TRADAR_DB_PATH")

	applyEnv(&out.LLMProvider, "TRADAR_LLM")
	applyEnv(&out.LLMExpandModel, "TRADAR_LLM_EXPAND")
	applyEnv(&out.LLMInterpretModel, "TRADAR_LLM_INTERPRET")

	applyEnv(&out.EncoderEndpoint, "TRADAR_ENCODER_ENDPOINT")
	if v := strings.TrimSpace(os.Getenv("TRADAR_ENCODER_API_KEY")); v != "" {
		out.EncoderAPIKey = ResolvedValue{Value: v, Source: SourceEnv, From: "TRADAR_ENCODER_API_KEY"}
	}

	applyEnv(&out.DinoWeight, "TRADAR_DINO_WEIGHT")
	applyEnv(&out.MetaclipWeight, "TRADAR_METACLIP_WEIGHT")
	applyEnv(&out.PrimaryStatuses, "TRADAR_PRIMARY_STATUSES")

	for env, provider := range map[string]string{
		"OPENROUTER_API_KEY": "openrouter",
		"GEMINI_API_KEY":     "google",
		"GOOGLE_API_KEY":     "google",
	} {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			out.LLMKeys[provider] = ResolvedValue{Value: v, Source: SourceEnv, From: env}
		}
	}

	apply(&out.LLMProvider, opts.CLILLM, SourceCLI, "--llm")
	apply(&out.EncoderEndpoint, opts.CLIEncoder, SourceCLI, "--encoder")
	apply(&out.DBPath, opts.CLIDBPath, SourceCLI, "--db")

	if out.DBPath.Value != "" {
		out.DBPath.Value = expandUserPath(out.DBPath.Value)
	}

	return out, nil
}

// EffectiveLLMModel picks the model for a purpose ("expand" or
// "interpret"), falling back to the generic provider setting and then
// to the built-in default.
func (r ResolvedConfig) EffectiveLLMModel(purpose, fallback string) ResolvedValue {
	purpose = strings.ToLower(strings.TrimSpace(purpose))

	candidates := []ResolvedValue{}
	switch purpose {
	case "expand":
		candidates = append(candidates, r.LLMExpandModel)
	case "interpret":
		candidates = append(candidates, r.LLMInterpretModel)
	}
	candidates = append(candidates, r.LLMProvider)

	for _, c := range candidates {
		if strings.TrimSpace(c.Value) == "" {
			continue
		}
		if strings.Contains(c.Value, "/") {
			return c
		}
		if fallback != "" && strings.HasPrefix(strings.ToLower(fallback), strings.ToLower(strings.TrimSpace(c.Value))+"/") {
			return ResolvedValue{Value: fallback, Source: c.Source, From: c.From}
		}
	}

	if strings.TrimSpace(fallback) != "" {
		return ResolvedValue{Value: fallback, Source: SourceDefault, From: "built-in default"}
	}
	return ResolvedValue{}
}

func (r ResolvedConfig) APIKeyForProvider(providerOrModel string) ResolvedValue {
	provider := providerOf(providerOrModel)
	if provider == "" {
		return ResolvedValue{}
	}
	if v, ok := r.LLMKeys[provider]; ok && strings.TrimSpace(v.Value) != "" {
		return v
	}
	if v, ok := r.LLMKeys["default"]; ok && strings.TrimSpace(v.Value) != "" {
		return v
	}
	return ResolvedValue{}
}

// WeightOr parses a resolved weight value, returning def when the value
// is unset or not a number.
func (v ResolvedValue) WeightOr(def float64) float64 {
	s := strings.TrimSpace(v.Value)
	if s == "" {
		return def
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return def
	}
	return f
}

// StatusList splits a comma-separated status value into trimmed entries.
func (v ResolvedValue) StatusList() []string {
	var out []string
	for _, part := range strings.Split(v.Value, ",") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func providerOf(providerOrModel string) string {
	v := strings.ToLower(strings.TrimSpace(providerOrModel))
	if v == "" {
		return ""
	}
	if idx := strings.Index(v, "/"); idx > 0 {
		return v[:idx]
	}
	return v
}

func apply(dst *ResolvedValue, raw string, source ValueSource, from string) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return
	}
	*dst = ResolvedValue{Value: v, Source: source, From: from}
}

func applyEnv(dst *ResolvedValue, envKey string) {
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
		*dst = ResolvedValue{Value: v, Source: SourceEnv, From: envKey}
	}
}

func loadConfig(path string) (*fileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &cfg, nil
}

func expandUserPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
