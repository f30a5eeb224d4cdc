package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// AppConfig holds all server configuration.
// Priority (lowest → highest): defaults < .env file < env vars < JSON config file < CLI flags.
type AppConfig struct {
	// Server
	DB   string `json:"db"   env:"DB"`   // database connection string
	Dev  bool   `json:"dev"  env:"DEV"`  // dev mode: verbose logging, db dumps on errors
	Addr string `json:"addr" env:"ADDR"` // HTTP listen address

	// Logging (extended diagnostics, off by default)
	LogOutputDir string `json:"log_output_dir" env:"LOG_OUTPUT_DIR"`
	LogOracle    bool   `json:"log_oracle"     env:"LOG_ORACLE"`
	LogDB        bool   `json:"log_db"         env:"LOG_DB"`
	LogWS        bool   `json:"log_ws"         env:"LOG_WS"`
	LogDebug     bool   `json:"log_debug"      env:"LOG_DEBUG"`

	// Reasoning oracle
	OracleProvider    string        `json:"oracle_provider"    env:"ORACLE_PROVIDER"`    // ollama | openai | claude | gemini | groq | openai-compatible
	OracleModel       string        `json:"oracle_model"       env:"ORACLE_MODEL"`       // model name
	OracleOllamaURL   string        `json:"oracle_ollama_url"  env:"ORACLE_OLLAMA_URL"`  // Ollama server URL
	OracleURL         string        `json:"oracle_url"         env:"ORACLE_URL"`         // base URL for openai-compatible
	OracleAPIKey      string        `json:"oracle_api_key"     env:"ORACLE_API_KEY"`     // API key, overrides the provider's own env var
	OracleTemperature string        `json:"oracle_temperature" env:"ORACLE_TEMPERATURE"` // float 0-1 as string
	OracleMaxTokens   int           `json:"oracle_max_tokens"  env:"ORACLE_MAX_TOKENS"`
	OracleThinking    string        `json:"oracle_thinking"    env:"ORACLE_THINKING"` // none | low | medium | high | auto
	OracleTimeout     time.Duration `json:"oracle_timeout"     env:"ORACLE_TIMEOUT"`
	GroqAPIKey        string        `json:"groq_api_key"       env:"GROQ_API_KEY"` // API key for groq provider

	// Game pacing; zero keeps the case script's own values
	VotePacing time.Duration `json:"vote_pacing" env:"VOTE_PACING"`
	MaxRounds  int           `json:"max_rounds"  env:"MAX_ROUNDS"`
	RoundDelta int           `json:"round_delta" env:"ROUND_DELTA"`
	Deadline   time.Duration `json:"deadline"    env:"DEADLINE"`
	CaseID     string        `json:"case"        env:"CASE"` // empty picks a random case
}

func (cfg AppConfig) toLogConfig() LogConfig {
	return LogConfig{
		OutputDir: cfg.LogOutputDir,
		LogOracle: cfg.LogOracle,
		LogDB:     cfg.LogDB,
		LogWS:     cfg.LogWS,
		Debug:     cfg.LogDebug,
	}
}

func (cfg AppConfig) sessionOptions() SessionOptions {
	return SessionOptions{
		MaxRounds:       cfg.MaxRounds,
		PhaseRoundDelta: cfg.RoundDelta,
		Deadline:        cfg.Deadline,
		VotePacing:      cfg.VotePacing,
	}
}

func defaultConfig() AppConfig {
	return AppConfig{
		DB:              "file::memory:?cache=shared",
		Addr:            ":8080",
		OracleOllamaURL: "http://localhost:11434",
		OracleTimeout:   90 * time.Second,
		VotePacing:      300 * time.Millisecond,
	}
}

// loadConfig builds a config by layering: defaults → .env → env vars → JSON config file.
// CLI flag overrides are applied separately by flagValues.applyTo after flag.Parse.
func loadConfig(configPath string) AppConfig {
	cfg := defaultConfig()

	// Layer 1: .env file; variables already set in the process win
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Config: failed to read .env: %v", err)
	}

	// Layer 2: env vars, only those present override defaults
	if err := env.Parse(&cfg); err != nil {
		log.Printf("Config: %v", fmt.Errorf("parse env: %w", err))
	}

	// Layer 3: JSON config file, only fields present in the file override env vars
	if data, err := os.ReadFile(configPath); err == nil {
		var overlay map[string]json.RawMessage
		if err := json.Unmarshal(data, &overlay); err != nil {
			log.Printf("Config: failed to parse %s: %v", configPath, err)
		} else {
			applyJSONOverlay(&cfg, overlay)
			log.Printf("Config: loaded from %s", configPath)
		}
	} else if !os.IsNotExist(err) {
		log.Printf("Config: failed to read %s: %v", configPath, err)
	}

	return cfg
}

// applyJSONOverlay only sets fields that are explicitly present in the JSON map.
func applyJSONOverlay(cfg *AppConfig, m map[string]json.RawMessage) {
	str := func(key string, dst *string) {
		if v, ok := m[key]; ok {
			json.Unmarshal(v, dst)
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := m[key]; ok {
			json.Unmarshal(v, dst)
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := m[key]; ok {
			json.Unmarshal(v, dst)
		}
	}
	// durations are written as strings such as "300ms" or "30m"
	duration := func(key string, dst *time.Duration) {
		var s string
		str(key, &s)
		if s == "" {
			return
		}
		d, err := time.ParseDuration(s)
		if err != nil {
			log.Printf("Config: invalid %s %q: %v", key, s, err)
			return
		}
		*dst = d
	}
	str("db", &cfg.DB)
	boolean("dev", &cfg.Dev)
	str("addr", &cfg.Addr)
	str("log_output_dir", &cfg.LogOutputDir)
	boolean("log_oracle", &cfg.LogOracle)
	boolean("log_db", &cfg.LogDB)
	boolean("log_ws", &cfg.LogWS)
	boolean("log_debug", &cfg.LogDebug)
	str("oracle_provider", &cfg.OracleProvider)
	str("oracle_model", &cfg.OracleModel)
	str("oracle_ollama_url", &cfg.OracleOllamaURL)
	str("oracle_url", &cfg.OracleURL)
	str("oracle_api_key", &cfg.OracleAPIKey)
	str("oracle_temperature", &cfg.OracleTemperature)
	integer("oracle_max_tokens", &cfg.OracleMaxTokens)
	str("oracle_thinking", &cfg.OracleThinking)
	duration("oracle_timeout", &cfg.OracleTimeout)
	str("groq_api_key", &cfg.GroqAPIKey)
	duration("vote_pacing", &cfg.VotePacing)
	integer("max_rounds", &cfg.MaxRounds)
	integer("round_delta", &cfg.RoundDelta)
	duration("deadline", &cfg.Deadline)
	str("case", &cfg.CaseID)
}

// flagValues holds pointers to all registered CLI flags.
type flagValues struct {
	configPath        *string
	db                *string
	dev               *bool
	addr              *string
	logOutputDir      *string
	logOracle         *bool
	logDB             *bool
	logWS             *bool
	logDebug          *bool
	oracleProvider    *string
	oracleModel       *string
	oracleOllamaURL   *string
	oracleURL         *string
	oracleAPIKey      *string
	oracleTemperature *string
	oracleMaxTokens   *int
	oracleThinking    *string
	oracleTimeout     *time.Duration
	groqAPIKey        *string
	votePacing        *time.Duration
	maxRounds         *int
	roundDelta        *int
	deadline          *time.Duration
	caseID            *string
}

// registerFlags registers all CLI flags on fs and returns pointers to their values.
// Parse fs after this, then applyTo to layer them over the loaded config.
func registerFlags(fs *flag.FlagSet) flagValues {
	return flagValues{
		configPath:        fs.String("config", "config.json", "path to JSON config file"),
		db:                fs.String("db", "", "database connection string"),
		dev:               fs.Bool("dev", false, "enable development mode (verbose logging, db dumps on error)"),
		addr:              fs.String("addr", "", "HTTP listen address (e.g. :8080)"),
		logOutputDir:      fs.String("log-output-dir", "", "directory for extended log files"),
		logOracle:         fs.Bool("log-oracle", false, "log oracle prompts and replies"),
		logDB:             fs.Bool("log-db", false, "log database dumps"),
		logWS:             fs.Bool("log-ws", false, "log WebSocket messages"),
		logDebug:          fs.Bool("log-debug", false, "enable debug logging"),
		oracleProvider:    fs.String("oracle-provider", "", "oracle provider (ollama|openai|claude|gemini|groq|openai-compatible)"),
		oracleModel:       fs.String("oracle-model", "", "oracle model name"),
		oracleOllamaURL:   fs.String("oracle-ollama-url", "", "Ollama server URL"),
		oracleURL:         fs.String("oracle-url", "", "base URL for openai-compatible provider"),
		oracleAPIKey:      fs.String("oracle-api-key", "", "API key for the oracle provider"),
		oracleTemperature: fs.String("oracle-temperature", "", "sampling temperature 0-1"),
		oracleMaxTokens:   fs.Int("oracle-max-tokens", 0, "maximum tokens per oracle reply"),
		oracleThinking:    fs.String("oracle-thinking", "", "thinking mode: none|low|medium|high|auto"),
		oracleTimeout:     fs.Duration("oracle-timeout", 0, "timeout of a single oracle call"),
		groqAPIKey:        fs.String("groq-api-key", "", "Groq API key"),
		votePacing:        fs.Duration("vote-pacing", 0, "delay between character votes"),
		maxRounds:         fs.Int("max-rounds", 0, "initial discussion round ceiling"),
		roundDelta:        fs.Int("round-delta", 0, "rounds added on each clue phase advance"),
		deadline:          fs.Duration("deadline", 0, "wall-clock discussion limit"),
		caseID:            fs.String("case", "", "case id to play (empty picks one at random)"),
	}
}

// applyTo overlays any CLI flags that were explicitly set onto cfg.
// Flags that were not passed on the command line are ignored (env/JSON values win).
func (fv flagValues) applyTo(fs *flag.FlagSet, cfg *AppConfig) {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "db":
			cfg.DB = *fv.db
		case "dev":
			cfg.Dev = *fv.dev
		case "addr":
			cfg.Addr = *fv.addr
		case "log-output-dir":
			cfg.LogOutputDir = *fv.logOutputDir
		case "log-oracle":
			cfg.LogOracle = *fv.logOracle
		case "log-db":
			cfg.LogDB = *fv.logDB
		case "log-ws":
			cfg.LogWS = *fv.logWS
		case "log-debug":
			cfg.LogDebug = *fv.logDebug
		case "oracle-provider":
			cfg.OracleProvider = *fv.oracleProvider
		case "oracle-model":
			cfg.OracleModel = *fv.oracleModel
		case "oracle-ollama-url":
			cfg.OracleOllamaURL = *fv.oracleOllamaURL
		case "oracle-url":
			cfg.OracleURL = *fv.oracleURL
		case "oracle-api-key":
			cfg.OracleAPIKey = *fv.oracleAPIKey
		case "oracle-temperature":
			cfg.OracleTemperature = *fv.oracleTemperature
		case "oracle-max-tokens":
			cfg.OracleMaxTokens = *fv.oracleMaxTokens
		case "oracle-thinking":
			cfg.OracleThinking = *fv.oracleThinking
		case "oracle-timeout":
			cfg.OracleTimeout = *fv.oracleTimeout
		case "groq-api-key":
			cfg.GroqAPIKey = *fv.groqAPIKey
		case "vote-pacing":
			cfg.VotePacing = *fv.votePacing
		case "max-rounds":
			cfg.MaxRounds = *fv.maxRounds
		case "round-delta":
			cfg.RoundDelta = *fv.roundDelta
		case "deadline":
			cfg.Deadline = *fv.deadline
		case "case":
			cfg.CaseID = *fv.caseID
		}
	})
}

// providerKeyEnv names the variable each SDK reads its key from when none is configured.
var providerKeyEnv = map[string][]string{
	"openai": {"OPENAI_API_KEY"},
	"claude": {"ANTHROPIC_API_KEY"},
	"gemini": {"GOOGLE_API_KEY", "GEMINI_API_KEY"},
}

// validateOracleConfig reports missing provider settings before any game starts.
func validateOracleConfig(cfg AppConfig) error {
	switch cfg.OracleProvider {
	case "":
		return fmt.Errorf("%w: set oracle_provider", ErrConfiguration)
	case "ollama":
		if cfg.OracleModel == "" {
			return fmt.Errorf("%w: oracle_model is required for ollama", ErrConfiguration)
		}
	case "openai", "claude", "gemini":
		if oracleAPIKey(cfg) != "" {
			return nil
		}
		return fmt.Errorf("%w: no API key for %s (set oracle_api_key or %s)",
			ErrConfiguration, cfg.OracleProvider, providerKeyEnv[cfg.OracleProvider][0])
	case "groq":
		if cfg.GroqAPIKey == "" && cfg.OracleAPIKey == "" {
			return fmt.Errorf("%w: groq_api_key is required for groq", ErrConfiguration)
		}
	case "openai-compatible":
		if cfg.OracleURL == "" {
			return fmt.Errorf("%w: oracle_url is required for openai-compatible", ErrConfiguration)
		}
	default:
		return fmt.Errorf("%w: unknown oracle_provider %q", ErrConfiguration, cfg.OracleProvider)
	}
	return nil
}
