package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

const groqBaseURL = "https://api.groq.com/openai/v1"

// Oracle is the text-generation service consulted for narrative decisions.
// It returns a single completion for a system and a user instruction.
type Oracle interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

type llmOracle struct {
	llm      llms.Model
	callOpts []llms.CallOption
	timeout  time.Duration
}

func (o *llmOracle) Complete(ctx context.Context, system, user string) (string, error) {
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, user),
	}

	var fullText strings.Builder
	opts := append(slices.Clip(o.callOpts), llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
		fullText.Write(chunk)
		return nil
	}))

	resp, err := o.llm.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(fullText.String())
	if text == "" && resp != nil && len(resp.Choices) > 0 {
		text = strings.TrimSpace(resp.Choices[0].Content)
	}
	return text, nil
}

// loggingOracle records every exchange in the oracle log.
type loggingOracle struct {
	next Oracle
}

func (o loggingOracle) Complete(ctx context.Context, system, user string) (string, error) {
	start := time.Now()
	reply, err := o.next.Complete(ctx, system, user)
	LogOracleExchange(system, user, reply, err, time.Since(start))
	return reply, err
}

// buildCallOpts builds LLM call options from the config.
func buildCallOpts(cfg AppConfig) []llms.CallOption {
	var opts []llms.CallOption

	if cfg.OracleTemperature != "" {
		if f, err := strconv.ParseFloat(cfg.OracleTemperature, 64); err == nil {
			opts = append(opts, llms.WithTemperature(f))
			log.Printf("Oracle: temperature=%.2f", f)
		} else {
			log.Printf("Oracle: invalid temperature %q: %v", cfg.OracleTemperature, err)
		}
	}

	if cfg.OracleMaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(cfg.OracleMaxTokens))
		log.Printf("Oracle: max_tokens=%d", cfg.OracleMaxTokens)
	}

	if cfg.OracleThinking != "" {
		mode := llms.ThinkingMode(cfg.OracleThinking)
		switch mode {
		case llms.ThinkingModeNone, llms.ThinkingModeLow, llms.ThinkingModeMedium, llms.ThinkingModeHigh, llms.ThinkingModeAuto:
			opts = append(opts, llms.WithThinkingMode(mode))
			log.Printf("Oracle: thinking=%s", mode)
		default:
			log.Printf("Oracle: invalid thinking %q (valid: none, low, medium, high, auto)", cfg.OracleThinking)
		}
	}

	return opts
}

// newOracle builds the configured provider. Missing settings yield ErrConfiguration.
func newOracle(cfg AppConfig) (Oracle, error) {
	if err := validateOracleConfig(cfg); err != nil {
		return nil, err
	}
	llm, err := newLLM(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConfiguration, cfg.OracleProvider, err)
	}
	var o Oracle = &llmOracle{llm: llm, callOpts: buildCallOpts(cfg), timeout: cfg.OracleTimeout}
	if appLogger != nil && appLogger.logOracle {
		o = loggingOracle{next: o}
	}
	return o, nil
}

func newLLM(cfg AppConfig) (llms.Model, error) {
	model := cfg.OracleModel

	switch cfg.OracleProvider {
	case "ollama":
		log.Printf("Oracle: Ollama model=%s url=%s", model, cfg.OracleOllamaURL)
		return ollama.New(ollama.WithModel(model), ollama.WithServerURL(cfg.OracleOllamaURL))
	case "openai":
		opts := []openai.Option{}
		if model != "" {
			opts = append(opts, openai.WithModel(model))
		}
		if cfg.OracleAPIKey != "" {
			opts = append(opts, openai.WithToken(cfg.OracleAPIKey))
		}
		log.Printf("Oracle: OpenAI model=%s", model)
		return openai.New(opts...)
	case "claude":
		opts := []anthropic.Option{}
		if model != "" {
			opts = append(opts, anthropic.WithModel(model))
		}
		if cfg.OracleAPIKey != "" {
			opts = append(opts, anthropic.WithToken(cfg.OracleAPIKey))
		}
		log.Printf("Oracle: Claude model=%s", model)
		return anthropic.New(opts...)
	case "gemini":
		opts := []googleai.Option{}
		if model != "" {
			opts = append(opts, googleai.WithDefaultModel(model))
		}
		if key := oracleAPIKey(cfg); key != "" {
			opts = append(opts, googleai.WithAPIKey(key))
		}
		log.Printf("Oracle: Gemini model=%s", model)
		return googleai.New(context.Background(), opts...)
	case "groq":
		key := cfg.GroqAPIKey
		if key == "" {
			key = cfg.OracleAPIKey
		}
		log.Printf("Oracle: Groq model=%s", model)
		return openai.New(
			openai.WithModel(model),
			openai.WithBaseURL(groqBaseURL),
			openai.WithToken(key),
		)
	case "openai-compatible":
		opts := []openai.Option{
			openai.WithModel(model),
			openai.WithBaseURL(cfg.OracleURL),
		}
		if cfg.OracleAPIKey != "" {
			opts = append(opts, openai.WithToken(cfg.OracleAPIKey))
		}
		log.Printf("Oracle: openai-compatible model=%s url=%s", model, cfg.OracleURL)
		return openai.New(opts...)
	}
	return nil, fmt.Errorf("unknown provider %q", cfg.OracleProvider)
}

// oracleAPIKey returns the configured key or the provider's own env var.
func oracleAPIKey(cfg AppConfig) string {
	if cfg.OracleAPIKey != "" {
		return cfg.OracleAPIKey
	}
	for _, name := range providerKeyEnv[cfg.OracleProvider] {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}
