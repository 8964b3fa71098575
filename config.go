package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"energy-nl-query/tsquery"
)

const defaultOpenRouterURL = "https://openrouter.ai/api/v1/chat/completions"

// Config holds everything main needs to wire the server.
type Config struct {
	Addr            string
	IndexDir        string
	DefaultLanguage tsquery.Language
	MaxDocs         int
	BatchWorkers    int

	OpenRouterKey   string
	OpenRouterModel string
	OpenRouterURL   string
}

// LoadConfig parses flags from args. Environment variables provide the
// defaults, so an explicit flag always wins.
func LoadConfig(args []string) (Config, error) {
	fs := flag.NewFlagSet("energy-nl-query", flag.ContinueOnError)
	addr := fs.String("addr", ":"+envOr("PORT", "6071"), "listen address")
	indexDir := fs.String("index", envOr("ZOEKT_INDEX_DIR", defaultIndexDir()), "zoekt index directory with energy documents (empty disables retrieval)")
	lang := fs.String("lang", envOr("NLQ_DEFAULT_LANGUAGE", "flux"), "default output language: flux or influxql")
	maxDocs := fs.Int("max-docs", envInt("NLQ_MAX_DOCS", 5), "documents retrieved per ask")
	workers := fs.Int("batch-workers", envInt("NLQ_BATCH_WORKERS", 4), "concurrent translations per batch request")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	language, err := tsquery.ParseLanguage(*lang)
	if err != nil {
		return Config{}, fmt.Errorf("-lang: %w", err)
	}
	if *maxDocs < 1 {
		return Config{}, fmt.Errorf("-max-docs must be positive, got %d", *maxDocs)
	}
	if *workers < 1 {
		return Config{}, fmt.Errorf("-batch-workers must be positive, got %d", *workers)
	}

	return Config{
		Addr:            *addr,
		IndexDir:        *indexDir,
		DefaultLanguage: language,
		MaxDocs:         *maxDocs,
		BatchWorkers:    *workers,
		OpenRouterKey:   os.Getenv("OPENROUTER_API_KEY"),
		OpenRouterModel: envOr("OPENROUTER_MODEL", "mistralai/mistral-7b-instruct:free"),
		OpenRouterURL:   envOr("OPENROUTER_URL", defaultOpenRouterURL),
	}, nil
}

// defaultIndexDir is ~/.zoekt, or empty (retrieval disabled) when there is
// no home directory to resolve it against.
func defaultIndexDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		log.Printf("⚠️ No default index directory: %v", err)
		return ""
	}
	return filepath.Join(home, ".zoekt")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}
