package main

import (
	"log"
	"net/http"
	"os"

	"github.com/gorilla/handlers"
	"github.com/sourcegraph/zoekt/shards"

	"energy-nl-query/tsquery"
)

func main() {
	cfg, err := LoadConfig(os.Args[1:])
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	log.Printf("Starting energy NL Query Server on %s", cfg.Addr)
	log.Printf("Default output language: %s", cfg.DefaultLanguage)

	translator, err := tsquery.New()
	if err != nil {
		log.Fatalf("Failed to build translator: %v", err)
	}

	var retriever *Retriever
	if cfg.IndexDir == "" {
		log.Printf("⚠️ Document retrieval disabled: no index directory")
	} else {
		searcher, err := shards.NewDirectorySearcher(cfg.IndexDir)
		if err != nil {
			log.Printf("⚠️ Document retrieval disabled: %v", err)
		} else {
			defer searcher.Close()
			retriever = NewRetriever(searcher, cfg.MaxDocs)
			log.Printf("Index directory: %s", cfg.IndexDir)
		}
	}

	nlServer := NewNLQueryServer(cfg, translator, retriever, NewAnswerer(cfg))
	logged := handlers.LoggingHandler(os.Stdout, nlServer.Router())

	log.Printf("Translate API: http://localhost%s/api/translate?q=peak consumption today", cfg.Addr)
	if err := http.ListenAndServe(cfg.Addr, logged); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
