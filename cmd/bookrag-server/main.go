// Package main is the entry point for the bookrag server.
package main

import (
	"github.com/joho/godotenv"
	_ "go.uber.org/automaxprocs/maxprocs"

	"github.com/kart-io/bookrag/internal/bookrag"
	// Register the available LLM provider factories.
	_ "github.com/kart-io/bookrag/pkg/llm/ollama"
	_ "github.com/kart-io/bookrag/pkg/llm/openai"
)

func main() {
	// Optional .env for local development; absence is fine.
	_ = godotenv.Load()

	bookrag.NewApp().Run()
}
