package commands

import (
	"os"

	"github.com/charmbracelet/log"
)

// EmbeddingConfig contains common flag definitions for embedding configuration
type EmbeddingConfig struct {
	// Provider is the embedding provider to use
	Provider string `help:"Embedding provider to use" default:"llamacpp" enum:"llamacpp,ollama,lmstudio,openai,gemini" env:"EMBEDDING_PROVIDER"`
	// LlamaCppModel is the specific LLaMA.cpp embedding model name
	LlamaCppModel string `help:"Specific LLaMA.cpp embedding model name" env:"LLAMACPP_EMBEDDING_MODEL"`
	// LlamaCppURL is the base URL of the LLaMA.cpp server
	LlamaCppURL string `help:"LLaMA.cpp server URL" env:"LLAMACPP_URL"`
	// OllamaModel is the Ollama embedding model name
	OllamaModel string `help:"Ollama embedding model name" default:"nomic-embed-text" env:"OLLAMA_EMBEDDING_MODEL"`
	// OllamaEndpoint is the Ollama OpenAI-compatible endpoint
	OllamaEndpoint string `help:"Ollama OpenAI-compatible endpoint" default:"http://localhost:11434/v1" env:"OLLAMA_ENDPOINT"`
	// LMStudioModel is the LM Studio embedding model name
	LMStudioModel string `help:"LM Studio embedding model name" env:"LMSTUDIO_EMBEDDING_MODEL"`
	// LMStudioEndpoint is the LM Studio OpenAI-compatible endpoint
	LMStudioEndpoint string `help:"LM Studio OpenAI-compatible endpoint" default:"http://localhost:1234/v1" env:"LMSTUDIO_ENDPOINT"`
	// OpenAIAPIKey is the API key for OpenAI
	OpenAIAPIKey string `help:"OpenAI API key" env:"OPENAI_API_KEY"`
	// OpenAIModel is the OpenAI embedding model name
	OpenAIModel string `help:"OpenAI embedding model name" default:"text-embedding-3-small" env:"OPENAI_EMBEDDING_MODEL"`
	// OpenAIEndpoint overrides the OpenAI API endpoint
	OpenAIEndpoint string `help:"OpenAI-compatible API endpoint" env:"OPENAI_ENDPOINT"`
	// GeminiAPIKey is the API key for Gemini
	GeminiAPIKey string `help:"Google Gemini API key" env:"GEMINI_API_KEY"`
	// GeminiModel is the Gemini embedding model name
	GeminiModel string `help:"Gemini embedding model name" env:"GEMINI_EMBEDDING_MODEL"`
}

// CommonConfig contains configuration common to all commands
type CommonConfig struct {
	// DataDir is the directory holding the search artifacts
	DataDir string `help:"Path to the search artifacts directory" default:"./data" env:"CATALOG_DATA_DIR"`
	// LogLevel is the logging level to use
	LogLevel string `help:"Log level (debug, info, warn, error)" default:"warn" enum:"debug,info,warn,error"`
}

// SetupLogger creates the process logger from the common flags.
func SetupLogger(config CommonConfig) *log.Logger {
	logger := log.New(os.Stderr)
	level, err := log.ParseLevel(config.LogLevel)
	if err != nil {
		logger.Fatal("Invalid log level", "error", err)
	}
	logger.SetLevel(level)
	return logger
}
