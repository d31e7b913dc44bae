package openai

import (
	"net/http"
	"strings"
	"time"

	"github.com/durquijop/Cerebro-Visas-sub001/internal/infrastructure/resilience"
)

const DefaultBaseURL = "https://api.openai.com/v1"

// Client speaks the OpenAI-compatible REST dialect (/embeddings, /chat/completions).
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	executor   *resilience.Executor
}

type Config struct {
	BaseURL string
	APIKey  string
	// Timeout bounds each HTTP exchange. Zero means 120s; a negative value
	// leaves the caller's context deadline as the only limit.
	Timeout time.Duration
	// Executor is optional; nil runs every call exactly once without a breaker.
	Executor *resilience.Executor
}

func New(cfg Config) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	switch {
	case timeout == 0:
		timeout = 120 * time.Second
	case timeout < 0:
		timeout = 0
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		httpClient: &http.Client{Timeout: timeout},
		executor:   cfg.Executor,
	}
}
