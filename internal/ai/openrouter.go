package ai

import (
	"os"
	"strings"
)

const defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"

type openrouterConfig struct {
	APIKey         string `json:"api_key"`
	BaseURL        string `json:"base_url"`
	HTTPReferer    string `json:"http_referer"`
	XTitle         string `json:"x_title"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

func createOpenRouterFactory(args interface{}) (IProvider, error) {
	cfg := &openrouterConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultOpenRouterBaseURL
	}
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		key = strings.TrimSpace(os.Getenv("OPENROUTER_API_KEY"))
	}
	headers := map[string]string{}
	if v := strings.TrimSpace(cfg.HTTPReferer); v != "" {
		headers["HTTP-Referer"] = v
	}
	if v := strings.TrimSpace(cfg.XTitle); v != "" {
		headers["X-Title"] = v
	}
	return &openAIProvider{
		name:    "openrouter",
		apiKey:  key,
		baseURL: baseURL,
		headers: headers,
		client:  newHTTPClient(cfg.TimeoutSeconds),
	}, nil
}

func init() {
	Register("openrouter", createOpenRouterFactory)
}
