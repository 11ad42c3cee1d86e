package model

import "time"

// ================ Config ================
type ConversationConfig struct {
	TTL          string `envconfig:"CONVERSATION_TTL" default:"24h"`
	HistoryTurns int    `envconfig:"RETRIEVAL_HISTORY_TURNS" default:"3"`
}

// TTLDuration parses TTL, returning zero (no expiry) for an empty value.
func (c ConversationConfig) TTLDuration() (time.Duration, error) {
	if c.TTL == "" {
		return 0, nil
	}
	return time.ParseDuration(c.TTL)
}

type RetrievalConfig struct {
	TopK int `envconfig:"RETRIEVAL_TOP_K" default:"3"`
}

type ResponseModelConfig struct {
	Model          string  `envconfig:"RESPONSE_MODEL" default:"gemini-2.5-flash"`
	MaxTokens      int     `envconfig:"RESPONSE_MAX_TOKENS" default:"2000"`
	Temperature    float32 `envconfig:"RESPONSE_TEMPERATURE" default:"0.4"`
	ThinkingBudget int     `envconfig:"RESPONSE_THINKING_BUDGET" default:"0"`
}

type EmbedderConfig struct {
	BaseURL   string `envconfig:"EMBEDDER_BASE_URL" default:"http://localhost:8081/v1"`
	APIKey    string `envconfig:"EMBEDDER_API_KEY"`
	Model     string `envconfig:"EMBEDDER_MODEL" default:"sentence-transformers/all-MiniLM-L6-v2"`
	Dimension int    `envconfig:"EMBEDDER_DIMENSION" default:"384"`
	Timeout   string `envconfig:"EMBEDDER_TIMEOUT" default:"30s"`
}

type ServerConfig struct {
	Addr           string `envconfig:"SERVER_ADDR" default:":8080"`
	MaxUploadMB    int64  `envconfig:"SERVER_MAX_UPLOAD_MB" default:"512"`
	RequestTimeout string `envconfig:"SERVER_REQUEST_TIMEOUT" default:"120s"`
}
