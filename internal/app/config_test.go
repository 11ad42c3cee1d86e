package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/Chative-rag-chat/server/internal/agent/model"
	"github.com/Chative-rag-chat/server/internal/agent/repo"
	"github.com/Chative-rag-chat/server/internal/core"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "")
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Response.Model != "gemini-2.5-flash" || cfg.Response.MaxTokens != 2000 {
		t.Errorf("response config = %+v", cfg.Response)
	}
	if cfg.Embedder.Model != "sentence-transformers/all-MiniLM-L6-v2" || cfg.Embedder.Dimension != 384 {
		t.Errorf("embedder config = %+v", cfg.Embedder)
	}
	if cfg.Retrieval.TopK != 3 || cfg.Conversation.HistoryTurns != 3 {
		t.Errorf("retrieval = %+v, conversation = %+v", cfg.Retrieval, cfg.Conversation)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("server addr = %q", cfg.Server.Addr)
	}
	if cfg.Env() != core.Development {
		t.Errorf("env = %q", cfg.Env())
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("RESPONSE_MODEL", "gemini-2.5-pro")
	t.Setenv("RETRIEVAL_TOP_K", "5")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("SERVER_REQUEST_TIMEOUT", "45s")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Response.Model != "gemini-2.5-pro" || cfg.Retrieval.TopK != 5 {
		t.Errorf("overrides not applied: %+v %+v", cfg.Response, cfg.Retrieval)
	}
	if !cfg.Redis.Enabled() {
		t.Error("redis should be enabled")
	}
	if d, _ := cfg.RequestTimeout(); d.Seconds() != 45 {
		t.Errorf("request timeout = %v", d)
	}
	if cfg.Env().ExposeErrorDetail() {
		t.Error("production must hide error detail")
	}
}

func TestLoadConfigRejectsBadDurations(t *testing.T) {
	t.Setenv("CONVERSATION_TTL", "a while")
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env")); err == nil {
		t.Fatal("expected error for bad CONVERSATION_TTL")
	}
}

func TestNewHistoryRepositorySelectsBackend(t *testing.T) {
	ctx := context.Background()

	cfg := &AppConfig{Conversation: model.ConversationConfig{TTL: "1h"}}
	r, closeFn, err := NewHistoryRepository(ctx, cfg)
	if err != nil {
		t.Fatalf("memory: %v", err)
	}
	if _, ok := r.(*repo.MemoryHistoryRepository); !ok {
		t.Errorf("expected memory repository, got %T", r)
	}
	_ = closeFn()

	mr := miniredis.RunT(t)
	cfg.Redis.URL = "redis://" + mr.Addr()
	r, closeFn, err = NewHistoryRepository(ctx, cfg)
	if err != nil {
		t.Fatalf("redis: %v", err)
	}
	defer closeFn()
	if _, ok := r.(*repo.RedisHistoryRepository); !ok {
		t.Errorf("expected redis repository, got %T", r)
	}
}
