package errx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/redis/go-redis/v9"
	"google.golang.org/genai"
)

func TestAppErrorUnwrapAndAs(t *testing.T) {
	root := errors.New("boom")
	err := fmt.Errorf("outer: %w", Retrieval(root))

	if !errors.Is(err, root) {
		t.Fatal("expected errors.Is to reach the root error")
	}
	var appErr *AppError
	if !errors.As(err, &appErr) {
		t.Fatal("expected errors.As to find the AppError")
	}
	if appErr.Kind != KindRetrieval {
		t.Errorf("kind = %q, want %q", appErr.Kind, KindRetrieval)
	}
	if got := appErr.Error(); got != "retrieval failed: boom" {
		t.Errorf("Error() = %q", got)
	}
}

func TestNotConfiguredMatchesSentinel(t *testing.T) {
	err := NotConfigured("vector index")
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatal("not-configured error should match ErrNotConfigured")
	}
	if StatusOf(err) != http.StatusConflict {
		t.Errorf("status = %d", StatusOf(err))
	}
}

func TestWrapRedis(t *testing.T) {
	if WrapRedis(nil) != nil {
		t.Fatal("nil in, nil out")
	}
	if KindOf(WrapRedis(redis.Nil)) != KindNotFound {
		t.Error("redis.Nil should map to not found")
	}
	if KindOf(WrapRedis(errors.New("conn reset"))) != KindRedis {
		t.Error("generic redis error should map to redis kind")
	}
}

func TestWrapGeneration(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Kind
	}{
		{"unauthorized", genai.APIError{Code: http.StatusForbidden, Message: "denied"}, KindAuth},
		{"bad key", genai.APIError{Code: http.StatusBadRequest, Status: "INVALID_ARGUMENT", Message: "API key not valid"}, KindAuth},
		{"quota", fmt.Errorf("send: %w", genai.APIError{Code: http.StatusTooManyRequests}), KindQuota},
		{"deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), KindNetwork},
		{"other", errors.New("model overloaded"), KindGeneration},
		{"already wrapped", Embedding(errors.New("x")), KindEmbedding},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := KindOf(WrapGeneration(tc.err)); got != tc.want {
				t.Errorf("kind = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestPublicMessage(t *testing.T) {
	if got := PublicMessage(Embedding(errors.New("secret detail"))); got != EmbeddingErrorMessage {
		t.Errorf("PublicMessage = %q", got)
	}
	if got := PublicMessage(errors.New("raw")); got != SystemErrorMessage {
		t.Errorf("PublicMessage = %q", got)
	}
}
