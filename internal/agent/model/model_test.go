package model

import (
	"errors"
	"math"
	"strings"
	"testing"

	errx "github.com/Chative-rag-chat/server/internal/core/error"
	"github.com/cloudwego/eino/schema"
)

func TestTrimTail(t *testing.T) {
	turns := []ChatTurn{
		{Query: "q1", Answer: "a1"},
		{Query: "q2", Answer: "a2"},
		{Query: "q3", Answer: "a3"},
		{Query: "q4", Answer: "a4"},
	}

	got := TrimTail(turns, 3)
	if len(got) != 3 || got[0].Query != "q2" || got[2].Query != "q4" {
		t.Fatalf("unexpected tail: %+v", got)
	}

	got[0].Query = "mutated"
	if turns[1].Query != "q2" {
		t.Fatal("TrimTail must copy")
	}

	if got := TrimTail(turns[:2], 3); len(got) != 2 {
		t.Errorf("short history should be returned whole, got %d", len(got))
	}
	if got := TrimTail(turns, 0); len(got) != 0 {
		t.Errorf("zero turns requested, got %d", len(got))
	}
}

func TestReplyText(t *testing.T) {
	ok := Reply{Answer: "Paris."}
	if ok.Text() != "Paris." || !ok.OK() || ok.Kind() != "" {
		t.Fatalf("unexpected success reply rendering: %q", ok.Text())
	}

	failed := Failed(errx.WrapGeneration(errors.New("dial tcp: connection refused")))
	text := failed.Text()
	if !strings.HasPrefix(text, ErrorPrefix) {
		t.Fatalf("missing prefix: %q", text)
	}
	if !strings.Contains(text, "connection refused") {
		t.Errorf("verbose text should carry the cause: %q", text)
	}
	if failed.Kind() != errx.KindGeneration {
		t.Errorf("kind = %q", failed.Kind())
	}

	public := failed.PublicText(false)
	if public != ErrorPrefix+errx.GenerationErrorMessage {
		t.Errorf("public text = %q", public)
	}
}

func TestPriceUsage(t *testing.T) {
	usage := &schema.TokenUsage{PromptTokens: 1_000_000, CompletionTokens: 2_000_000, TotalTokens: 3_000_000}
	c := PriceUsage("gemini-2.5-flash", usage)
	if !near(c.InputUSD, 0.30) || !near(c.OutputUSD, 5.00) || !near(c.TotalUSD(), 5.30) {
		t.Errorf("cost = %+v", c)
	}
	if c.TotalTokens != 3_000_000 {
		t.Errorf("total tokens = %d", c.TotalTokens)
	}
	if got := PriceUsage("gemini-2.5-flash", nil); got.TotalUSD() != 0 {
		t.Error("nil usage should cost nothing")
	}
}

func TestPricingFor(t *testing.T) {
	if p := PricingFor("gemini-2.5-flash-lite"); p.InputPerM != 0.10 {
		t.Errorf("exact match = %+v", p)
	}
	if p := PricingFor("gemini-2.5-flash-preview-05-20"); p.InputPerM != 0.30 {
		t.Errorf("preview variant = %+v", p)
	}
	if p := PricingFor("unknown-model"); p != (Pricing{}) {
		t.Errorf("unknown model pricing = %+v", p)
	}
}

func near(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
