package core

import "testing"

func TestParseEnvironment(t *testing.T) {
	cases := map[string]Environment{
		"production":  Production,
		" PROD ":      Production,
		"staging":     Staging,
		"test":        Testing,
		"testing":     Testing,
		"development": Development,
		"":            Development,
		"whatever":    Development,
	}
	for in, want := range cases {
		if got := ParseEnvironment(in); got != want {
			t.Errorf("ParseEnvironment(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestExposeErrorDetail(t *testing.T) {
	if Production.ExposeErrorDetail() {
		t.Error("production should hide error detail")
	}
	if !Development.ExposeErrorDetail() {
		t.Error("development should expose error detail")
	}
}
