package metadata

import (
	"math"
	"testing"
)

func TestGeminiPricing_Default(t *testing.T) {
	m, ok := GeminiPricing("unknown-model")
	if ok {
		t.Fatalf("expected default pricing for unknown model")
	}
	if m.InputPerMillion != DefaultGeminiInputPerMillion || m.OutputPerMillion != DefaultGeminiOutputPerMillion {
		t.Fatalf("unexpected default gemini pricing: %+v", m)
	}
}

func TestGeminiModelIDs_IncludesDefaultModel(t *testing.T) {
	found := false
	for _, id := range GeminiModelIDs() {
		if id == "gemini-2.5-flash" {
			found = true
		}
	}
	if !found {
		t.Fatal("default translate model missing from catalog")
	}
}

func TestEstimateCost(t *testing.T) {
	// 1M prompt, 1M candidates, 1M reasoning on the default price list.
	e := EstimateCost("unknown-model", 1_000_000, 1_000_000, 3_000_000)
	if e.ReasoningTokens != 1_000_000 {
		t.Fatalf("reasoning = %d", e.ReasoningTokens)
	}
	want := DefaultGeminiInputPerMillion + 2*DefaultGeminiOutputPerMillion
	if math.Abs(e.Cost-want) > 1e-9 {
		t.Fatalf("cost = %f, want %f", e.Cost, want)
	}
	if EstimateCost("gemini-2.5-flash", 10, 10, 5).ReasoningTokens != 0 {
		t.Fatal("negative reasoning must clamp to zero")
	}
}
