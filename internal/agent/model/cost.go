package model

import (
	"strings"

	"github.com/cloudwego/eino/schema"
)

// Pricing is the USD price per 1M text tokens.
type Pricing struct {
	InputPerM  float64
	OutputPerM float64
}

// Gemini standard text pricing.
var geminiPricing = map[string]Pricing{
	"gemini-2.5-pro":        {InputPerM: 1.25, OutputPerM: 10.00},
	"gemini-2.5-flash":      {InputPerM: 0.30, OutputPerM: 2.50},
	"gemini-2.5-flash-lite": {InputPerM: 0.10, OutputPerM: 0.40},
	"gemini-2.0-flash":      {InputPerM: 0.10, OutputPerM: 0.40},
}

// PricingFor returns the pricing of modelName. Dated or preview variants
// ("gemini-2.5-flash-preview-05-20") resolve to the longest known prefix;
// unknown models are free.
func PricingFor(modelName string) Pricing {
	if p, ok := geminiPricing[modelName]; ok {
		return p
	}
	best := ""
	for name := range geminiPricing {
		if strings.HasPrefix(modelName, name+"-") && len(name) > len(best) {
			best = name
		}
	}
	return geminiPricing[best]
}

// UsageCost is the priced token usage of one model call.
type UsageCost struct {
	Model            string  `json:"model"`
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	InputUSD         float64 `json:"input_usd"`
	OutputUSD        float64 `json:"output_usd"`
}

func (c UsageCost) TotalUSD() float64 {
	return c.InputUSD + c.OutputUSD
}

// PriceUsage prices usage reported by modelName. A nil usage costs nothing.
func PriceUsage(modelName string, usage *schema.TokenUsage) UsageCost {
	c := UsageCost{Model: modelName}
	if usage == nil {
		return c
	}
	p := PricingFor(modelName)
	c.PromptTokens = usage.PromptTokens
	c.CompletionTokens = usage.CompletionTokens
	c.TotalTokens = usage.TotalTokens
	c.InputUSD = p.InputPerM * float64(usage.PromptTokens) / 1_000_000
	c.OutputUSD = p.OutputPerM * float64(usage.CompletionTokens) / 1_000_000
	return c
}
