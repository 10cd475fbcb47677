package metadata

// GeminiModel describes a model the fill command can use and its list price.
type GeminiModel struct {
	ID                      string
	Label                   string
	InputPerMillion         float64
	OutputPerMillion        float64
	ReasoningBilledAsOutput bool
}

var GeminiModels = []GeminiModel{
	{
		ID:                      "gemini-2.5-flash",
		Label:                   "Gemini 2.5 Flash",
		InputPerMillion:         0.30,
		OutputPerMillion:        2.50,
		ReasoningBilledAsOutput: true,
	},
	{
		ID:                      "gemini-2.5-pro",
		Label:                   "Gemini 2.5 Pro",
		InputPerMillion:         1.25,
		OutputPerMillion:        10.00,
		ReasoningBilledAsOutput: true,
	},
	{
		ID:                      "gemini-3-flash-preview",
		Label:                   "Gemini 3 Flash (preview)",
		InputPerMillion:         0.50,
		OutputPerMillion:        3.00,
		ReasoningBilledAsOutput: true,
	},
}

const (
	DefaultGeminiInputPerMillion  = 2.00
	DefaultGeminiOutputPerMillion = 12.00
)

func GeminiModelIDs() []string {
	ids := make([]string, 0, len(GeminiModels))
	for _, m := range GeminiModels {
		ids = append(ids, m.ID)
	}
	return ids
}

// GeminiPricing returns the pricing for modelID, or conservative defaults
// and false when the model is not listed.
func GeminiPricing(modelID string) (GeminiModel, bool) {
	for _, m := range GeminiModels {
		if m.ID == modelID {
			return m, true
		}
	}
	return GeminiModel{
		ID:                      "default",
		Label:                   "Default Gemini",
		InputPerMillion:         DefaultGeminiInputPerMillion,
		OutputPerMillion:        DefaultGeminiOutputPerMillion,
		ReasoningBilledAsOutput: true,
	}, false
}

// Estimate is an approximate dollar cost for one run.
type Estimate struct {
	ReasoningTokens int
	Cost            float64
}

// EstimateCost prices token counts for modelID. Reasoning tokens are the
// part of total not accounted for by prompt and candidates.
func EstimateCost(modelID string, prompt, candidates, total int) Estimate {
	m, _ := GeminiPricing(modelID)
	reasoning := max(0, total-(prompt+candidates))
	output := candidates
	if m.ReasoningBilledAsOutput {
		output += reasoning
	}
	cost := float64(prompt)/1_000_000*m.InputPerMillion + float64(output)/1_000_000*m.OutputPerMillion
	return Estimate{ReasoningTokens: reasoning, Cost: cost}
}
