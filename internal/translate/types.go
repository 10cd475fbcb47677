package translate

// Segment is one subtitle cell sent to the model. ID is the CSV record index.
type Segment struct {
	ID   int    `json:"id"`
	Text string `json:"text"`
}

// Request is the JSON document sent to the model.
type Request struct {
	ContextBefore []Segment `json:"context_before"`
	Target        []Segment `json:"target"`
	ContextAfter  []Segment `json:"context_after"`
}

// Translation is one translated segment in the model output.
type Translation struct {
	ID   int    `json:"id"`
	Text string `json:"text"`
}

// Response is the JSON document expected back from the model.
type Response struct {
	Translations []Translation `json:"translations"`
	Usage        Usage         `json:"-"` // filled from response metadata
}

// Usage holds token usage information.
type Usage struct {
	PromptTokenCount     int
	CandidatesTokenCount int
	TotalTokenCount      int
}

func (u *Usage) add(o Usage) {
	u.PromptTokenCount += o.PromptTokenCount
	u.CandidatesTokenCount += o.CandidatesTokenCount
	u.TotalTokenCount += o.TotalTokenCount
}
