package prompt

import (
	_ "embed"
	"strings"
)

var (
	//go:embed template/concierge.txt
	conciergeRaw string

	//go:embed template/researcher.txt
	researcherRaw string
)

// PromptSet holds loaded prompt content.
type PromptSet struct {
	Concierge  string
	Researcher string
}

// LoadPromptSet returns a PromptSet with trimmed prompt strings.
// Safe to call concurrently; the embed is compile-time and trimming is cheap.
func LoadPromptSet() PromptSet {
	return PromptSet{
		Concierge:  strings.TrimSpace(conciergeRaw),
		Researcher: strings.TrimSpace(researcherRaw),
	}
}
