package contract

import "context"

// Researcher is the policy research sub-agent consulted by the orchestrator.
type Researcher interface {
	Run(ctx context.Context, req ResearchRequest) (ResearchResult, error)
}

// DocumentParser extracts traveller and trip data from a staged document.
// Concrete parsers (PDF, image OCR) live with the channel adapters.
type DocumentParser interface {
	ParseTripDocument(ctx context.Context, filePath string) (map[string]any, error)
}

// PolicyIssuer completes policy issuance with the insurance provider after
// payment has been confirmed.
type PolicyIssuer interface {
	Purchase(ctx context.Context, payload map[string]any) (map[string]any, error)
}
