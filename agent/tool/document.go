package tool

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/aurora-concierge/agent/contract"
)

var (
	wordDateRe   = regexp.MustCompile(`\b(\d{1,2}\s+[A-Za-z]{3,9}\s+\d{2,4})\b`)
	isoDateRe    = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})\b`)
	upperWordRe  = regexp.MustCompile(`\b([A-Z]{3,})\b`)
	passengerRe  = regexp.MustCompile(`Passenger\s*[:\-]\s*(.+)`)
	moneyRe      = regexp.MustCompile(`(?:USD|SGD|S\$|US\$)?\s*([0-9]{2,}(?:,[0-9]{3})*(?:\.[0-9]{2})?)`)
	nameSplitRe  = regexp.MustCompile(`,|/|\n`)
	docDateForms = []string{"2 January 2006", "2 Jan 2006", "2006-01-02", "02-01-2006"}
)

// TripDocumentParser extracts traveller, destination, date, and budget hints
// from itinerary PDFs staged by the channel adapter.
type TripDocumentParser struct{}

var _ contractx.DocumentParser = (*TripDocumentParser)(nil)

func (p *TripDocumentParser) ParseTripDocument(_ context.Context, filePath string) (map[string]any, error) {
	if _, err := os.Stat(filePath); err != nil {
		return nil, fmt.Errorf("%w: file not found: %s", contractx.ErrValidation, filePath)
	}
	if !strings.EqualFold(filepath.Ext(filePath), ".pdf") {
		return nil, fmt.Errorf("%w: only PDF documents are supported", contractx.ErrValidation)
	}

	text, err := extractPDFText(filePath)
	if err != nil {
		return nil, err
	}

	dates := extractDates(text)
	destinations := extractDestinations(text)
	passengers := extractPassengerNames(text)

	log.Info().
		Str("file", filepath.Base(filePath)).
		Int("dates", len(dates)).
		Int("destinations", len(destinations)).
		Int("passengers", len(passengers)).
		Msg("trip document parsed")

	result := map[string]any{
		"file":         filepath.Base(filePath),
		"dates":        dates,
		"destinations": destinations,
		"passengers":   passengers,
		"raw_preview":  preview(text, 1000),
	}
	if cost, ok := estimateTripCost(text); ok {
		result["estimated_trip_cost"] = cost
	}
	return result, nil
}

func extractPDFText(path string) (string, error) {
	file, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer file.Close()

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}
	raw, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return string(raw), nil
}

func extractDates(text string) []string {
	var matches []string
	for _, re := range []*regexp.Regexp{wordDateRe, isoDateRe} {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			matches = append(matches, m[1])
		}
	}

	seen := map[string]struct{}{}
	var parsed []string
	for _, item := range matches {
		for _, layout := range docDateForms {
			t, err := time.Parse(layout, item)
			if err != nil {
				continue
			}
			formatted := t.Format("2006-01-02")
			if _, ok := seen[formatted]; !ok {
				seen[formatted] = struct{}{}
				parsed = append(parsed, formatted)
			}
			break
		}
	}
	sort.Strings(parsed)
	return parsed
}

// extractDestinations keeps departure/arrival lines plus uppercase airport
// codes, deduplicated in first-seen order.
func extractDestinations(text string) []string {
	var candidates []string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		lower := strings.ToLower(trimmed)
		if strings.Contains(lower, "depart") || strings.Contains(lower, "arrive") {
			candidates = append(candidates, trimmed)
		}
	}
	for _, m := range upperWordRe.FindAllStringSubmatch(text, -1) {
		candidates = append(candidates, m[1])
	}
	return dedupeHead(candidates, 10)
}

func extractPassengerNames(text string) []string {
	var names []string
	for _, m := range passengerRe.FindAllStringSubmatch(text, -1) {
		for _, token := range nameSplitRe.Split(m[1], -1) {
			if trimmed := strings.TrimSpace(token); trimmed != "" {
				names = append(names, trimmed)
			}
		}
	}
	return dedupeHead(names, 6)
}

func estimateTripCost(text string) (float64, bool) {
	var maxAmount float64
	found := false
	for _, m := range moneyRe.FindAllStringSubmatch(text, -1) {
		value, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
		if err != nil {
			continue
		}
		if !found || value > maxAmount {
			maxAmount = value
			found = true
		}
	}
	return maxAmount, found
}

func dedupeHead(values []string, limit int) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
		if len(out) == limit {
			break
		}
	}
	return out
}

func preview(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	return text[:limit]
}

// DocumentTool exposes trip document parsing to the concierge.
type DocumentTool struct {
	parser contractx.DocumentParser
}

func NewDocumentTool(parser contractx.DocumentParser) *DocumentTool {
	return &DocumentTool{parser: parser}
}

func (t *DocumentTool) Name() string { return NameDocumentIngest }

func (t *DocumentTool) Description() string {
	return "Extract traveler, destination, and date data from an uploaded itinerary or booking."
}

func (t *DocumentTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"file_path": map[string]any{
				"type":        "string",
				"description": "Absolute path to the document staged by the channel adapter",
			},
		},
		"required": []string{"file_path"},
	}
}

func (t *DocumentTool) Invoke(ctx context.Context, input map[string]any) (any, error) {
	filePath := stringArg(input, "file_path")
	if filePath == "" {
		return nil, fmt.Errorf("%w: file_path is required", contractx.ErrValidation)
	}
	return t.parser.ParseTripDocument(ctx, filePath)
}
