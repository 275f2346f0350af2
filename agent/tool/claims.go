package tool

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// ClaimRecord is one row of the historical claims dataset.
type ClaimRecord struct {
	Destination string
	Activity    string
	Season      string
	ClaimAmount float64
	Plan        string
	AgeBand     string
}

// LoadClaimsData reads the claims CSV. A missing file yields an empty dataset
// rather than an error; the tool then answers with its limited-data fallback.
func LoadClaimsData(path string) ([]ClaimRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn().Str("path", path).Msg("claims data file missing")
			return nil, nil
		}
		return nil, fmt.Errorf("open claims data: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read claims data: %w", err)
	}
	if len(rows) < 2 {
		return nil, nil
	}

	index := map[string]int{}
	for i, column := range rows[0] {
		index[strings.TrimSpace(strings.ToLower(column))] = i
	}
	pick := func(row []string, column string) string {
		i, ok := index[column]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	records := make([]ClaimRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		amount, err := strconv.ParseFloat(pick(row, "claim_amount"), 64)
		if err != nil {
			amount = 0
		}
		records = append(records, ClaimRecord{
			Destination: pick(row, "destination"),
			Activity:    pick(row, "activity"),
			Season:      pick(row, "season"),
			ClaimAmount: amount,
			Plan:        pick(row, "plan"),
			AgeBand:     pick(row, "age_band"),
		})
	}
	return records, nil
}

// ClaimsInsight answers risk questions over the claims dataset and maps risk
// levels to plan tiers.
type ClaimsInsight struct {
	records []ClaimRecord
}

func NewClaimsInsight(records []ClaimRecord) *ClaimsInsight {
	return &ClaimsInsight{records: records}
}

// RiskSummary aggregates claims matching the destination/activity filters.
// Filters are case-insensitive substring matches.
func (c *ClaimsInsight) RiskSummary(destination, activity string) map[string]any {
	filters := map[string]any{}
	subset := c.records
	if destination != "" {
		subset = filterRecords(subset, func(r ClaimRecord) bool {
			return containsFold(r.Destination, destination)
		})
		filters["destination"] = destination
	}
	if activity != "" {
		subset = filterRecords(subset, func(r ClaimRecord) bool {
			return containsFold(r.Activity, activity)
		})
		filters["activity"] = activity
	}

	if len(subset) == 0 {
		return map[string]any{
			"filters": filters,
			"message": "No claims data available for the specified filters.",
		}
	}

	amounts := make([]float64, len(subset))
	total := 0.0
	maxClaim := subset[0].ClaimAmount
	for i, r := range subset {
		amounts[i] = r.ClaimAmount
		total += r.ClaimAmount
		if r.ClaimAmount > maxClaim {
			maxClaim = r.ClaimAmount
		}
	}

	return map[string]any{
		"filters": filters,
		"summary": map[string]any{
			"claim_count":   len(subset),
			"average_claim": round2(total / float64(len(subset))),
			"p90_claim":     round2(quantile(amounts, 0.9)),
			"max_claim":     round2(maxClaim),
		},
		"seasonality":    seasonality(subset),
		"top_activities": topActivities(subset),
	}
}

// RecommendPlan maps the risk summary to a tier: platinum for heavy-tail
// destinations, gold for elevated averages, silver otherwise.
func (c *ClaimsInsight) RecommendPlan(destination, activity string, tripCost *float64) map[string]any {
	summary := c.RiskSummary(destination, activity)
	stats, ok := summary["summary"].(map[string]any)
	if !ok {
		return map[string]any{
			"recommendation": "silver",
			"reason":         "Default recommendation due to limited data.",
		}
	}

	avgClaim := stats["average_claim"].(float64)
	p90Claim := stats["p90_claim"].(float64)

	var tier, reason string
	switch {
	case p90Claim > 50000:
		tier = "platinum"
		reason = "High 90th percentile claim amount; recommend premium medical coverage"
	case avgClaim > 20000:
		tier = "gold"
		reason = "Elevated average claim cost; gold tier balances value and protection"
	default:
		tier = "silver"
		reason = "Moderate claim history; silver tier suffices for most travelers"
	}

	if tripCost != nil && *tripCost > p90Claim {
		reason += " and upgrade trip cancellation coverage to match trip cost."
	}

	return map[string]any{
		"filters":        summary["filters"],
		"summary":        stats,
		"seasonality":    summary["seasonality"],
		"recommendation": tier,
		"reason":         reason,
	}
}

func filterRecords(records []ClaimRecord, keep func(ClaimRecord) bool) []ClaimRecord {
	var out []ClaimRecord
	for _, r := range records {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

// quantile uses linear interpolation between closest ranks.
func quantile(values []float64, q float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	pos := float64(len(sorted)-1) * q
	lower := int(math.Floor(pos))
	if lower >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	frac := pos - float64(lower)
	return sorted[lower] + frac*(sorted[lower+1]-sorted[lower])
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// seasonality returns the three busiest seasons by claim count.
func seasonality(records []ClaimRecord) []map[string]any {
	type bucket struct {
		season string
		count  int
		total  float64
	}
	buckets := map[string]*bucket{}
	for _, r := range records {
		b, ok := buckets[r.Season]
		if !ok {
			b = &bucket{season: r.Season}
			buckets[r.Season] = b
		}
		b.count++
		b.total += r.ClaimAmount
	}

	ordered := make([]*bucket, 0, len(buckets))
	for _, b := range buckets {
		ordered = append(ordered, b)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].count != ordered[j].count {
			return ordered[i].count > ordered[j].count
		}
		return ordered[i].season < ordered[j].season
	})
	if len(ordered) > 3 {
		ordered = ordered[:3]
	}

	out := make([]map[string]any, 0, len(ordered))
	for _, b := range ordered {
		out = append(out, map[string]any{
			"season": b.season,
			"count":  b.count,
			"mean":   round2(b.total / float64(b.count)),
		})
	}
	return out
}

// topActivities returns the five costliest activities by mean claim.
func topActivities(records []ClaimRecord) map[string]float64 {
	type bucket struct {
		activity string
		count    int
		total    float64
	}
	buckets := map[string]*bucket{}
	for _, r := range records {
		b, ok := buckets[r.Activity]
		if !ok {
			b = &bucket{activity: r.Activity}
			buckets[r.Activity] = b
		}
		b.count++
		b.total += r.ClaimAmount
	}

	ordered := make([]*bucket, 0, len(buckets))
	for _, b := range buckets {
		ordered = append(ordered, b)
	}
	sort.Slice(ordered, func(i, j int) bool {
		meanI := ordered[i].total / float64(ordered[i].count)
		meanJ := ordered[j].total / float64(ordered[j].count)
		if meanI != meanJ {
			return meanI > meanJ
		}
		return ordered[i].activity < ordered[j].activity
	})
	if len(ordered) > 5 {
		ordered = ordered[:5]
	}

	out := make(map[string]float64, len(ordered))
	for _, b := range ordered {
		out[b.activity] = round2(b.total / float64(b.count))
	}
	return out
}

// ClaimsTool exposes RecommendPlan to the concierge.
type ClaimsTool struct {
	insight *ClaimsInsight
}

func NewClaimsTool(insight *ClaimsInsight) *ClaimsTool {
	return &ClaimsTool{insight: insight}
}

func (t *ClaimsTool) Name() string { return NameClaimsRecommendation }

func (t *ClaimsTool) Description() string {
	return "Generate plan recommendations and risk insights using historical claims data."
}

func (t *ClaimsTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"destination": map[string]any{"type": "string", "description": "Trip destination"},
			"activity":    map[string]any{"type": "string", "description": "Primary trip activity"},
			"trip_cost":   map[string]any{"type": "number", "description": "Estimated total trip cost in currency units"},
		},
	}
}

func (t *ClaimsTool) Invoke(_ context.Context, input map[string]any) (any, error) {
	destination := stringArg(input, "destination")
	activity := stringArg(input, "activity")

	var tripCost *float64
	if raw, ok := input["trip_cost"]; ok {
		if value, ok := numberArg(raw); ok {
			tripCost = &value
		}
	}

	return t.insight.RecommendPlan(destination, activity, tripCost), nil
}

func stringArg(input map[string]any, key string) string {
	if raw, ok := input[key]; ok {
		if s, ok := raw.(string); ok {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func numberArg(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		value, err := v.Float64()
		return value, err == nil
	case string:
		value, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return value, err == nil
	default:
		return 0, false
	}
}
