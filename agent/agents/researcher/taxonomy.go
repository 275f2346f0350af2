package researcher

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/rs/zerolog/log"
)

// Taxonomy holds the layered policy benefit catalog. The backing file is
// re-read whenever its mtime advances, so benefit updates land without a
// restart.
type Taxonomy struct {
	path string

	mu      sync.Mutex
	payload map[string]any
	mtime   time.Time
}

func LoadTaxonomy(path string) (*Taxonomy, error) {
	t := &Taxonomy{path: path}
	if err := t.load(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Taxonomy) load() error {
	raw, err := os.ReadFile(t.path)
	if err != nil {
		return fmt.Errorf("read taxonomy: %w", err)
	}
	var payload map[string]any
	if err := yaml.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("parse taxonomy: %w", err)
	}
	t.payload = payload
	if info, err := os.Stat(t.path); err == nil {
		t.mtime = info.ModTime()
	}
	return nil
}

// Refresh re-reads the taxonomy file when it changed on disk.
func (t *Taxonomy) Refresh() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	info, err := os.Stat(t.path)
	if err != nil {
		log.Error().Str("path", t.path).Msg("taxonomy file missing")
		return fmt.Errorf("stat taxonomy: %w", err)
	}
	if info.ModTime().After(t.mtime) {
		log.Info().Str("path", t.path).Msg("reloading taxonomy")
		return t.load()
	}
	return nil
}

func (t *Taxonomy) layers() map[string]any {
	layers, _ := t.payload["layers"].(map[string]any)
	return layers
}

// AllProducts lists every product the taxonomy knows about, preferring the
// declared products list over a scan of the layers.
func (t *Taxonomy) AllProducts() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	if declared, ok := t.payload["products"].([]any); ok {
		var names []string
		for _, item := range declared {
			if name, ok := item.(string); ok && strings.TrimSpace(name) != "" {
				names = append(names, strings.TrimSpace(name))
			}
		}
		if len(names) > 0 {
			return names
		}
	}

	seen := map[string]struct{}{}
	for _, layer := range t.layers() {
		entries, ok := layer.([]any)
		if !ok {
			continue
		}
		for _, item := range entries {
			entry, ok := item.(map[string]any)
			if !ok {
				continue
			}
			products, ok := entry["products"].(map[string]any)
			if !ok {
				continue
			}
			for name := range products {
				if trimmed := strings.TrimSpace(name); trimmed != "" {
					seen[trimmed] = struct{}{}
				}
			}
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RenderContext emits one YAML section per product, separated by document
// markers, covering the general conditions, benefits, and benefit-specific
// conditions that apply to it.
func (t *Taxonomy) RenderContext(products, tiers []string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	layers := t.layers()
	generalConditions, _ := layers["layer_1_general_conditions"].([]any)
	benefits, _ := layers["layer_2_benefits"].([]any)
	benefitConditions, _ := layers["layer_3_benefit_specific_conditions"].([]any)
	if len(benefitConditions) == 0 {
		benefitConditions, _ = layers["layer_3_benefit_conditions"].([]any)
	}

	sections := make([]string, 0, len(products))
	for i, product := range products {
		tier := ""
		if i < len(tiers) {
			tier = tiers[i]
		}

		productConditions := filterProductEntries(generalConditions, product, "condition")
		productBenefits := filterProductEntries(benefits, product, "benefit_name")
		productBenefitConditions := filterProductEntries(benefitConditions, product, "condition")
		if len(productConditions) == 0 && len(productBenefits) == 0 && len(productBenefitConditions) == 0 {
			log.Warn().Str("product", product).Msg("taxonomy has no entries for product")
			continue
		}

		section := yaml.MapSlice{
			{Key: "product", Value: product},
			{Key: "tier", Value: tier},
			{Key: "general_conditions", Value: productConditions},
			{Key: "benefits", Value: productBenefits},
			{Key: "benefit_conditions", Value: productBenefitConditions},
		}

		rendered, err := yaml.Marshal(section)
		if err != nil {
			return "", fmt.Errorf("render taxonomy section: %w", err)
		}
		sections = append(sections, string(rendered))
	}

	return strings.Join(sections, "\n---\n"), nil
}

// filterProductEntries keeps only the entries that name the product and
// reshapes each around the product-specific details.
func filterProductEntries(entries []any, product, key string) []yaml.MapSlice {
	filtered := []yaml.MapSlice{}
	for _, item := range entries {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		products, ok := entry["products"].(map[string]any)
		if !ok {
			continue
		}
		details, ok := products[product]
		if !ok || details == nil {
			continue
		}
		filtered = append(filtered, yaml.MapSlice{
			{Key: key, Value: entry[key]},
			{Key: "details", Value: details},
			{Key: "parameters", Value: entry["parameters"]},
			{Key: "condition_type", Value: entry["condition_type"]},
		})
	}
	return filtered
}
