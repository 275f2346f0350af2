// Package llm holds per-agent model configuration. One OpenRouter account
// backs every agent; each agent type can override the model and temperature.
package llm

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/tanpawarit/aurora-concierge/agent/contract"
	openrouterx "github.com/tanpawarit/aurora-concierge/pkg/openrouter"
)

type Config struct {
	BaseURL            string        `envconfig:"BASE_URL" split_words:"true" default:"https://openrouter.ai/api/v1"`
	APIKey             string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	Model              string        `envconfig:"MODEL" split_words:"true" required:"true"`
	MaxCompletionToken int           `envconfig:"MAX_COMPLETION_TOKEN" split_words:"true" default:"2000"`
	Temperature        float32       `envconfig:"TEMPERATURE" split_words:"true" default:"0.5"`
	Timeout            time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
	SiteURL            string        `envconfig:"SITE_URL" split_words:"true"`
	SiteName           string        `envconfig:"SITE_NAME" split_words:"true"`

	ConciergeModel        string  `envconfig:"CONCIERGE_MODEL" split_words:"true"`
	ResearcherModel       string  `envconfig:"RESEARCHER_MODEL" split_words:"true"`
	ConciergeTemperature  float32 `envconfig:"CONCIERGE_TEMPERATURE" split_words:"true" default:"-1"`
	ResearcherTemperature float32 `envconfig:"RESEARCHER_TEMPERATURE" split_words:"true" default:"-1"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("%w: openrouter api key is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: default model is required", contractx.ErrValidation)
	}
	return nil
}

func (c Config) OpenRouterFor(agentType contractx.AgentType) openrouterx.Config {
	modelName := strings.TrimSpace(c.Model)
	temp := c.Temperature

	switch agentType {
	case contractx.AgentTypeConcierge:
		if v := strings.TrimSpace(c.ConciergeModel); v != "" {
			modelName = v
		}
		if c.ConciergeTemperature >= 0 {
			temp = c.ConciergeTemperature
		}
	case contractx.AgentTypeResearcher:
		if v := strings.TrimSpace(c.ResearcherModel); v != "" {
			modelName = v
		}
		if c.ResearcherTemperature >= 0 {
			temp = c.ResearcherTemperature
		}
	}

	maxCompletionToken := c.MaxCompletionToken
	return openrouterx.Config{
		BaseURL:            strings.TrimSpace(c.BaseURL),
		APIKey:             strings.TrimSpace(c.APIKey),
		Model:              modelName,
		MaxCompletionToken: &maxCompletionToken,
		Temperature:        temp,
		Timeout:            c.Timeout,
		SiteURL:            strings.TrimSpace(c.SiteURL),
		SiteName:           strings.TrimSpace(c.SiteName),
		JSONMode:           true,
	}
}
