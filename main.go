package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/tanpawarit/aurora-concierge/agent/agents/orchestrator"
	"github.com/tanpawarit/aurora-concierge/agent/agents/researcher"
	contractx "github.com/tanpawarit/aurora-concierge/agent/contract"
	llmx "github.com/tanpawarit/aurora-concierge/agent/llm"
	statex "github.com/tanpawarit/aurora-concierge/agent/state"
	toolx "github.com/tanpawarit/aurora-concierge/agent/tool"
	configx "github.com/tanpawarit/aurora-concierge/pkg/config"
	insurerx "github.com/tanpawarit/aurora-concierge/pkg/insurer"
	logx "github.com/tanpawarit/aurora-concierge/pkg/logger"
	paymentsx "github.com/tanpawarit/aurora-concierge/pkg/payments"
)

type AppConfig struct {
	ClaimsDataPath string `envconfig:"CLAIMS_DATA_PATH" split_words:"true" default:"data/claims_history.csv"`
	TaxonomyPath   string `envconfig:"TAXONOMY_PATH" split_words:"true" default:"data/benefit_taxonomy.yaml"`
}

func main() {
	logx.Init(*configx.MustNew[logx.Config]("LOG"))

	ctx := context.Background()
	appCfg := configx.MustNew[AppConfig]("")

	store, err := statex.NewUpstashRedisStore(*configx.MustNew[statex.UpstashRedisConfig]("UPSTASH_REDIS"))
	if err != nil {
		log.Fatal().Err(err).Msg("session store init failed")
	}

	llmCfg := configx.MustNew[llmx.Config]("OPENROUTER")

	conciergeCfg := llmCfg.OpenRouterFor(contractx.AgentTypeConcierge)
	conciergeModel, err := conciergeCfg.New(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("concierge model init failed")
	}

	researcherCfg := llmCfg.OpenRouterFor(contractx.AgentTypeResearcher)
	researcherModel, err := researcherCfg.New(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("researcher model init failed")
	}

	taxonomy, err := researcher.LoadTaxonomy(appCfg.TaxonomyPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", appCfg.TaxonomyPath).Msg("taxonomy load failed")
	}
	researchAgent, err := researcher.New(ctx, taxonomy, researcherModel)
	if err != nil {
		log.Fatal().Err(err).Msg("researcher init failed")
	}

	claims, err := toolx.LoadClaimsData(appCfg.ClaimsDataPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", appCfg.ClaimsDataPath).Msg("claims data load failed")
	}

	paymentsClient := paymentsx.MustNew(*configx.MustNew[paymentsx.Config]("PAYMENTS"))
	insurerClient := insurerx.MustNew(*configx.MustNew[insurerx.Config]("INSURER"))

	registry, err := toolx.NewRegistry(
		toolx.NewClaimsTool(toolx.NewClaimsInsight(claims)),
		toolx.NewDocumentTool(&toolx.TripDocumentParser{}),
		toolx.NewResearchTool(researchAgent),
		toolx.NewCheckoutTool(paymentsClient),
		toolx.NewStatusTool(paymentsClient),
		toolx.NewPurchaseTool(insurerClient),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("tool registry init failed")
	}

	concierge, err := orchestrator.New(store, conciergeModel, registry, orchestrator.Config{})
	if err != nil {
		log.Fatal().Err(err).Msg("orchestrator init failed")
	}

	runConsole(ctx, concierge)
}

// runConsole is a minimal interactive loop for local development.
func runConsole(ctx context.Context, concierge *orchestrator.Orchestrator) {
	sessionID := uuid.NewString()
	fmt.Printf("session %s started, type a message (ctrl-d to quit)\n", sessionID)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		message := strings.TrimSpace(scanner.Text())
		if message == "" {
			continue
		}

		result, err := concierge.HandleMessage(ctx, sessionID, message, "console")
		if err != nil {
			log.Error().Err(err).Msg("turn failed")
			continue
		}
		if result.Error != "" {
			fmt.Printf("[%s] %s\n", result.Error, result.Message)
			continue
		}
		fmt.Println(result.Output)
	}
}
