// Package researcher implements the policy research agent: given the products
// a traveller is eligible for, it extracts the matching benefit taxonomy
// sections and asks the model to reason over them.
package researcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/aurora-concierge/agent/contract"
	promptx "github.com/tanpawarit/aurora-concierge/agent/prompt"
)

var systemPrompt = promptx.LoadPromptSet().Researcher

// Agent runs the two-stage research flow: context preparation followed by
// model reasoning over the taxonomy excerpts.
type Agent struct {
	taxonomy *Taxonomy
	model    einomodel.BaseChatModel

	graphRunner compose.Runnable[contractx.ResearchRequest, contractx.ResearchResult]
}

var _ contractx.Researcher = (*Agent)(nil)

func New(ctx context.Context, taxonomy *Taxonomy, chatModel einomodel.BaseChatModel) (*Agent, error) {
	if taxonomy == nil {
		return nil, errors.New("taxonomy is required")
	}
	if chatModel == nil {
		return nil, errors.New("chat model is required")
	}

	a := &Agent{taxonomy: taxonomy, model: chatModel}

	graphRunner, err := a.compileGraph(ctx)
	if err != nil {
		return nil, err
	}
	a.graphRunner = graphRunner

	return a, nil
}

func (a *Agent) Run(ctx context.Context, req contractx.ResearchRequest) (contractx.ResearchResult, error) {
	if err := a.taxonomy.Refresh(); err != nil {
		return contractx.ResearchResult{}, err
	}
	return a.graphRunner.Invoke(ctx, req)
}

type researchGraphState struct {
	Req      contractx.ResearchRequest
	Products []string
	Tiers    []string
	Context  string
}

func (a *Agent) compileGraph(ctx context.Context) (compose.Runnable[contractx.ResearchRequest, contractx.ResearchResult], error) {
	graph := compose.NewGraph[contractx.ResearchRequest, contractx.ResearchResult]()

	if err := graph.AddLambdaNode("prepare_context",
		compose.InvokableLambda(func(ctx context.Context, req contractx.ResearchRequest) (*researchGraphState, error) {
			return a.prepareContext(req)
		}),
	); err != nil {
		return nil, fmt.Errorf("add researcher prepare node: %w", err)
	}

	if err := graph.AddLambdaNode("llm_reasoning",
		compose.InvokableLambda(func(ctx context.Context, in *researchGraphState) (contractx.ResearchResult, error) {
			if in == nil {
				return contractx.ResearchResult{}, fmt.Errorf("%w: researcher graph state is nil", contractx.ErrValidation)
			}
			return a.reason(ctx, in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add researcher reasoning node: %w", err)
	}

	if err := graph.AddEdge(compose.START, "prepare_context"); err != nil {
		return nil, fmt.Errorf("add researcher edge start->prepare: %w", err)
	}
	if err := graph.AddEdge("prepare_context", "llm_reasoning"); err != nil {
		return nil, fmt.Errorf("add researcher edge prepare->reasoning: %w", err)
	}
	if err := graph.AddEdge("llm_reasoning", compose.END); err != nil {
		return nil, fmt.Errorf("add researcher edge reasoning->end: %w", err)
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("researcher.research_graph"))
	if err != nil {
		return nil, fmt.Errorf("compile researcher graph: %w", err)
	}
	return runner, nil
}

// prepareContext resolves the product list, falling back to every taxonomy
// product when the caller supplied none, and renders the matching excerpts.
func (a *Agent) prepareContext(req contractx.ResearchRequest) (*researchGraphState, error) {
	products := normalizeProducts(req.RecommendedProducts)
	usedFallback := false
	if len(products) == 0 {
		products = a.taxonomy.AllProducts()
		usedFallback = true
	}

	if len(products) == 0 {
		log.Info().Str("user_query", req.UserQuery).Msg("policy research has no products to examine")
		return &researchGraphState{Req: req}, nil
	}
	if usedFallback {
		log.Info().Int("product_count", len(products)).Msg("policy research falling back to full taxonomy")
	}

	tiers := normalizeTiers(req.Tiers, len(products))
	context, err := a.taxonomy.RenderContext(products, tiers)
	if err != nil {
		return nil, err
	}

	return &researchGraphState{
		Req:      req,
		Products: products,
		Tiers:    tiers,
		Context:  context,
	}, nil
}

func (a *Agent) reason(ctx context.Context, state *researchGraphState) (contractx.ResearchResult, error) {
	if len(state.Products) == 0 || strings.TrimSpace(state.Context) == "" {
		log.Warn().Msg("policy research skipping model call without products or context")
		return contractx.ResearchResult{Products: []map[string]any{}}, nil
	}

	prompt := buildPrompt(state.Req.UserQuery, state.Req.ChatHistory, state.Context, state.Products, state.Tiers)

	messages := []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(prompt),
	}

	response, err := a.model.Generate(ctx, messages)
	if err != nil {
		log.Error().Err(fmt.Errorf("%w: %v", contractx.ErrModelInvoke, err)).Msg("policy research model invocation failed")
		raw, _ := json.Marshal(map[string]any{
			"error":   "llm_failure",
			"message": err.Error(),
		})
		return contractx.ResearchResult{
			Products: []map[string]any{},
			Raw:      string(raw),
		}, nil
	}

	output := response.Content
	result := contractx.ResearchResult{
		Products: []map[string]any{},
		Raw:      output,
	}

	var parsed map[string]any
	if err := json.Unmarshal([]byte(output), &parsed); err != nil {
		log.Warn().Str("preview", preview(output, 200)).Msg("policy research reply was not valid json")
		return result, nil
	}

	if rawProducts, ok := parsed["products"].([]any); ok {
		for _, item := range rawProducts {
			if product, ok := item.(map[string]any); ok {
				result.Products = append(result.Products, product)
			}
		}
	}
	if reasoning, ok := parsed["reasoning"].(string); ok {
		result.Reasoning = reasoning
	}
	return result, nil
}

func buildPrompt(userQuery string, history []contractx.HistoryExchange, context string, products, tiers []string) string {
	historyLines := make([]string, 0, len(history))
	for _, exchange := range history {
		historyLines = append(historyLines, exchange.Speaker+": "+exchange.Message)
	}
	historyBlock := strings.Join(historyLines, "\n")
	if historyBlock == "" {
		historyBlock = "No previous context."
	}

	productLines := make([]string, 0, len(products))
	for i, product := range products {
		tier := "unspecified"
		if i < len(tiers) && tiers[i] != "" {
			tier = tiers[i]
		}
		productLines = append(productLines, fmt.Sprintf("- %s (tier: %s)", product, tier))
	}

	return "The user has asked: " + userQuery + "\n\n" +
		"Conversation history (most recent last):\n" + historyBlock + "\n\n" +
		"Recommended products and tiers:\n" + strings.Join(productLines, "\n") + "\n\n" +
		"Taxonomy excerpts relevant to these products:\n" + context + "\n\n" +
		"Please produce a JSON object with the shape:\n" +
		"{\n" +
		"  \"products\": [\n" +
		"    {\n" +
		"      \"product\": string,\n" +
		"      \"tier\": string,\n" +
		"      \"benefits\": [\n" +
		"        {\n" +
		"          \"name\": string,\n" +
		"          \"why_eligible\": string,\n" +
		"          \"parameters\": object | null,\n" +
		"          \"conditions\": [string]\n" +
		"        }\n" +
		"      ]\n" +
		"    }\n" +
		"  ],\n" +
		"  \"reasoning\": string\n" +
		"}\n" +
		"Only include benefits that the user appears eligible for."
}

func normalizeProducts(raw []string) []string {
	var products []string
	for _, item := range raw {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			products = append(products, trimmed)
		}
	}
	return products
}

func normalizeTiers(raw []string, target int) []string {
	tiers := make([]string, 0, target)
	for _, value := range raw {
		if len(tiers) == target {
			break
		}
		tiers = append(tiers, strings.TrimSpace(value))
	}
	for len(tiers) < target {
		tiers = append(tiers, "")
	}
	return tiers
}

func preview(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	return text[:limit]
}
