package tool

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/aurora-concierge/agent/contract"
	"github.com/tanpawarit/aurora-concierge/pkg/payments"
)

// CheckoutTool opens a hosted payment session. The concierge gates this
// behind profile completeness and verification before it ever runs.
type CheckoutTool struct {
	client *payments.Client
}

func NewCheckoutTool(client *payments.Client) *CheckoutTool {
	return &CheckoutTool{client: client}
}

func (t *CheckoutTool) Name() string { return NamePaymentCheckout }

func (t *CheckoutTool) Description() string {
	return "Create and monitor a payment checkout session for purchasing a travel insurance plan. " +
		"Provide the plan_code, price, and metadata as determined by the LLM-guided consultation."
}

func (t *CheckoutTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"plan_code": map[string]any{
				"type":        "string",
				"description": "Use the pricing offer's productCode as the plan identifier.",
			},
			"amount":         map[string]any{"type": "integer", "description": "Amount in minor currency units"},
			"currency":       map[string]any{"type": "string", "default": "sgd"},
			"success_url":    map[string]any{"type": "string"},
			"cancel_url":     map[string]any{"type": "string"},
			"customer_email": map[string]any{"type": "string"},
			"metadata": map[string]any{
				"type":        "object",
				"description": "Additional context such as quoteId, offerId, productCode, traveller info.",
			},
		},
		"required": []string{"plan_code", "amount", "currency", "success_url", "cancel_url"},
	}
}

func (t *CheckoutTool) Invoke(ctx context.Context, input map[string]any) (any, error) {
	req := payments.CheckoutRequest{
		PlanCode:      stringArg(input, "plan_code"),
		Currency:      stringArg(input, "currency"),
		SuccessURL:    stringArg(input, "success_url"),
		CancelURL:     stringArg(input, "cancel_url"),
		CustomerEmail: stringArg(input, "customer_email"),
	}
	if amount, ok := numberArg(input["amount"]); ok {
		req.Amount = int64(amount)
	}
	if metadata, ok := input["metadata"].(map[string]any); ok {
		req.Metadata = metadata
	}

	log.Info().Str("plan_code", req.PlanCode).Int64("amount", req.Amount).Msg("creating checkout session")

	session, err := t.client.CreateCheckoutSession(ctx, req)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"provider":     session.Provider,
		"session_id":   session.SessionID,
		"checkout_url": session.CheckoutURL,
	}, nil
}

// StatusTool reports the latest state of a checkout session.
type StatusTool struct {
	client *payments.Client
}

func NewStatusTool(client *payments.Client) *StatusTool {
	return &StatusTool{client: client}
}

func (t *StatusTool) Name() string { return NamePaymentStatus }

func (t *StatusTool) Description() string {
	return "Retrieve the latest status of a previously created payment session."
}

func (t *StatusTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"session_id": map[string]any{"type": "string", "description": "Stripe or platform session ID"},
		},
		"required": []string{"session_id"},
	}
}

func (t *StatusTool) Invoke(ctx context.Context, input map[string]any) (any, error) {
	sessionID := stringArg(input, "session_id")
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session_id is required", contractx.ErrValidation)
	}
	return t.client.FetchStatus(ctx, sessionID)
}

// PurchaseTool completes policy issuance after payment has settled.
type PurchaseTool struct {
	issuer contractx.PolicyIssuer
}

func NewPurchaseTool(issuer contractx.PolicyIssuer) *PurchaseTool {
	return &PurchaseTool{issuer: issuer}
}

func (t *PurchaseTool) Name() string { return NamePolicyPurchase }

func (t *PurchaseTool) Description() string {
	return "Complete the policy issuance with the insurer purchase API after confirming payment. " +
		"Use the quoteId/offerId gathered during the conversation together with traveller identity data."
}

func (t *PurchaseTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"quoteId": map[string]any{
				"type":        "string",
				"description": "Quote UUID returned from the pricing step.",
			},
			"purchaseOffers": map[string]any{
				"type":     "array",
				"minItems": 1,
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"productType": map[string]any{"type": "string"},
						"offerId":     map[string]any{"type": "string"},
						"productCode": map[string]any{"type": "string"},
						"unitPrice":   map[string]any{"type": "number"},
						"currency":    map[string]any{"type": "string"},
						"quantity":    map[string]any{"type": "integer", "minimum": 1},
						"totalPrice":  map[string]any{"type": "number"},
					},
					"required": []string{"productType", "offerId", "productCode", "unitPrice", "currency", "quantity", "totalPrice"},
				},
			},
			"insureds": map[string]any{
				"type":     "array",
				"minItems": 1,
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"id":           map[string]any{"type": "string"},
						"title":        map[string]any{"type": "string"},
						"firstName":    map[string]any{"type": "string"},
						"lastName":     map[string]any{"type": "string"},
						"nationality":  map[string]any{"type": "string"},
						"dateOfBirth":  map[string]any{"type": "string"},
						"passport":     map[string]any{"type": "string"},
						"email":        map[string]any{"type": "string"},
						"phoneType":    map[string]any{"type": "string"},
						"phoneNumber":  map[string]any{"type": "string"},
						"relationship": map[string]any{"type": "string"},
					},
				},
			},
			"mainContact": map[string]any{"type": "object"},
		},
		"required": []string{"quoteId", "purchaseOffers", "insureds", "mainContact"},
	}
}

func (t *PurchaseTool) Invoke(ctx context.Context, input map[string]any) (any, error) {
	if stringArg(input, "quoteId") == "" {
		return nil, fmt.Errorf("%w: quoteId is required", contractx.ErrValidation)
	}
	return t.issuer.Purchase(ctx, input)
}
