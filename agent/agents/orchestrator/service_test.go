package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/tanpawarit/aurora-concierge/agent/profile"
	statex "github.com/tanpawarit/aurora-concierge/agent/state"
	toolx "github.com/tanpawarit/aurora-concierge/agent/tool"
)

type fakeStore struct {
	mu       sync.Mutex
	sessions map[string][]byte
	saves    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{sessions: map[string][]byte{}}
}

func (f *fakeStore) Load(ctx context.Context, sessionID string) (*statex.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, ok := f.sessions[sessionID]
	if !ok {
		return nil, statex.ErrSessionNotFound
	}
	var sess statex.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, err
	}
	sess.EnsureDefaults()
	return &sess, nil
}

func (f *fakeStore) Save(ctx context.Context, sess *statex.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	f.sessions[sess.SessionID] = raw
	f.saves++
	return nil
}

func (f *fakeStore) Delete(ctx context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, sessionID)
	return nil
}

func (f *fakeStore) seed(t *testing.T, sess *statex.Session) {
	t.Helper()
	if err := f.Save(context.Background(), sess); err != nil {
		t.Fatalf("seed session: %v", err)
	}
	f.mu.Lock()
	f.saves = 0
	f.mu.Unlock()
}

func (f *fakeStore) session(t *testing.T, sessionID string) *statex.Session {
	t.Helper()
	sess, err := f.Load(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	return sess
}

type fakeModel struct {
	responses []string
	repeat    string
	err       error
	calls     int
}

func (f *fakeModel) Generate(ctx context.Context, in []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	idx := f.calls - 1
	if idx < len(f.responses) {
		return schema.AssistantMessage(f.responses[idx], nil), nil
	}
	if f.repeat != "" {
		return schema.AssistantMessage(f.repeat, nil), nil
	}
	return nil, fmt.Errorf("no scripted response left at call=%d", f.calls)
}

func (f *fakeModel) Stream(ctx context.Context, in []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("stream not supported")
}

type scriptedTool struct {
	name   string
	result any
	err    error
	calls  int
	inputs []map[string]any
}

func (s *scriptedTool) Name() string           { return s.name }
func (s *scriptedTool) Description() string    { return "scripted tool" }
func (s *scriptedTool) Schema() map[string]any { return nil }

func (s *scriptedTool) Invoke(ctx context.Context, input map[string]any) (any, error) {
	s.calls++
	s.inputs = append(s.inputs, input)
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func newTestOrchestrator(t *testing.T, store statex.Store, model einomodel.BaseChatModel, tools ...toolx.Tool) *Orchestrator {
	t.Helper()
	registry, err := toolx.NewRegistry(tools...)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	o, err := New(store, model, registry, Config{MaxRounds: 3})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	o.now = func() time.Time { return time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC) }
	return o
}

func roster(status profile.VerificationStatus, completeTrip bool) []profile.ClientDatum {
	client := profile.ClientDatum{
		ClientID: "cl-1",
		PersonalInfo: profile.PersonalInfo{
			Name:             "Mina Chan",
			EmailAddress:     "mina@example.com",
			PhoneNumber:      "+65 9123 4567",
			DateOfBirth:      profile.NewDate(1990, time.June, 4),
			PlaceOfResidence: "Singapore",
			PassportNumber:   "E1234567",
		},
	}
	if completeTrip {
		cost := 3200.0
		client.Trips = []profile.TripDetails{{
			Destination: "Tokyo",
			StartDate:   profile.NewDate(2025, time.April, 1),
			EndDate:     profile.NewDate(2025, time.April, 10),
			TripType:    profile.TripRound,
			TripCost:    &cost,
		}}
	}
	if status != "" {
		client.Verification = profile.VerificationRecord{Status: status}
	}
	return []profile.ClientDatum{client}
}

func TestHandleMessageRejectsBlankInput(t *testing.T) {
	t.Parallel()

	o := newTestOrchestrator(t, newFakeStore(), &fakeModel{})
	if _, err := o.HandleMessage(context.Background(), "  ", "hello", ""); err == nil {
		t.Fatal("expected error for blank session id")
	}
	if _, err := o.HandleMessage(context.Background(), "s1", "   ", ""); err == nil {
		t.Fatal("expected error for blank message")
	}
}

func TestHandleMessageDirectReply(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	model := &fakeModel{responses: []string{`{"output":"Hello! How can I help?","actions":[]}`}}
	o := newTestOrchestrator(t, store, model)

	result, err := o.HandleMessage(context.Background(), "s1", "hi there", "")
	if err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	if result.Output != "Hello! How can I help?" {
		t.Fatalf("output = %q", result.Output)
	}
	if model.calls != 1 {
		t.Fatalf("model calls = %d", model.calls)
	}
	if len(result.ToolRuns) != 0 {
		t.Fatalf("unexpected tool runs: %v", result.ToolRuns)
	}

	sess := store.session(t, "s1")
	if len(sess.Messages) != 2 {
		t.Fatalf("transcript = %d messages", len(sess.Messages))
	}
	if sess.Messages[0].Role != "user" || sess.Messages[1].Role != "assistant" {
		t.Fatalf("transcript roles: %+v", sess.Messages)
	}
}

func TestHandleMessageNonJSONReply(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	model := &fakeModel{responses: []string{"Plain prose answer without JSON."}}
	o := newTestOrchestrator(t, store, model)

	result, err := o.HandleMessage(context.Background(), "s1", "hi", "")
	if err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	if result.Output != "Plain prose answer without JSON." {
		t.Fatalf("output = %q", result.Output)
	}
}

func TestHandleMessageToolRound(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	claims := &scriptedTool{
		name:   toolx.NameClaimsRecommendation,
		result: map[string]any{"recommendation": "gold"},
	}
	model := &fakeModel{responses: []string{
		`{"output":"","actions":[{"tool":"claims_recommendation","input":{"destination":"Tokyo"}}]}`,
		`{"output":"Gold tier fits your trip.","actions":[]}`,
	}}
	o := newTestOrchestrator(t, store, model, claims)

	result, err := o.HandleMessage(context.Background(), "s1", "recommend a plan", "")
	if err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	if result.Output != "Gold tier fits your trip." {
		t.Fatalf("output = %q", result.Output)
	}
	if model.calls != 2 {
		t.Fatalf("model calls = %d, want 2", model.calls)
	}
	if claims.calls != 1 {
		t.Fatalf("tool calls = %d, want 1", claims.calls)
	}
	if claims.inputs[0]["destination"] != "Tokyo" {
		t.Fatalf("tool input = %v", claims.inputs[0])
	}
	if result.ToolUsed != toolx.NameClaimsRecommendation {
		t.Fatalf("ToolUsed = %q", result.ToolUsed)
	}
	if len(result.ToolRuns) != 1 {
		t.Fatalf("tool runs = %d", len(result.ToolRuns))
	}

	sess := store.session(t, "s1")
	raw, ok := sess.ToolResult(toolx.NameClaimsRecommendation)
	if !ok || !strings.Contains(string(raw), "gold") {
		t.Fatalf("tool result not cached: %s", raw)
	}
}

func TestHandleMessageToolErrorContinues(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	claims := &scriptedTool{
		name: toolx.NameClaimsRecommendation,
		err:  errors.New("dataset unavailable"),
	}
	model := &fakeModel{responses: []string{
		`{"output":"","actions":[{"tool":"claims_recommendation","input":{}}]}`,
		`{"output":"I could not reach the claims data, but here is general advice.","actions":[]}`,
	}}
	o := newTestOrchestrator(t, store, model, claims)

	result, err := o.HandleMessage(context.Background(), "s1", "recommend a plan", "")
	if err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	if result.Error != "" {
		t.Fatalf("tool failure must not abort the turn: %+v", result)
	}
	if len(result.ToolRuns) != 1 {
		t.Fatalf("tool runs = %d", len(result.ToolRuns))
	}
	payload, ok := result.ToolRuns[0].Result.(map[string]any)
	if !ok || payload["status"] != "error" || payload["message"] != "dataset unavailable" {
		t.Fatalf("error payload = %v", result.ToolRuns[0].Result)
	}
	if model.calls != 2 {
		t.Fatalf("model calls = %d", model.calls)
	}
}

func TestHandleMessageUnknownTool(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	model := &fakeModel{responses: []string{
		`{"output":"","actions":[{"tool":"teleportation","input":{}}]}`,
	}}
	o := newTestOrchestrator(t, store, model)

	result, err := o.HandleMessage(context.Background(), "s1", "beam me up", "")
	if err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	if !strings.Contains(result.Output, "can't access the requested capability") {
		t.Fatalf("output = %q", result.Output)
	}
	if len(result.ToolRuns) != 0 {
		t.Fatalf("unknown tool must not produce runs: %v", result.ToolRuns)
	}
}

func TestHandleMessageRoundLimit(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	claims := &scriptedTool{name: toolx.NameClaimsRecommendation, result: map[string]any{"ok": true}}
	model := &fakeModel{
		repeat: `{"output":"","actions":[{"tool":"claims_recommendation","input":{}}]}`,
	}
	o := newTestOrchestrator(t, store, model, claims)

	result, err := o.HandleMessage(context.Background(), "s1", "loop forever", "")
	if err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	if model.calls != 3 {
		t.Fatalf("model calls = %d, want max rounds", model.calls)
	}
	if !strings.Contains(result.Output, "having trouble completing that request") {
		t.Fatalf("output = %q", result.Output)
	}
}

func TestHandleMessageModelFailure(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	model := &fakeModel{err: errors.New("upstream 500")}
	o := newTestOrchestrator(t, store, model)

	result, err := o.HandleMessage(context.Background(), "s1", "hello", "")
	if err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	if result.Error != "llm_failure" {
		t.Fatalf("error = %q", result.Error)
	}
	if result.Message != "upstream 500" {
		t.Fatalf("message = %q", result.Message)
	}
}

func TestHandleMessagePaymentGuardMissingFields(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	sess := statex.NewSession("s1")
	sess.Clients = roster("", false)
	store.seed(t, sess)

	checkout := &scriptedTool{name: toolx.NamePaymentCheckout, result: map[string]any{"checkout_url": "https://pay"}}
	model := &fakeModel{responses: []string{
		`{"output":"","actions":[{"tool":"payment_checkout","input":{"plan_code":"gold"}}]}`,
	}}
	o := newTestOrchestrator(t, store, model, checkout)

	result, err := o.HandleMessage(context.Background(), "s1", "pay now", "")
	if err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	if checkout.calls != 0 {
		t.Fatalf("checkout must be blocked, calls = %d", checkout.calls)
	}
	if !strings.Contains(result.Output, "I still need a few details before the payment step") {
		t.Fatalf("output = %q", result.Output)
	}
	if !strings.Contains(result.Output, "Trip details") {
		t.Fatalf("missing field list absent: %q", result.Output)
	}
}

func TestHandleMessagePaymentGuardUnverified(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	sess := statex.NewSession("s1")
	sess.Clients = roster("", true)
	store.seed(t, sess)

	checkout := &scriptedTool{name: toolx.NamePaymentCheckout, result: map[string]any{"checkout_url": "https://pay"}}
	model := &fakeModel{responses: []string{
		`{"output":"","actions":[{"tool":"payment_checkout","input":{}}]}`,
	}}
	o := newTestOrchestrator(t, store, model, checkout)

	result, err := o.HandleMessage(context.Background(), "s1", "go ahead with payment", "")
	if err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	if checkout.calls != 0 {
		t.Fatalf("checkout must be blocked, calls = %d", checkout.calls)
	}
	if !strings.Contains(result.Output, "Let's double-check the traveller info before payment") {
		t.Fatalf("output = %q", result.Output)
	}
	if !strings.Contains(result.Output, "- Name: Mina Chan") {
		t.Fatalf("verification summary missing: %q", result.Output)
	}

	saved := store.session(t, "s1")
	if saved.Clients[0].Verification.Status != profile.VerificationPending {
		t.Fatalf("verification status = %q, want pending", saved.Clients[0].Verification.Status)
	}
}

func TestHandleMessagePaymentGuardEnrichesFromPayload(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	sess := statex.NewSession("s1")
	clients := roster("", true)
	clients[0].PersonalInfo.EmailAddress = ""
	sess.Clients = clients
	store.seed(t, sess)

	checkout := &scriptedTool{name: toolx.NamePaymentCheckout, result: map[string]any{"checkout_url": "https://pay"}}
	model := &fakeModel{responses: []string{
		`{"output":"","actions":[{"tool":"payment_checkout","input":{"customer_email":"mina@example.com"}}]}`,
	}}
	o := newTestOrchestrator(t, store, model, checkout)

	if _, err := o.HandleMessage(context.Background(), "s1", "pay", ""); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}

	saved := store.session(t, "s1")
	if saved.Clients[0].PersonalInfo.EmailAddress != "mina@example.com" {
		t.Fatalf("payload enrichment lost: %q", saved.Clients[0].PersonalInfo.EmailAddress)
	}
}

func TestHandleMessagePaymentProceedsWhenReady(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	sess := statex.NewSession("s1")
	sess.Clients = roster(profile.VerificationConfirmed, true)
	store.seed(t, sess)

	checkout := &scriptedTool{name: toolx.NamePaymentCheckout, result: map[string]any{"checkout_url": "https://pay/123"}}
	model := &fakeModel{responses: []string{
		`{"output":"","actions":[{"tool":"payment_checkout","input":{"plan_code":"gold","amount":120}}]}`,
		`{"output":"Here is your secure checkout link.","actions":[]}`,
	}}
	o := newTestOrchestrator(t, store, model, checkout)

	result, err := o.HandleMessage(context.Background(), "s1", "pay now", "")
	if err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	if checkout.calls != 1 {
		t.Fatalf("checkout calls = %d, want 1", checkout.calls)
	}
	if result.Output != "Here is your secure checkout link." {
		t.Fatalf("output = %q", result.Output)
	}
}

func TestHandleMessageConfirmationPromotesPending(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	sess := statex.NewSession("s1")
	clients := roster("", true)
	clients[0].Verification = profile.VerificationRecord{Status: profile.VerificationPending}
	sess.Clients = clients
	store.seed(t, sess)

	model := &fakeModel{responses: []string{`{"output":"Great, you're all set.","actions":[]}`}}
	o := newTestOrchestrator(t, store, model)

	if _, err := o.HandleMessage(context.Background(), "s1", "Confirmed", ""); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	saved := store.session(t, "s1")
	if saved.Clients[0].Verification.Status != profile.VerificationConfirmed {
		t.Fatalf("status = %q, want confirmed", saved.Clients[0].Verification.Status)
	}
}

func TestHandleMessageFallbackSummary(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	research := &scriptedTool{
		name: toolx.NamePolicyResearch,
		result: map[string]any{
			"products": []any{map[string]any{
				"product": "Explorer Plan",
				"tier":    "gold",
				"benefits": []any{map[string]any{
					"name":         "Emergency Medical",
					"why_eligible": "covers overseas treatment",
				}},
			}},
			"reasoning": "Best match for the itinerary.",
		},
	}
	model := &fakeModel{responses: []string{
		`{"output":"","actions":[{"tool":"policy_research","input":{"user_query":"coverage"}}]}`,
		`{"output":"","actions":[]}`,
	}}
	o := newTestOrchestrator(t, store, model, research)

	result, err := o.HandleMessage(context.Background(), "s1", "what am I covered for?", "")
	if err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	for _, want := range []string{
		"Explorer Plan (gold)",
		"Emergency Medical: covers overseas treatment",
		"Best match for the itinerary.",
		"Source: policy taxonomy documentation.",
	} {
		if !strings.Contains(result.Output, want) {
			t.Fatalf("fallback summary missing %q:\n%s", want, result.Output)
		}
	}
}

func TestMergeClientsInheritsSource(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	o := newTestOrchestrator(t, store, &fakeModel{})

	merged, err := o.MergeClients(context.Background(), "s1", []profile.ClientDatum{
		{PersonalInfo: profile.PersonalInfo{Name: "Mina Chan"}},
	}, "webhook")
	if err != nil {
		t.Fatalf("MergeClients() error = %v", err)
	}
	if len(merged) != 1 || merged[0].Source != "webhook" {
		t.Fatalf("unexpected roster: %+v", merged)
	}

	saved := store.session(t, "s1")
	if len(saved.Clients) != 1 {
		t.Fatalf("roster not persisted: %d", len(saved.Clients))
	}
}
