package guidance

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/tanpawarit/aurora-concierge/agent/profile"
)

func readyClient() profile.ClientDatum {
	return profile.ClientDatum{
		ClientID: "cl-1",
		Source:   "line",
		PersonalInfo: profile.PersonalInfo{
			Name:             "Mina Chan",
			EmailAddress:     "mina@example.com",
			PhoneNumber:      "+65 9123 4567",
			DateOfBirth:      profile.NewDate(1990, time.June, 4),
			PlaceOfResidence: "Singapore",
			PassportNumber:   "E1234567",
		},
		Interests: []string{"Diving"},
		Trips: []profile.TripDetails{{
			Destination: "Tokyo",
			StartDate:   profile.NewDate(2025, time.April, 1),
			EndDate:     profile.NewDate(2025, time.April, 10),
			TripType:    profile.TripRound,
			TripCost:    func() *float64 { v := 3200.0; return &v }(),
		}},
	}
}

func TestComposeEmptyRoster(t *testing.T) {
	t.Parallel()

	got, err := Compose(nil)
	if err != nil {
		t.Fatalf("Compose() error = %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil guidance, got %+v", got)
	}
}

func TestComposeRichProfile(t *testing.T) {
	t.Parallel()

	got, err := Compose([]profile.ClientDatum{readyClient()})
	if err != nil {
		t.Fatalf("Compose() error = %v", err)
	}
	if got.Status != StatusRich {
		t.Fatalf("status = %q, want rich", got.Status)
	}
	if !strings.HasPrefix(got.Summary, "[Integrated Traveller Data]\n") {
		t.Fatalf("summary missing header: %q", got.Summary[:40])
	}

	var payload struct {
		Status  string `json:"status"`
		Clients []struct {
			Label        string         `json:"label"`
			Verification string         `json:"verification"`
			ToolInputs   map[string]any `json:"tool_inputs"`
		} `json:"clients"`
		Workflow []string `json:"workflow"`
	}
	body := strings.TrimPrefix(got.Summary, "[Integrated Traveller Data]\n")
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		t.Fatalf("summary not valid JSON: %v", err)
	}
	if payload.Clients[0].Label != "Mina Chan" {
		t.Fatalf("label = %q", payload.Clients[0].Label)
	}
	if payload.Clients[0].Verification != "unknown" {
		t.Fatalf("verification = %q, want unknown default", payload.Clients[0].Verification)
	}
	hints, ok := payload.Clients[0].ToolInputs["claims_recommendation"].(map[string]any)
	if !ok {
		t.Fatalf("tool_inputs missing claims hint: %v", payload.Clients[0].ToolInputs)
	}
	if hints["destination"] != "Tokyo" || hints["activity"] != "Diving" {
		t.Fatalf("unexpected claims hint: %v", hints)
	}
	if len(payload.Workflow) == 0 || !strings.Contains(payload.Workflow[0], "Profile is complete") {
		t.Fatalf("rich workflow missing: %v", payload.Workflow)
	}
}

func TestComposePartialProfile(t *testing.T) {
	t.Parallel()

	incomplete := readyClient()
	incomplete.PersonalInfo.PassportNumber = ""

	got, err := Compose([]profile.ClientDatum{incomplete})
	if err != nil {
		t.Fatalf("Compose() error = %v", err)
	}
	if got.Status != StatusPartial {
		t.Fatalf("status = %q, want partial", got.Status)
	}
	if !strings.Contains(got.Summary, "Passport number") {
		t.Fatal("missing fields not surfaced")
	}
	if strings.Contains(got.Summary, "tool_inputs") {
		t.Fatal("incomplete client should carry no tool hints")
	}
	if !strings.Contains(got.Summary, "Profile is incomplete") {
		t.Fatal("partial workflow missing")
	}
}

func TestComposeLabelFallback(t *testing.T) {
	t.Parallel()

	got, err := Compose([]profile.ClientDatum{{}})
	if err != nil {
		t.Fatalf("Compose() error = %v", err)
	}
	if !strings.Contains(got.Summary, `"label": "Client 1"`) {
		t.Fatalf("label fallback missing: %s", got.Summary)
	}
}

func TestComposeActivityFromTripMetadata(t *testing.T) {
	t.Parallel()

	client := readyClient()
	client.Trips[0].Metadata = map[string]any{"activity": "skiing"}

	got, err := Compose([]profile.ClientDatum{client})
	if err != nil {
		t.Fatalf("Compose() error = %v", err)
	}
	if !strings.Contains(got.Summary, `"activity": "skiing"`) {
		t.Fatal("trip metadata activity should win over interests")
	}
}
