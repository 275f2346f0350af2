package profile

import (
	"testing"
	"time"
)

func TestEvaluateReadinessEmptyRoster(t *testing.T) {
	t.Parallel()

	got := EvaluateReadiness(nil)
	if got.Status != ReadinessMissingClients {
		t.Fatalf("expected missing_clients, got %q", got.Status)
	}
}

func TestEvaluateReadinessMissingFields(t *testing.T) {
	t.Parallel()

	incomplete := completeClient()
	incomplete.PersonalInfo.PassportNumber = ""
	incomplete.Trips[0].TripCost = nil

	got := EvaluateReadiness([]ClientDatum{incomplete})
	if got.Status != ReadinessMissingFields {
		t.Fatalf("expected missing_fields, got %q", got.Status)
	}
	if got.ClientID != "cl-1" {
		t.Fatalf("unexpected client id %q", got.ClientID)
	}
	want := []string{"Passport number", "Trip cost"}
	if len(got.Missing) != len(want) {
		t.Fatalf("missing = %v, want %v", got.Missing, want)
	}
	for i, label := range want {
		if got.Missing[i] != label {
			t.Fatalf("missing[%d] = %q, want %q", i, got.Missing[i], label)
		}
	}
}

func TestEvaluateReadinessIncompleteBlocksVerification(t *testing.T) {
	t.Parallel()

	complete := completeClient()
	complete.Verification = VerificationRecord{Status: VerificationConfirmed}
	incomplete := ClientDatum{ClientID: "cl-2", PersonalInfo: PersonalInfo{Name: "Arthur Wong"}}

	got := EvaluateReadiness([]ClientDatum{complete, incomplete})
	if got.Status != ReadinessMissingFields {
		t.Fatalf("an incomplete later client must block, got %q", got.Status)
	}
	if got.ClientID != "cl-2" {
		t.Fatalf("unexpected client id %q", got.ClientID)
	}
}

func TestEvaluateReadinessFirstBlockingClientWins(t *testing.T) {
	t.Parallel()

	unverified := completeClient()
	incomplete := ClientDatum{ClientID: "cl-2", PersonalInfo: PersonalInfo{Name: "Arthur Wong"}}

	got := EvaluateReadiness([]ClientDatum{unverified, incomplete})
	if got.Status != ReadinessUnverified {
		t.Fatalf("first client's verification gap must win, got %q", got.Status)
	}
	if got.ClientID != "cl-1" {
		t.Fatalf("unexpected client id %q", got.ClientID)
	}
	if len(got.Fields) == 0 {
		t.Fatal("expected verification fields snapshot")
	}
}

func TestEvaluateReadinessUnverifiedBuildsFields(t *testing.T) {
	t.Parallel()

	client := completeClient()
	got := EvaluateReadiness([]ClientDatum{client})
	if got.Status != ReadinessUnverified {
		t.Fatalf("expected unverified, got %q", got.Status)
	}
	if got.Fields["name"] != "Mina Chan" {
		t.Fatalf("fields snapshot missing name: %v", got.Fields)
	}
	if got.Fields["travel_dates"] != "2025-04-01 -> 2025-04-10" {
		t.Fatalf("unexpected travel_dates: %v", got.Fields["travel_dates"])
	}
}

func TestEvaluateReadinessUnverifiedKeepsStoredFields(t *testing.T) {
	t.Parallel()

	client := completeClient()
	client.Verification = VerificationRecord{
		Status: VerificationPending,
		Fields: map[string]any{"name": "Stored Name"},
	}

	got := EvaluateReadiness([]ClientDatum{client})
	if got.Status != ReadinessUnverified {
		t.Fatalf("expected unverified, got %q", got.Status)
	}
	if got.Fields["name"] != "Stored Name" {
		t.Fatalf("stored snapshot should win: %v", got.Fields)
	}
}

func TestEvaluateReadinessReady(t *testing.T) {
	t.Parallel()

	first := completeClient()
	first.Verification = VerificationRecord{Status: VerificationConfirmed}
	second := completeClient()
	second.ClientID = "cl-2"
	second.PersonalInfo.PassportNumber = "E7654321"
	second.PersonalInfo.EmailAddress = "second@example.com"
	second.Verification = VerificationRecord{Status: VerificationConfirmed, ConfirmedAt: isoNow(time.Now())}

	got := EvaluateReadiness([]ClientDatum{first, second})
	if got.Status != ReadinessReady {
		t.Fatalf("expected ready, got %q", got.Status)
	}
	if got.ClientID != "cl-1" {
		t.Fatalf("ready should report first client id, got %q", got.ClientID)
	}
}
