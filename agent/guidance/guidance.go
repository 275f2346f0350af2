// Package guidance renders the reconciled traveller roster into a system
// prompt block that steers the concierge toward the right next step.
package guidance

import (
	"encoding/json"
	"fmt"

	"github.com/tanpawarit/aurora-concierge/agent/profile"
)

// Status summarizes how much of the roster is actionable.
type Status string

const (
	StatusRich    Status = "rich"
	StatusPartial Status = "partial"
	StatusSparse  Status = "sparse"
)

// ProfileGuidance is the composed prompt block plus its overall status.
type ProfileGuidance struct {
	Status  Status
	Summary string
}

type clientEntry struct {
	Label         string         `json:"label"`
	ClientID      string         `json:"client_id,omitempty"`
	Source        string         `json:"source,omitempty"`
	Verification  string         `json:"verification"`
	MissingFields []string       `json:"missing_fields,omitempty"`
	PersonalInfo  map[string]any `json:"personal_info,omitempty"`
	Interests     []string       `json:"interests,omitempty"`
	Trip          map[string]any `json:"trip,omitempty"`
	ToolInputs    map[string]any `json:"tool_inputs,omitempty"`
}

type guidancePayload struct {
	Status   Status        `json:"status"`
	Clients  []clientEntry `json:"clients"`
	Workflow []string      `json:"workflow"`
}

// Compose builds the guidance block for the given roster, or nil when no
// traveller data exists yet. Complete clients get ready-to-use tool inputs.
func Compose(clients []profile.ClientDatum) (*ProfileGuidance, error) {
	if len(clients) == 0 {
		return nil, nil
	}

	entries := make([]clientEntry, 0, len(clients))
	complete := 0
	partial := 0

	for index, client := range clients {
		label := client.PersonalInfo.Name
		if label == "" {
			label = client.ClientID
		}
		if label == "" {
			label = fmt.Sprintf("Client %d", index+1)
		}

		missing := client.RequiredMissingFields()
		if len(missing) > 0 {
			partial++
		} else {
			complete++
		}

		entry := clientEntry{
			Label:         label,
			ClientID:      client.ClientID,
			Source:        client.Source,
			Verification:  string(client.Verification.Status),
			MissingFields: missing,
			PersonalInfo:  compactPersonalInfo(client.PersonalInfo),
			Interests:     client.Interests,
		}
		if entry.Verification == "" {
			entry.Verification = string(profile.VerificationUnknown)
		}

		if trip := profile.PreferredTrip(client); trip != nil {
			entry.Trip = serializeTrip(*trip)
			if len(missing) == 0 {
				entry.ToolInputs = buildToolHints(client, *trip)
			}
		}

		entries = append(entries, entry)
	}

	status := StatusSparse
	switch {
	case complete > 0:
		status = StatusRich
	case partial > 0:
		status = StatusPartial
	}

	payload := guidancePayload{
		Status:   status,
		Clients:  entries,
		Workflow: buildInstructions(status),
	}

	encoded, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode profile guidance: %w", err)
	}

	return &ProfileGuidance{
		Status:  status,
		Summary: "[Integrated Traveller Data]\n" + string(encoded),
	}, nil
}

func compactPersonalInfo(info profile.PersonalInfo) map[string]any {
	payload := map[string]any{}
	put := func(key, value string) {
		if value != "" {
			payload[key] = value
		}
	}
	put("name", info.Name)
	put("email", info.EmailAddress)
	put("phone", info.PhoneNumber)
	put("residence", info.PlaceOfResidence)
	put("passport", info.PassportNumber)
	if !info.DateOfBirth.IsZero() {
		payload["date_of_birth"] = info.DateOfBirth.String()
	}
	if len(payload) == 0 {
		return nil
	}
	return payload
}

func serializeTrip(trip profile.TripDetails) map[string]any {
	payload := map[string]any{}
	put := func(key, value string) {
		if value != "" {
			payload[key] = value
		}
	}
	put("trip_id", trip.TripID)
	put("destination", trip.Destination)
	put("trip_type", string(trip.TripType))
	put("notes", trip.Notes)
	if !trip.StartDate.IsZero() {
		payload["start_date"] = trip.StartDate.String()
	}
	if !trip.EndDate.IsZero() {
		payload["end_date"] = trip.EndDate.String()
	}
	if trip.TripCost != nil {
		payload["trip_cost"] = *trip.TripCost
	}
	if len(trip.Metadata) > 0 {
		payload["metadata"] = trip.Metadata
	}
	if len(payload) == 0 {
		return nil
	}
	return payload
}

func buildToolHints(client profile.ClientDatum, trip profile.TripDetails) map[string]any {
	var activity any
	if v, ok := trip.Metadata["activity"]; ok && v != nil && v != "" {
		activity = v
	} else if len(client.Interests) > 0 {
		activity = client.Interests[0]
	}

	params := map[string]any{}
	if trip.Destination != "" {
		params["destination"] = trip.Destination
	}
	if activity != nil {
		params["activity"] = activity
	}
	if trip.TripCost != nil {
		params["trip_cost"] = *trip.TripCost
	}

	return map[string]any{"claims_recommendation": params}
}

func buildInstructions(status Status) []string {
	instructions := []string{
		"Surface the integration data, confirm accuracy with the traveller, and note any missing items.",
		"Always keep responses concise, empathetic, and cite policy sources in answers.",
		"Never initiate payment until all required fields are present and the traveller has explicitly confirmed the profile.",
	}

	if status == StatusRich {
		return append([]string{
			"Profile is complete. After confirmation, immediately run `claims_recommendation` and follow up with `policy_research` to produce tailored options.",
		}, instructions...)
	}
	return append([]string{
		"Profile is incomplete. Ask targeted questions to capture the missing information before running recommendation tools.",
	}, instructions...)
}
