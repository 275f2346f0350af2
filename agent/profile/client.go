package profile

import (
	"strings"
)

// TripType is either "single" or "round".
type TripType string

const (
	TripSingle TripType = "single"
	TripRound  TripType = "round"
)

type VerificationStatus string

const (
	VerificationUnknown   VerificationStatus = "unknown"
	VerificationPending   VerificationStatus = "pending"
	VerificationConfirmed VerificationStatus = "confirmed"
)

// verificationPriority orders statuses so merges never regress a record.
func verificationPriority(status VerificationStatus) int {
	switch status {
	case VerificationPending:
		return 1
	case VerificationConfirmed:
		return 2
	default:
		return 0
	}
}

// PersonalInfo carries the traveller identity fields. Every field is
// optional; blank strings and zero dates count as unset.
type PersonalInfo struct {
	Name             string `json:"name,omitempty"`
	EmailAddress     string `json:"email_address,omitempty"`
	PhoneNumber      string `json:"phone_number,omitempty"`
	DateOfBirth      Date   `json:"date_of_birth,omitzero"`
	PlaceOfResidence string `json:"place_of_residence,omitempty"`
	PassportNumber   string `json:"passport_number,omitempty"`
}

type TripDetails struct {
	TripID      string         `json:"trip_id,omitempty"`
	Destination string         `json:"destination,omitempty"`
	StartDate   Date           `json:"start_date,omitzero"`
	EndDate     Date           `json:"end_date,omitzero"`
	TripType    TripType       `json:"trip_type,omitempty"`
	TripCost    *float64       `json:"trip_cost,omitempty"`
	Notes       string         `json:"notes,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// MissingFields reports which required trip fields are still unset, using the
// user-facing labels the concierge surfaces in replies.
func (t TripDetails) MissingFields() []string {
	var missing []string
	if isBlankString(t.Destination) {
		missing = append(missing, "Trip destination")
	}
	if t.StartDate.IsZero() {
		missing = append(missing, "Trip start date")
	}
	if t.EndDate.IsZero() {
		missing = append(missing, "Trip end date")
	}
	if isBlankString(string(t.TripType)) {
		missing = append(missing, "Trip type")
	}
	if t.TripCost == nil {
		missing = append(missing, "Trip cost")
	}
	return missing
}

func (t TripDetails) clone() TripDetails {
	out := t
	out.Metadata = cloneMap(t.Metadata)
	return out
}

// VerificationRecord tracks the profile confirmation state machine:
// unknown -> pending -> confirmed, never backwards.
type VerificationRecord struct {
	Status      VerificationStatus `json:"status,omitempty"`
	RequestedAt string             `json:"requested_at,omitempty"`
	ConfirmedAt string             `json:"confirmed_at,omitempty"`
	Fields      map[string]any     `json:"fields,omitempty"`
}

func (v VerificationRecord) status() VerificationStatus {
	if v.Status == "" {
		return VerificationUnknown
	}
	return v.Status
}

func (v VerificationRecord) clone() VerificationRecord {
	out := v
	out.Fields = cloneMap(v.Fields)
	return out
}

// ClientDatum is one traveller profile as assembled from a channel payload,
// a partner API, or a payment callback.
type ClientDatum struct {
	ClientID     string             `json:"client_id,omitempty"`
	Source       string             `json:"source,omitempty"`
	PersonalInfo PersonalInfo       `json:"personal_info"`
	Trips        []TripDetails      `json:"trips,omitempty"`
	Interests    []string           `json:"interests,omitempty"`
	Extra        map[string]any     `json:"extra,omitempty"`
	Verification VerificationRecord `json:"verification"`
}

// RequiredMissingFields returns the ordered list of mandatory fields still
// unset: the six personal fields, then the preferred trip's required fields.
// With no trips at all, a single "Trip details" entry stands in.
func (c ClientDatum) RequiredMissingFields() []string {
	var missing []string
	if isBlankString(c.PersonalInfo.Name) {
		missing = append(missing, "Name")
	}
	if isBlankString(c.PersonalInfo.EmailAddress) {
		missing = append(missing, "Email address")
	}
	if isBlankString(c.PersonalInfo.PhoneNumber) {
		missing = append(missing, "Phone number")
	}
	if c.PersonalInfo.DateOfBirth.IsZero() {
		missing = append(missing, "Date of birth")
	}
	if isBlankString(c.PersonalInfo.PlaceOfResidence) {
		missing = append(missing, "Place of residence")
	}
	if isBlankString(c.PersonalInfo.PassportNumber) {
		missing = append(missing, "Passport number")
	}

	if len(c.Trips) == 0 {
		missing = append(missing, "Trip details")
		return missing
	}

	trip := PreferredTrip(c)
	if trip == nil {
		missing = append(missing, "Trip details")
		return missing
	}
	return append(missing, trip.MissingFields()...)
}

func (c ClientDatum) clone() ClientDatum {
	out := c
	out.Trips = make([]TripDetails, len(c.Trips))
	for i, trip := range c.Trips {
		out.Trips[i] = trip.clone()
	}
	out.Interests = append([]string(nil), c.Interests...)
	out.Extra = cloneMap(c.Extra)
	out.Verification = c.Verification.clone()
	return out
}

// PreferredTrip picks the first trip with nothing missing, else the first
// trip, else nil. The pointer aliases the client's slice.
func PreferredTrip(c ClientDatum) *TripDetails {
	if len(c.Trips) == 0 {
		return nil
	}
	for i := range c.Trips {
		if len(c.Trips[i].MissingFields()) == 0 {
			return &c.Trips[i]
		}
	}
	return &c.Trips[0]
}

// BuildVerificationFields assembles the snapshot of values shown to the user
// for confirmation before payment.
func BuildVerificationFields(c ClientDatum) map[string]any {
	fields := map[string]any{}
	put := func(key, value string) {
		if !isBlankString(value) {
			fields[key] = value
		}
	}
	put("name", c.PersonalInfo.Name)
	put("email_address", c.PersonalInfo.EmailAddress)
	put("passport_number", c.PersonalInfo.PassportNumber)
	put("phone_number", c.PersonalInfo.PhoneNumber)

	trip := PreferredTrip(c)
	if trip == nil {
		return fields
	}
	put("destination", trip.Destination)
	put("trip_type", string(trip.TripType))
	if trip.TripCost != nil {
		fields["trip_cost"] = *trip.TripCost
	}
	put("travel_dates", formatTripDates(*trip))
	return fields
}

func formatTripDates(trip TripDetails) string {
	switch {
	case !trip.StartDate.IsZero() && !trip.EndDate.IsZero():
		return trip.StartDate.String() + " -> " + trip.EndDate.String()
	case !trip.StartDate.IsZero():
		return trip.StartDate.String()
	case !trip.EndDate.IsZero():
		return trip.EndDate.String()
	default:
		return ""
	}
}

func isBlankString(s string) bool {
	return strings.TrimSpace(s) == ""
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func floatPtr(v float64) *float64 {
	return &v
}
