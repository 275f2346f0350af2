package profile

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Payment provider payloads arrive with wildly inconsistent key names. These
// alias tables fold the known variants onto canonical profile fields.
var personalInfoFieldMap = map[string]string{
	"customer_email":        "email_address",
	"email":                 "email_address",
	"email_address":         "email_address",
	"contact_email":         "email_address",
	"name":                  "name",
	"full_name":             "name",
	"customer_name":         "name",
	"traveller_name":        "name",
	"traveler_name":         "name",
	"phone":                 "phone_number",
	"phone_number":          "phone_number",
	"contact_number":        "phone_number",
	"mobile":                "phone_number",
	"customer_phone":        "phone_number",
	"customer_phone_number": "phone_number",
	"date_of_birth":         "date_of_birth",
	"dob":                   "date_of_birth",
	"birth_date":            "date_of_birth",
	"passport":              "passport_number",
	"passport_number":       "passport_number",
	"place_of_residence":    "place_of_residence",
	"residence":             "place_of_residence",
	"home_city":             "place_of_residence",
	"city":                  "place_of_residence",
	"address":               "place_of_residence",
}

var tripFieldMap = map[string]string{
	"destination":        "destination",
	"trip_destination":   "destination",
	"travel_destination": "destination",
	"destination_city":   "destination",
	"start_date":         "start_date",
	"trip_start_date":    "start_date",
	"departure_date":     "start_date",
	"travel_start":       "start_date",
	"end_date":           "end_date",
	"trip_end_date":      "end_date",
	"return_date":        "end_date",
	"travel_end":         "end_date",
	"trip_type":          "trip_type",
	"trip_category":      "trip_type",
	"trip_cost":          "trip_cost",
	"total_cost":         "trip_cost",
	"coverage_amount":    "trip_cost",
	"premium_amount":     "trip_cost",
}

// Top-level payload keys worth inspecting, in precedence order. Metadata
// entries only fill slots these have not claimed.
var paymentSourceKeys = []string{
	"customer_email",
	"customer_name",
	"customer_phone",
	"customer_phone_number",
	"traveller_name",
	"traveler_name",
	"phone_number",
	"passport_number",
	"date_of_birth",
	"place_of_residence",
	"destination",
	"trip_destination",
	"trip_start_date",
	"trip_end_date",
	"trip_type",
	"trip_cost",
}

var (
	camelBoundaryRe = regexp.MustCompile(`([a-z0-9])([A-Z])`)
	nonAlnumRe      = regexp.MustCompile(`[^A-Za-z0-9]+`)
	numberRe        = regexp.MustCompile(`-?\d+(?:\.\d+)?`)
)

func normalizeKey(key string) string {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return ""
	}
	snaked := camelBoundaryRe.ReplaceAllString(trimmed, "${1}_${2}")
	collapsed := nonAlnumRe.ReplaceAllString(snaked, "_")
	return strings.Trim(strings.ToLower(collapsed), "_")
}

// ApplyPaymentContext folds a checkout payload into the roster, filling blank
// fields on the first client that still has required gaps. Returns the new
// roster and whether anything changed. Confirmed verifications keep their
// field snapshot; otherwise the snapshot is refreshed after an update.
func ApplyPaymentContext(clients []ClientDatum, payload map[string]any) ([]ClientDatum, bool) {
	if len(payload) == 0 || len(clients) == 0 {
		return clients, false
	}

	aggregated := aggregatePaymentFields(payload)
	if len(aggregated) == 0 {
		return clients, false
	}

	out := make([]ClientDatum, len(clients))
	for i, client := range clients {
		out[i] = client.clone()
	}

	for i := range out {
		if len(out[i].RequiredMissingFields()) == 0 {
			continue
		}
		if enrichClient(&out[i], aggregated) {
			return out, true
		}
		break
	}
	return clients, false
}

func aggregatePaymentFields(payload map[string]any) map[string]any {
	aggregated := map[string]any{}
	collect := func(key string, value any) {
		normalized := normalizeKey(key)
		if normalized == "" || isBlankValue(value) {
			return
		}
		if _, ok := aggregated[normalized]; !ok {
			aggregated[normalized] = value
		}
	}

	for _, sourceKey := range paymentSourceKeys {
		if value, ok := payload[sourceKey]; ok {
			collect(sourceKey, value)
		}
	}
	if metadata, ok := payload["metadata"].(map[string]any); ok {
		for _, key := range sortedKeys(metadata) {
			collect(key, metadata[key])
		}
	}
	return aggregated
}

func enrichClient(client *ClientDatum, aggregated map[string]any) bool {
	updated := false

	for _, key := range sortedKeys(aggregated) {
		fieldName, ok := personalInfoFieldMap[key]
		if !ok {
			continue
		}
		if setPersonalInfoField(&client.PersonalInfo, fieldName, aggregated[key]) {
			updated = true
		}
	}

	tripUpdates := map[string]any{}
	for _, key := range sortedKeys(aggregated) {
		tripField, ok := tripFieldMap[key]
		if !ok {
			continue
		}
		if _, taken := tripUpdates[tripField]; taken {
			continue
		}
		tripUpdates[tripField] = aggregated[key]
	}

	if len(tripUpdates) > 0 {
		trip := PreferredTrip(*client)
		if trip == nil {
			client.Trips = append(client.Trips, TripDetails{})
			trip = &client.Trips[len(client.Trips)-1]
		}
		for _, field := range sortedKeys(tripUpdates) {
			if setTripField(trip, field, tripUpdates[field]) {
				updated = true
			}
		}
	}

	if updated && client.Verification.status() != VerificationConfirmed {
		client.Verification.Fields = BuildVerificationFields(*client)
	}
	return updated
}

func setPersonalInfoField(info *PersonalInfo, field string, raw any) bool {
	switch field {
	case "date_of_birth":
		parsed, ok := coerceDate(raw)
		if !ok || !info.DateOfBirth.IsZero() {
			return false
		}
		info.DateOfBirth = parsed
		return true
	case "email_address":
		text := strings.ToLower(strings.TrimSpace(stringify(raw)))
		return setBlankString(&info.EmailAddress, text)
	case "name":
		return setBlankString(&info.Name, strings.TrimSpace(stringify(raw)))
	case "place_of_residence":
		return setBlankString(&info.PlaceOfResidence, strings.TrimSpace(stringify(raw)))
	case "passport_number":
		return setBlankString(&info.PassportNumber, strings.TrimSpace(stringify(raw)))
	case "phone_number":
		return setBlankString(&info.PhoneNumber, strings.TrimSpace(stringify(raw)))
	}
	return false
}

func setTripField(trip *TripDetails, field string, raw any) bool {
	switch field {
	case "start_date":
		parsed, ok := coerceDate(raw)
		if !ok || !trip.StartDate.IsZero() {
			return false
		}
		trip.StartDate = parsed
		return true
	case "end_date":
		parsed, ok := coerceDate(raw)
		if !ok || !trip.EndDate.IsZero() {
			return false
		}
		trip.EndDate = parsed
		return true
	case "trip_cost":
		value, ok := coerceFloat(raw)
		if !ok || trip.TripCost != nil {
			return false
		}
		trip.TripCost = floatPtr(value)
		return true
	case "trip_type":
		normalized, ok := normalizeTripType(raw)
		if !ok || trip.TripType != "" {
			return false
		}
		trip.TripType = normalized
		return true
	case "destination":
		return setBlankString(&trip.Destination, strings.TrimSpace(stringify(raw)))
	}
	return false
}

func setBlankString(target *string, value string) bool {
	if value == "" || !isBlankString(*target) {
		return false
	}
	*target = value
	return true
}

func coerceDate(raw any) (Date, bool) {
	switch v := raw.(type) {
	case Date:
		if v.IsZero() {
			return Date{}, false
		}
		return v, true
	case string:
		return ParseDate(v)
	default:
		return Date{}, false
	}
}

func coerceFloat(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		text := strings.ReplaceAll(strings.TrimSpace(v), ",", "")
		match := numberRe.FindString(text)
		if match == "" {
			return 0, false
		}
		value, err := strconv.ParseFloat(match, 64)
		if err != nil {
			return 0, false
		}
		return value, true
	default:
		return 0, false
	}
}

func normalizeTripType(raw any) (TripType, bool) {
	text := strings.ToLower(strings.TrimSpace(stringify(raw)))
	switch text {
	case "single", "single_trip", "single-trip", "one_way", "one-way":
		return TripSingle, true
	case "round", "round_trip", "round-trip", "return", "return_trip", "roundtrip":
		return TripRound, true
	default:
		return "", false
	}
}

func stringify(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func isBlankValue(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []any:
		return len(v) == 0
	case map[string]any:
		return len(v) == 0
	default:
		return false
	}
}
