package profile

import (
	"strings"
	"time"
)

// MergeClientRecords reconciles a batch of incoming clients against the
// existing roster and returns a replacement roster. Inputs are never mutated;
// every touched record is rebuilt.
func MergeClientRecords(existing, incoming []ClientDatum, now time.Time) []ClientDatum {
	merged := make([]ClientDatum, len(existing))
	for i, client := range existing {
		merged[i] = client.clone()
	}
	for _, candidate := range incoming {
		idx := findMatchingClient(merged, candidate)
		if idx < 0 {
			merged = append(merged, candidate.clone())
			continue
		}
		merged[idx] = mergeClient(merged[idx], candidate, now)
	}
	return merged
}

type identityKey struct {
	kind  string
	value string
}

func clientIdentityKeys(c ClientDatum) map[identityKey]struct{} {
	keys := map[identityKey]struct{}{}
	if !isBlankString(c.ClientID) {
		keys[identityKey{"client_id", strings.ToLower(strings.TrimSpace(c.ClientID))}] = struct{}{}
	}
	if !isBlankString(c.PersonalInfo.PassportNumber) {
		keys[identityKey{"passport_number", strings.ToUpper(strings.TrimSpace(c.PersonalInfo.PassportNumber))}] = struct{}{}
	}
	if !isBlankString(c.PersonalInfo.EmailAddress) {
		keys[identityKey{"email_address", strings.ToLower(strings.TrimSpace(c.PersonalInfo.EmailAddress))}] = struct{}{}
	}
	if !isBlankString(c.PersonalInfo.PhoneNumber) {
		keys[identityKey{"phone_number", digitsOnly(c.PersonalInfo.PhoneNumber)}] = struct{}{}
	}
	return keys
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// findMatchingClient locates the roster entry a candidate should merge into,
// or -1 to append as new. Candidates without strong identifiers fall back to
// relaxed matching: unique roster, unique source, then unique name.
func findMatchingClient(roster []ClientDatum, candidate ClientDatum) int {
	candidateKeys := clientIdentityKeys(candidate)
	if len(candidateKeys) == 0 {
		if len(roster) == 1 {
			return 0
		}
		if !isBlankString(candidate.Source) {
			idx := -1
			for i, client := range roster {
				if client.Source == candidate.Source {
					if idx >= 0 {
						idx = -1
						break
					}
					idx = i
				}
			}
			if idx >= 0 {
				return idx
			}
		}
		name := strings.ToLower(strings.TrimSpace(candidate.PersonalInfo.Name))
		if name != "" {
			idx := -1
			for i, client := range roster {
				if strings.ToLower(strings.TrimSpace(client.PersonalInfo.Name)) == name {
					if idx >= 0 {
						idx = -1
						break
					}
					idx = i
				}
			}
			if idx >= 0 {
				return idx
			}
		}
		return -1
	}

	for i, client := range roster {
		for key := range clientIdentityKeys(client) {
			if _, ok := candidateKeys[key]; ok {
				return i
			}
		}
	}
	return -1
}

// mergeClient folds a matched candidate into the target. A confirmed
// candidate is authoritative and may overwrite non-blank scalar fields.
func mergeClient(target, source ClientDatum, now time.Time) ClientDatum {
	preferSource := source.Verification.status() == VerificationConfirmed

	out := target.clone()
	if isBlankString(out.ClientID) && !isBlankString(source.ClientID) {
		out.ClientID = source.ClientID
	}
	if isBlankString(out.Source) && !isBlankString(source.Source) {
		out.Source = source.Source
	}
	out.PersonalInfo = mergePersonalInfo(out.PersonalInfo, source.PersonalInfo, preferSource)
	out.Interests = mergeInterests(out.Interests, source.Interests)
	out.Trips = mergeTrips(out.Trips, source.Trips, preferSource)
	if len(source.Extra) > 0 {
		if out.Extra == nil {
			out.Extra = map[string]any{}
		}
		for k, v := range source.Extra {
			out.Extra[k] = v
		}
	}
	out.Verification = mergeVerification(out.Verification, source.Verification, now)
	return out
}

func mergePersonalInfo(target, source PersonalInfo, preferSource bool) PersonalInfo {
	out := target
	override := func(current, incoming string) string {
		if isBlankString(incoming) {
			return current
		}
		if isBlankString(current) || preferSource {
			return incoming
		}
		return current
	}
	out.Name = override(target.Name, source.Name)
	out.EmailAddress = override(target.EmailAddress, source.EmailAddress)
	out.PhoneNumber = override(target.PhoneNumber, source.PhoneNumber)
	out.PlaceOfResidence = override(target.PlaceOfResidence, source.PlaceOfResidence)
	out.PassportNumber = override(target.PassportNumber, source.PassportNumber)
	if !source.DateOfBirth.IsZero() && (target.DateOfBirth.IsZero() || preferSource) {
		out.DateOfBirth = source.DateOfBirth
	}
	return out
}

// mergeInterests unions case-insensitively, keeping first-seen casing and
// existing order, appending new entries.
func mergeInterests(existing, incoming []string) []string {
	var combined []string
	seen := map[string]struct{}{}
	for _, value := range append(append([]string(nil), existing...), incoming...) {
		normalized := strings.TrimSpace(value)
		if normalized == "" {
			continue
		}
		key := strings.ToLower(normalized)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		combined = append(combined, normalized)
	}
	return combined
}

func mergeTrips(existing, incoming []TripDetails, preferSource bool) []TripDetails {
	merged := make([]TripDetails, len(existing))
	copy(merged, existing)
	for _, trip := range incoming {
		idx := locateTrip(merged, trip)
		if idx < 0 {
			merged = append(merged, trip.clone())
			continue
		}
		merged[idx] = mergeTrip(merged[idx], trip, preferSource)
	}
	return merged
}

type tripKey struct {
	id          string
	destination string
	start       string
	end         string
	tripType    string
}

func tripIdentityKey(trip TripDetails) (tripKey, bool) {
	if !isBlankString(trip.TripID) {
		return tripKey{id: trip.TripID}, true
	}
	if !isBlankString(trip.Destination) && !trip.StartDate.IsZero() {
		end := ""
		if !trip.EndDate.IsZero() {
			end = trip.EndDate.String()
		}
		return tripKey{
			destination: strings.ToLower(strings.TrimSpace(trip.Destination)),
			start:       trip.StartDate.String(),
			end:         end,
			tripType:    string(trip.TripType),
		}, true
	}
	return tripKey{}, false
}

func locateTrip(trips []TripDetails, candidate TripDetails) int {
	candidateKey, ok := tripIdentityKey(candidate)
	if !ok {
		// A keyless candidate still merges into a structurally equal
		// keyless trip, so re-merging the same batch stays a no-op.
		for i, trip := range trips {
			if _, keyed := tripIdentityKey(trip); keyed {
				continue
			}
			if tripsEquivalent(trip, candidate) {
				return i
			}
		}
		return -1
	}
	for i, trip := range trips {
		if key, ok := tripIdentityKey(trip); ok && key == candidateKey {
			return i
		}
	}
	return -1
}

func tripsEquivalent(a, b TripDetails) bool {
	if !strings.EqualFold(strings.TrimSpace(a.Destination), strings.TrimSpace(b.Destination)) {
		return false
	}
	if !a.StartDate.Equal(b.StartDate) || !a.EndDate.Equal(b.EndDate) {
		return false
	}
	if a.TripType != b.TripType {
		return false
	}
	if (a.TripCost == nil) != (b.TripCost == nil) {
		return false
	}
	if a.TripCost != nil && *a.TripCost != *b.TripCost {
		return false
	}
	return strings.TrimSpace(a.Notes) == strings.TrimSpace(b.Notes)
}

func mergeTrip(base, incoming TripDetails, preferSource bool) TripDetails {
	out := base.clone()
	overrideStr := func(current, next string) string {
		if isBlankString(next) {
			return current
		}
		if isBlankString(current) || preferSource {
			return next
		}
		return current
	}
	out.TripID = overrideStr(base.TripID, incoming.TripID)
	out.Destination = overrideStr(base.Destination, incoming.Destination)
	out.Notes = overrideStr(base.Notes, incoming.Notes)
	out.TripType = TripType(overrideStr(string(base.TripType), string(incoming.TripType)))
	if !incoming.StartDate.IsZero() && (base.StartDate.IsZero() || preferSource) {
		out.StartDate = incoming.StartDate
	}
	if !incoming.EndDate.IsZero() && (base.EndDate.IsZero() || preferSource) {
		out.EndDate = incoming.EndDate
	}
	if incoming.TripCost != nil && (base.TripCost == nil || preferSource) {
		out.TripCost = floatPtr(*incoming.TripCost)
	}
	// Metadata always shallow-merges, incoming keys win.
	if len(incoming.Metadata) > 0 {
		if out.Metadata == nil {
			out.Metadata = map[string]any{}
		}
		for k, v := range incoming.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

// mergeVerification takes the higher-priority status; equal priorities merge
// field snapshots and keep the latest timestamps. Status never regresses.
func mergeVerification(current, incoming VerificationRecord, now time.Time) VerificationRecord {
	currentPriority := verificationPriority(current.status())
	incomingPriority := verificationPriority(incoming.status())

	switch {
	case incomingPriority > currentPriority:
		out := current.clone()
		out.Status = incoming.status()
		if len(incoming.Fields) > 0 {
			out.Fields = cloneMap(incoming.Fields)
		}
		if incoming.status() == VerificationPending && isBlankString(incoming.RequestedAt) {
			out.RequestedAt = isoNow(now)
		} else if !isBlankString(incoming.RequestedAt) {
			out.RequestedAt = incoming.RequestedAt
		}
		if !isBlankString(incoming.ConfirmedAt) {
			out.ConfirmedAt = incoming.ConfirmedAt
		} else if incoming.status() == VerificationConfirmed {
			out.ConfirmedAt = isoNow(now)
		}
		return out

	case incomingPriority == currentPriority:
		out := current.clone()
		if len(incoming.Fields) > 0 {
			if out.Fields == nil {
				out.Fields = map[string]any{}
			}
			for k, v := range incoming.Fields {
				out.Fields[k] = v
			}
		}
		if !isBlankString(incoming.RequestedAt) && incoming.RequestedAt > current.RequestedAt {
			out.RequestedAt = incoming.RequestedAt
		}
		if !isBlankString(incoming.ConfirmedAt) && incoming.ConfirmedAt > current.ConfirmedAt {
			out.ConfirmedAt = incoming.ConfirmedAt
		}
		return out

	default:
		return current.clone()
	}
}

func isoNow(now time.Time) string {
	return now.UTC().Format(time.RFC3339)
}
