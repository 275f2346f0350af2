package nodes

import (
	"fmt"
	"strings"

	"github.com/tanpawarit/aurora-concierge/agent/profile"
)

// verificationLabels orders the confirmation summary shown before checkout.
var verificationLabels = []struct {
	key   string
	label string
}{
	{"name", "Name"},
	{"destination", "Destination"},
	{"trip_type", "Trip type"},
	{"trip_cost", "Trip cost"},
	{"travel_dates", "Travel dates"},
	{"email_address", "Email"},
	{"phone_number", "Phone"},
	{"passport_number", "Passport number"},
}

// composePaymentGuardReply turns a blocking readiness outcome into the
// user-facing message explaining what is still needed.
func composePaymentGuardReply(readiness profile.Readiness) string {
	switch readiness.Status {
	case profile.ReadinessMissingClients:
		return "Before we can secure a policy, I need the traveller's profile - " +
			"name, contacts, passport and trip itinerary. " +
			"Please share those details, or pass them through the integration payload."

	case profile.ReadinessMissingFields:
		fieldsText := "some required fields"
		if missing := readiness.Missing; len(missing) > 0 {
			if len(missing) == 1 {
				fieldsText = missing[0]
			} else {
				fieldsText = strings.Join(missing[:len(missing)-1], ", ") + " and " + missing[len(missing)-1]
			}
		}
		return "I still need a few details before the payment step: " +
			fieldsText + ". Once you share them, I can prepare checkout."

	case profile.ReadinessUnverified:
		var lines []string
		for _, entry := range verificationLabels {
			value, ok := readiness.Fields[entry.key]
			if !ok || value == nil || value == "" {
				continue
			}
			lines = append(lines, fmt.Sprintf("- %s: %v", entry.label, value))
		}
		summary := "- Traveller details on file"
		if len(lines) > 0 {
			summary = strings.Join(lines, "\n")
		}
		return "Let's double-check the traveller info before payment:\n" +
			summary + "\n" +
			"Please confirm everything is correct (a simple 'Confirmed' works) so I can continue."

	default:
		return "I need a complete and confirmed traveller profile before creating the checkout link. " +
			"Could you review the details and update anything that's missing?"
	}
}
