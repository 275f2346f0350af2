package profile

// ReadinessStatus classifies whether the roster can proceed to payment.
type ReadinessStatus string

const (
	ReadinessMissingClients ReadinessStatus = "missing_clients"
	ReadinessMissingFields  ReadinessStatus = "missing_fields"
	ReadinessUnverified     ReadinessStatus = "unverified"
	ReadinessReady          ReadinessStatus = "ready"
)

// Readiness is the outcome of the payment gate evaluation.
type Readiness struct {
	Status   ReadinessStatus `json:"status"`
	ClientID string          `json:"client_id,omitempty"`
	Missing  []string        `json:"missing,omitempty"`
	Fields   map[string]any  `json:"fields,omitempty"`
}

// EvaluateReadiness checks the roster for payment readiness in roster order.
// The first blocking client wins: its missing required fields, or failing
// that its unconfirmed verification, decide the outcome.
func EvaluateReadiness(clients []ClientDatum) Readiness {
	if len(clients) == 0 {
		return Readiness{Status: ReadinessMissingClients}
	}
	for _, client := range clients {
		if missing := client.RequiredMissingFields(); len(missing) > 0 {
			return Readiness{
				Status:   ReadinessMissingFields,
				ClientID: client.ClientID,
				Missing:  missing,
			}
		}
		if client.Verification.status() != VerificationConfirmed {
			fields := client.Verification.Fields
			if len(fields) == 0 {
				fields = BuildVerificationFields(client)
			}
			return Readiness{
				Status:   ReadinessUnverified,
				ClientID: client.ClientID,
				Fields:   fields,
			}
		}
	}
	return Readiness{Status: ReadinessReady, ClientID: clients[0].ClientID}
}
