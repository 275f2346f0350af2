package insurer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Config{BaseURL: server.URL, APIKey: "secret-key"})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	client.httpClient = server.Client()
	return client
}

func validInsured() map[string]any {
	return map[string]any{
		"id":           "1",
		"title":        "Ms",
		"firstName":    "Mina",
		"lastName":     "Chan",
		"nationality":  "SG",
		"dateOfBirth":  "1990-06-04",
		"passport":     "E1234567",
		"email":        "mina@example.com",
		"phoneType":    "Mobile",
		"phoneNumber":  "+6591234567",
		"relationship": "main",
	}
}

func validPurchasePayload() map[string]any {
	contact := validInsured()
	contact["address"] = "1 Marina Blvd"
	contact["city"] = "Singapore"
	contact["zipCode"] = "018989"
	contact["countryCode"] = "SG"

	return map[string]any{
		"quoteId": "q-789",
		"purchaseOffers": []any{
			map[string]any{
				"productType": "travel",
				"offerId":     "offer-1",
				"productCode": "TRV-GOLD",
				"currency":    "SGD",
				"unitPrice":   120.5,
				"totalPrice":  241.0,
				"quantity":    2,
			},
		},
		"insureds":    []any{validInsured()},
		"mainContact": contact,
	}
}

func TestNewClientValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewClient(Config{APIKey: "k"}); err == nil {
		t.Fatal("expected error for missing base url")
	}
	if _, err := NewClient(Config{BaseURL: "https://api.example.com"}); err == nil {
		t.Fatal("expected error for missing api key")
	}
}

func TestPurchaseSendsNormalizedPayload(t *testing.T) {
	t.Parallel()

	var gotPath, gotKey string
	var gotBody map[string]any
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-api-key")
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		fmt.Fprint(w, `{"policyId":"pol-42","status":"issued"}`)
	})

	data, err := client.Purchase(context.Background(), validPurchasePayload())
	if err != nil {
		t.Fatalf("Purchase() error = %v", err)
	}
	if data["policyId"] != "pol-42" {
		t.Fatalf("response = %v", data)
	}
	if gotPath != "/purchase" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotKey != "secret-key" {
		t.Fatalf("x-api-key = %q", gotKey)
	}
	if gotBody["market"] != "SG" || gotBody["languageCode"] != "en" || gotBody["channel"] != "white-label" {
		t.Fatalf("defaults not applied: %v", gotBody)
	}

	offers, ok := gotBody["purchaseOffers"].([]any)
	if !ok || len(offers) != 1 {
		t.Fatalf("purchaseOffers = %v", gotBody["purchaseOffers"])
	}
	offer := offers[0].(map[string]any)
	if offer["quantity"] != float64(2) {
		t.Fatalf("quantity = %v", offer["quantity"])
	}
	if offer["isSendEmail"] != true {
		t.Fatalf("isSendEmail default = %v", offer["isSendEmail"])
	}
}

func TestPurchaseOverridesDefaults(t *testing.T) {
	t.Parallel()

	var gotBody map[string]any
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		fmt.Fprint(w, `{"status":"issued"}`)
	})

	payload := validPurchasePayload()
	payload["market"] = "MY"
	payload["languageCode"] = "ms"

	if _, err := client.Purchase(context.Background(), payload); err != nil {
		t.Fatalf("Purchase() error = %v", err)
	}
	if gotBody["market"] != "MY" || gotBody["languageCode"] != "ms" {
		t.Fatalf("overrides lost: %v", gotBody)
	}
}

func TestPreparePurchasePayloadValidation(t *testing.T) {
	t.Parallel()

	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not reach the server")
	})

	tests := []struct {
		name    string
		mutate  func(map[string]any)
		wantMsg string
	}{
		{
			name:    "missing quote id",
			mutate:  func(p map[string]any) { delete(p, "quoteId") },
			wantMsg: `"quoteId" is required`,
		},
		{
			name:    "empty offers",
			mutate:  func(p map[string]any) { p["purchaseOffers"] = []any{} },
			wantMsg: "purchaseOffers must be a non-empty array",
		},
		{
			name: "quantity below minimum",
			mutate: func(p map[string]any) {
				offer := p["purchaseOffers"].([]any)[0].(map[string]any)
				offer["quantity"] = 0
			},
			wantMsg: `"quantity" must be at least 1`,
		},
		{
			name: "missing quantity",
			mutate: func(p map[string]any) {
				offer := p["purchaseOffers"].([]any)[0].(map[string]any)
				delete(offer, "quantity")
			},
			wantMsg: `"quantity" is required`,
		},
		{
			name: "insured missing passport",
			mutate: func(p map[string]any) {
				insured := p["insureds"].([]any)[0].(map[string]any)
				delete(insured, "passport")
			},
			wantMsg: `"passport" is required`,
		},
		{
			name: "contact missing address",
			mutate: func(p map[string]any) {
				contact := p["mainContact"].(map[string]any)
				delete(contact, "address")
			},
			wantMsg: `"address" is required`,
		},
		{
			name:    "missing contact",
			mutate:  func(p map[string]any) { delete(p, "mainContact") },
			wantMsg: "mainContact must be an object",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			payload := validPurchasePayload()
			tc.mutate(payload)
			_, err := client.Purchase(context.Background(), payload)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.wantMsg) {
				t.Fatalf("error = %v, want substring %q", err, tc.wantMsg)
			}
		})
	}
}

func TestPurchaseAPIFailure(t *testing.T) {
	t.Parallel()

	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, `{"error":"upstream down"}`)
	})

	_, err := client.Purchase(context.Background(), validPurchasePayload())
	if !errors.Is(err, ErrAPIFailure) {
		t.Fatalf("Purchase() error = %v, want ErrAPIFailure", err)
	}
}
