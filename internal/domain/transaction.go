package domain

import (
	"fmt"
	"time"
)

// Transaction represents an incoming financial transaction to be scored.
// Once accepted into the pipeline it is immutable; the risk fields are
// filled in exactly once by the scoring pipeline before persistence.
type Transaction struct {
	// ID is client-supplied for idempotency, or server-generated.
	ID        string `json:"id"`
	AccountID string `json:"accountId"`

	// Financial details
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`

	// Merchant category label (e.g. "retail", "travel")
	MerchantCategory string `json:"merchantCategory"`

	// Optional geocoordinates
	LocationLat *float64 `json:"locationLat,omitempty"`
	LocationLon *float64 `json:"locationLon,omitempty"`

	// Channel label (e.g. "card", "upi", "wire")
	Channel string `json:"channel"`

	Timestamp time.Time `json:"timestamp"`

	// Scoring outcome
	RiskScore int  `json:"riskScore"`
	IsFlagged bool `json:"isFlagged"`
}

// TransactionRequest is the API request payload for transaction ingestion.
type TransactionRequest struct {
	ID               string   `json:"id,omitempty"`
	AccountID        string   `json:"accountId"`
	Amount           float64  `json:"amount"`
	Currency         string   `json:"currency,omitempty"`
	MerchantCategory string   `json:"merchantCategory"`
	LocationLat      *float64 `json:"locationLat,omitempty"`
	LocationLon      *float64 `json:"locationLon,omitempty"`
	Channel          string   `json:"channel"`
}

// Validate checks required fields before the request enters the pipeline.
func (r *TransactionRequest) Validate() error {
	if r.AccountID == "" {
		return fmt.Errorf("%w: accountId is required", ErrInvalidInput)
	}
	if r.Amount < 0 {
		return fmt.Errorf("%w: amount must be non-negative", ErrInvalidInput)
	}
	if r.Currency != "" && len(r.Currency) != 3 {
		return fmt.Errorf("%w: currency must be a 3-letter code", ErrInvalidInput)
	}
	return nil
}

// ToTransaction converts a request to a Transaction domain object.
// The risk fields stay zero until the pipeline scores it.
func (r *TransactionRequest) ToTransaction() *Transaction {
	currency := r.Currency
	if currency == "" {
		currency = "USD"
	}
	return &Transaction{
		ID:               r.ID,
		AccountID:        r.AccountID,
		Amount:           r.Amount,
		Currency:         currency,
		MerchantCategory: r.MerchantCategory,
		LocationLat:      r.LocationLat,
		LocationLon:      r.LocationLon,
		Channel:          r.Channel,
		Timestamp:        time.Now().UTC(),
	}
}
