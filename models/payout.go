package models

import "time"

// PayoutRequest is the body sent to the Fapshi payout endpoint
type PayoutRequest struct {
	Amount     int    `json:"amount"`
	Phone      string `json:"phone"`
	Medium     string `json:"medium,omitempty"`
	Name       string `json:"name,omitempty"`
	Email      string `json:"email,omitempty"`
	UserID     string `json:"userId,omitempty"`
	ExternalID string `json:"externalId,omitempty"`
	Message    string `json:"message,omitempty"`
}

// PayoutResult is the part of a successful provider response the ledger keeps.
// Raw holds the full decoded response returned to the operator.
type PayoutResult struct {
	TransID       string
	DateInitiated time.Time
	Raw           map[string]interface{}
}

// PayoutResponse represents the JSON body of a Fapshi payout/balance response
type PayoutResponse struct {
	Message       string  `json:"message"`
	TransID       string  `json:"transId"`
	DateInitiated string  `json:"dateInitiated"`
	Balance       float64 `json:"balance"`
}
