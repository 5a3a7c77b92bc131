package models

import (
	"time"
)

// WithdrawalOTP is the Mongo fallback record for withdrawal OTP state.
// Kind is "code" (keyed by email) or "verified" (keyed by user id).
type WithdrawalOTP struct {
	Key       string    `bson:"_id"`
	Kind      string    `bson:"kind"`
	Value     string    `bson:"value"`
	Attempts  int64     `bson:"attempts,omitempty"`
	ExpiresAt time.Time `bson:"expiresAt"`
	CreatedAt time.Time `bson:"createdAt"`
}

type SendOTPRequest struct {
	UserID string `json:"userId" validate:"required"`
}

type VerifyOTPRequest struct {
	UserID string `json:"userId" validate:"required"`
	OTP    string `json:"otp" validate:"required"`
}
