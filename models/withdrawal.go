package models

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Withdrawal statuses
const (
	WithdrawalStatusPending    = "pending"
	WithdrawalStatusProcessing = "processing" // claimed by a payout while the provider call is in flight
	WithdrawalStatusApproved   = "approved"
	WithdrawalStatusRejected   = "rejected"
)

// MaxWithdrawalAmount bounds a single withdrawal, in whole currency units
const MaxWithdrawalAmount = 100_000_000

const withdrawalIDPrefix = "#WITH"

var withdrawalIDPattern = regexp.MustCompile(`^#WITH(\d+)$`)

// PaymentDetails is the payout destination. It is write-once and never leaves the API.
type PaymentDetails struct {
	MobileNumber string `bson:"mobileNumber" json:"mobileNumber" validate:"required"`
	AccountName  string `bson:"accountName,omitempty" json:"accountName,omitempty"`
}

// Payment describes how a withdrawal is paid out
type Payment struct {
	PaymentMethod string          `bson:"paymentMethod" json:"paymentMethod" validate:"required"` // provider medium, e.g. "mobile_money"
	Method        string          `bson:"method" json:"method" validate:"required"`               // display name, e.g. "MTN"
	Details       *PaymentDetails `bson:"details" json:"details" validate:"required"`
}

type Withdrawal struct {
	ID              primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	WithdrawalID    string              `bson:"withdrawalId" json:"withdrawalId"`
	UserID          primitive.ObjectID  `bson:"userId" json:"userId"`
	Amount          float64             `bson:"amount" json:"amount"`
	Payment         Payment             `bson:"payment" json:"payment"`
	EventID         *primitive.ObjectID `bson:"eventId,omitempty" json:"eventId,omitempty"`
	Balance         *float64            `bson:"balance,omitempty" json:"balance,omitempty"`
	Status          string              `bson:"status" json:"status"`
	WithdrawalCode  string              `bson:"withdrawalCode,omitempty" json:"withdrawalCode,omitempty"`
	TransID         string              `bson:"transId,omitempty" json:"transId,omitempty"`
	DateInitiated   *time.Time          `bson:"dateInitiated,omitempty" json:"dateInitiated,omitempty"`
	ProcessedAt     *time.Time          `bson:"processedAt,omitempty" json:"processedAt,omitempty"`
	RejectionReason string              `bson:"rejectionReason,omitempty" json:"rejectionReason,omitempty"`
	CreatedAt       time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time           `bson:"updatedAt" json:"updatedAt"`
}

// WithdrawalWithUser is a withdrawal joined with its owner's display name
type WithdrawalWithUser struct {
	Withdrawal `bson:",inline"`
	UserName   string `bson:"userName"`
}

// CreateWithdrawalRequest is the body of POST /api/withdrawals
type CreateWithdrawalRequest struct {
	UserID  string   `json:"userId" validate:"required"`
	Amount  float64  `json:"amount" validate:"required,gte=1,lte=100000000"`
	Payment *Payment `json:"payment" validate:"required"`
	EventID string   `json:"eventId,omitempty"`
	Balance *float64 `json:"balance,omitempty"`
}

// PaymentView is the read projection of Payment. It has no details field on purpose.
type PaymentView struct {
	PaymentMethod string `json:"paymentMethod"`
	Method        string `json:"method"`
}

// WithdrawalView is the only shape a withdrawal takes in API responses
type WithdrawalView struct {
	ID              string      `json:"id"`
	WithdrawalID    string      `json:"withdrawalId"`
	UserID          string      `json:"userId"`
	UserName        string      `json:"userName"`
	Amount          float64     `json:"amount"`
	Payment         PaymentView `json:"payment"`
	EventID         string      `json:"eventId,omitempty"`
	Balance         *float64    `json:"balance,omitempty"`
	Status          string      `json:"status"`
	WithdrawalCode  string      `json:"withdrawalCode,omitempty"`
	TransID         string      `json:"transId,omitempty"`
	DateInitiated   *time.Time  `json:"dateInitiated,omitempty"`
	ProcessedAt     *time.Time  `json:"processedAt,omitempty"`
	RejectionReason string      `json:"rejectionReason,omitempty"`
	CreatedAt       time.Time   `json:"createdAt"`
	UpdatedAt       time.Time   `json:"updatedAt"`
}

// ToView projects a withdrawal into its response shape
func (w *Withdrawal) ToView(userName string) WithdrawalView {
	view := WithdrawalView{
		ID:           w.ID.Hex(),
		WithdrawalID: w.WithdrawalID,
		UserID:       w.UserID.Hex(),
		UserName:     userName,
		Amount:       w.Amount,
		Payment: PaymentView{
			PaymentMethod: w.Payment.PaymentMethod,
			Method:        w.Payment.Method,
		},
		Balance:         w.Balance,
		Status:          w.Status,
		WithdrawalCode:  w.WithdrawalCode,
		TransID:         w.TransID,
		DateInitiated:   w.DateInitiated,
		ProcessedAt:     w.ProcessedAt,
		RejectionReason: w.RejectionReason,
		CreatedAt:       w.CreatedAt,
		UpdatedAt:       w.UpdatedAt,
	}
	if w.EventID != nil {
		view.EventID = w.EventID.Hex()
	}
	return view
}

// FormatWithdrawalID renders n as "#WITH" followed by at least four digits
func FormatWithdrawalID(n int64) string {
	return fmt.Sprintf("%s%04d", withdrawalIDPrefix, n)
}

// ParseWithdrawalNumber extracts the numeric part of a withdrawal id.
// ok is false when id does not look like "#WITH<digits>".
func ParseWithdrawalNumber(id string) (n int64, ok bool) {
	m := withdrawalIDPattern.FindStringSubmatch(id)
	if m == nil {
		return 0, false
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// NormalizeWithdrawalID accepts the URL-safe form ("WITH0001") as well as the stored one
func NormalizeWithdrawalID(id string) string {
	if id != "" && id[0] != '#' {
		return "#" + id
	}
	return id
}
