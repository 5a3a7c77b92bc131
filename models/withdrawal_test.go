package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestFormatWithdrawalID(t *testing.T) {
	assert.Equal(t, "#WITH0001", FormatWithdrawalID(1))
	assert.Equal(t, "#WITH0042", FormatWithdrawalID(42))
	assert.Equal(t, "#WITH9999", FormatWithdrawalID(9999))
	assert.Equal(t, "#WITH10000", FormatWithdrawalID(10000))
}

func TestParseWithdrawalNumber(t *testing.T) {
	tests := []struct {
		id   string
		want int64
		ok   bool
	}{
		{"#WITH0001", 1, true},
		{"#WITH12345", 12345, true},
		{"", 0, false},
		{"WITH0001", 0, false},
		{"#WITHabc", 0, false},
		{"#WITH0001x", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseWithdrawalNumber(tt.id)
		assert.Equal(t, tt.want, got, tt.id)
		assert.Equal(t, tt.ok, ok, tt.id)
	}
}

func TestNormalizeWithdrawalID(t *testing.T) {
	assert.Equal(t, "#WITH0003", NormalizeWithdrawalID("WITH0003"))
	assert.Equal(t, "#WITH0003", NormalizeWithdrawalID("#WITH0003"))
	assert.Equal(t, "", NormalizeWithdrawalID(""))
}

func TestToViewOmitsPaymentDetails(t *testing.T) {
	eventID := primitive.NewObjectID()
	w := &Withdrawal{
		ID:           primitive.NewObjectID(),
		WithdrawalID: "#WITH0007",
		UserID:       primitive.NewObjectID(),
		Amount:       2500,
		Payment: Payment{
			PaymentMethod: "mobile_money",
			Method:        "MTN",
			Details:       &PaymentDetails{MobileNumber: "670000000", AccountName: "Jane"},
		},
		EventID:   &eventID,
		Status:    WithdrawalStatusPending,
		CreatedAt: time.Now(),
	}

	view := w.ToView("Jane Doe")
	assert.Equal(t, "Jane Doe", view.UserName)
	assert.Equal(t, eventID.Hex(), view.EventID)
	assert.Equal(t, "MTN", view.Payment.Method)

	body, err := json.Marshal(view)
	require.NoError(t, err)
	for _, leaked := range []string{"details", "670000000", "mobileNumber"} {
		assert.NotContains(t, string(body), leaked)
	}
}
