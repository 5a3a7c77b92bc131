package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"time"
	"unicode"

	"github.com/HSouheill/evently_backend/config"
	"github.com/HSouheill/evently_backend/events"
	"github.com/HSouheill/evently_backend/models"
	"github.com/HSouheill/evently_backend/repositories"
	"github.com/HSouheill/evently_backend/utils"
)

// PayoutProvider moves money to an external account
type PayoutProvider interface {
	Payout(ctx context.Context, req models.PayoutRequest) (*models.PayoutResult, error)
	Balance(ctx context.Context) (float64, error)
}

const defaultMedium = "mobile money"

var mediums = map[string]string{
	"mobile_money": "mobile money",
	"orange_money": "orange money",
}

// MapPaymentMedium converts a stored payment method to the provider's medium vocabulary
func MapPaymentMedium(paymentMethod string) string {
	if paymentMethod == "" {
		return defaultMedium
	}
	if medium, ok := mediums[paymentMethod]; ok {
		return medium
	}
	return paymentMethod
}

// ExternalReference strips everything but letters and digits from a withdrawal id
func ExternalReference(withdrawalID string) string {
	return strings.Map(func(r rune) rune {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return r
		}
		return -1
	}, withdrawalID)
}

// PayoutService submits pending withdrawals to the payout provider.
// A failed payout leaves the withdrawal pending; nothing is retried.
type PayoutService struct {
	store            WithdrawalStore
	users            UserDirectory
	provider         PayoutProvider
	publisher        events.Publisher
	notifier         WithdrawalNotifier
	placeholderEmail string
}

func NewPayoutService(store WithdrawalStore, users UserDirectory, provider PayoutProvider, publisher events.Publisher, notifier WithdrawalNotifier) *PayoutService {
	return &PayoutService{
		store:            store,
		users:            users,
		provider:         provider,
		publisher:        publisher,
		notifier:         notifier,
		placeholderEmail: config.GetEnv("PAYOUT_PLACEHOLDER_EMAIL", "payouts@evently.app"),
	}
}

// Payout pays out a pending withdrawal and returns the provider's response
func (s *PayoutService) Payout(ctx context.Context, withdrawalID string) (map[string]interface{}, error) {
	w, err := s.store.FindByWithdrawalID(ctx, withdrawalID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, notFound("Withdrawal not found")
	}
	if err != nil {
		return nil, internal("Failed to retrieve withdrawal", err)
	}
	if w.Status != models.WithdrawalStatusPending {
		return nil, conflict(fmt.Sprintf("Withdrawal is %s, only pending withdrawals can be paid out", w.Status))
	}

	user, err := s.users.FindByID(ctx, w.UserID.Hex())
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, notFound("User not found")
	}
	if err != nil {
		return nil, internal("Failed to retrieve user", err)
	}

	if w.Payment.Details == nil || w.Payment.Details.MobileNumber == "" || w.Payment.Method == "" {
		return nil, badRequest("Withdrawal is missing payment details")
	}

	amount := math.Round(w.Amount)
	if amount < 1 || amount > models.MaxWithdrawalAmount {
		return nil, badRequest(fmt.Sprintf("Withdrawal amount %.2f cannot be paid out", w.Amount))
	}

	req := models.PayoutRequest{
		Amount:     int(amount),
		Phone:      w.Payment.Details.MobileNumber,
		Medium:     MapPaymentMedium(w.Payment.PaymentMethod),
		Name:       user.FullName,
		Email:      s.placeholderEmail,
		UserID:     user.ID.Hex(),
		ExternalID: ExternalReference(w.WithdrawalID),
		Message:    fmt.Sprintf("Withdrawal %s", w.WithdrawalID),
	}

	// Claim the record so a concurrent payout for the same id cannot reach the provider
	if _, err := s.store.ClaimForPayout(ctx, withdrawalID); err != nil {
		if errors.Is(err, repositories.ErrStatusMismatch) {
			return nil, conflict("Withdrawal is no longer pending")
		}
		return nil, internal("Failed to claim withdrawal", err)
	}

	// once claimed, the provider call and the ledger writes run to completion even
	// if the caller goes away; the provider client's own timeout bounds the call
	writeCtx := context.WithoutCancel(ctx)

	result, payErr := s.provider.Payout(writeCtx, req)

	if payErr != nil {
		if err := s.store.ReleaseClaim(writeCtx, withdrawalID); err != nil {
			log.Printf("CRITICAL: failed to release payout claim on %s: %v", withdrawalID, err)
		}
		msg := "Payout failed"
		var provErr *ProviderError
		if errors.As(payErr, &provErr) && provErr.Message != "" {
			msg = provErr.Message
		}
		log.Printf("Payout for %s failed: %v", withdrawalID, payErr)
		publish(writeCtx, s.publisher, events.WithdrawalPayoutFailed, w, msg)
		return nil, upstream(msg, payErr)
	}

	approved, err := s.store.MarkApproved(writeCtx, withdrawalID, result.TransID, result.DateInitiated)
	if err != nil {
		// money moved; leave the record claimed so it cannot be paid twice
		log.Printf("CRITICAL: payout %s sent (transId %s) but recording approval failed: %v", withdrawalID, result.TransID, err)
		return nil, internal("Payout sent but could not be recorded", err)
	}

	log.Printf("Withdrawal %s approved, transId %s", withdrawalID, result.TransID)
	publish(writeCtx, s.publisher, events.WithdrawalApproved, approved, "")
	if s.notifier != nil {
		s.notifier.WithdrawalUpdated(writeCtx, user, approved)
	}
	return result.Raw, nil
}

// ResolveProcessing settles a withdrawal left in processing by a crash or a
// failed approval write. An empty transID puts it back to pending for another
// payout; otherwise it is recorded as approved with that provider reference.
func (s *PayoutService) ResolveProcessing(ctx context.Context, withdrawalID, transID string) (*models.WithdrawalView, error) {
	w, err := s.store.FindByWithdrawalID(ctx, withdrawalID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, notFound("Withdrawal not found")
	}
	if err != nil {
		return nil, internal("Failed to retrieve withdrawal", err)
	}
	if w.Status != models.WithdrawalStatusProcessing {
		return nil, conflict(fmt.Sprintf("Withdrawal is %s, only processing withdrawals can be resolved", w.Status))
	}

	user, err := s.users.FindByID(ctx, w.UserID.Hex())
	if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		return nil, internal("Failed to retrieve user", err)
	}

	transID = utils.SanitizeInput(transID)
	var resolved *models.Withdrawal
	if transID == "" {
		if err := s.store.ReleaseClaim(ctx, withdrawalID); err != nil {
			return nil, resolveError(err)
		}
		if resolved, err = s.store.FindByWithdrawalID(ctx, withdrawalID); err != nil {
			return nil, internal("Failed to retrieve withdrawal", err)
		}
		log.Printf("Withdrawal %s released back to pending", withdrawalID)
		publish(ctx, s.publisher, events.WithdrawalReleased, resolved, "")
	} else {
		if resolved, err = s.store.MarkApproved(ctx, withdrawalID, transID, time.Now()); err != nil {
			return nil, resolveError(err)
		}
		log.Printf("Withdrawal %s approved manually, transId %s", withdrawalID, transID)
		publish(ctx, s.publisher, events.WithdrawalApproved, resolved, "")
		if s.notifier != nil {
			s.notifier.WithdrawalUpdated(ctx, user, resolved)
		}
	}

	name := ""
	if user != nil {
		name = user.FullName
	}
	view := resolved.ToView(name)
	return &view, nil
}

func resolveError(err error) error {
	if errors.Is(err, repositories.ErrStatusMismatch) {
		return conflict("Withdrawal is no longer processing")
	}
	return internal("Failed to resolve withdrawal", err)
}

// Balance returns the provider account balance
func (s *PayoutService) Balance(ctx context.Context) (float64, error) {
	balance, err := s.provider.Balance(ctx)
	if err != nil {
		msg := "Failed to fetch payout balance"
		var provErr *ProviderError
		if errors.As(err, &provErr) && provErr.Message != "" {
			msg = provErr.Message
		}
		return 0, upstream(msg, err)
	}
	return balance, nil
}
