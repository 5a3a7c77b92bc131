package services

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/HSouheill/evently_backend/events"
	"github.com/HSouheill/evently_backend/models"
	"github.com/HSouheill/evently_backend/repositories"
	"github.com/HSouheill/evently_backend/utils"
)

// WithdrawalStore is the persistence the ledger, dispatcher and query surface need
type WithdrawalStore interface {
	Insert(ctx context.Context, w *models.Withdrawal) error
	FindByWithdrawalID(ctx context.Context, withdrawalID string) (*models.Withdrawal, error)
	ClaimForPayout(ctx context.Context, withdrawalID string) (*models.Withdrawal, error)
	MarkApproved(ctx context.Context, withdrawalID, transID string, dateInitiated time.Time) (*models.Withdrawal, error)
	ReleaseClaim(ctx context.Context, withdrawalID string) error
	Reject(ctx context.Context, withdrawalID, reason string) (*models.Withdrawal, error)
	ListWithUsers(ctx context.Context, userID *primitive.ObjectID) ([]models.WithdrawalWithUser, error)
}

// VerificationConsumer uses up a user's OTP verification
type VerificationConsumer interface {
	ConsumeVerification(ctx context.Context, userID string) error
}

// IDAllocator hands out withdrawal ids
type IDAllocator interface {
	NextID(ctx context.Context) (string, error)
}

// WithdrawalService owns withdrawal creation, rejection and the read projections
type WithdrawalService struct {
	store     WithdrawalStore
	otp       VerificationConsumer
	ids       IDAllocator
	users     UserDirectory
	publisher events.Publisher
	notifier  WithdrawalNotifier
	now       func() time.Time
}

func NewWithdrawalService(store WithdrawalStore, otp VerificationConsumer, ids IDAllocator, users UserDirectory, publisher events.Publisher, notifier WithdrawalNotifier) *WithdrawalService {
	return &WithdrawalService{
		store:     store,
		otp:       otp,
		ids:       ids,
		users:     users,
		publisher: publisher,
		notifier:  notifier,
		now:       time.Now,
	}
}

func validateCreateRequest(req *models.CreateWithdrawalRequest) error {
	var missing []string
	if req.UserID == "" {
		missing = append(missing, "userId")
	}
	if req.Amount < 1 || req.Amount > models.MaxWithdrawalAmount {
		missing = append(missing, "amount")
	}
	if req.Payment == nil {
		missing = append(missing, "payment")
	} else {
		if req.Payment.PaymentMethod == "" {
			missing = append(missing, "payment.paymentMethod")
		}
		if req.Payment.Method == "" {
			missing = append(missing, "payment.method")
		}
		if req.Payment.Details == nil || req.Payment.Details.MobileNumber == "" {
			missing = append(missing, "payment.details")
		}
	}
	if len(missing) > 0 {
		return badRequest("Missing or invalid required fields: " + strings.Join(missing, ", "))
	}
	return nil
}

// CreateWithdrawal records a pending withdrawal for a user who has just verified an OTP.
// callerID is the authenticated user; when set it must match req.UserID.
func (s *WithdrawalService) CreateWithdrawal(ctx context.Context, callerID string, req models.CreateWithdrawalRequest) (string, error) {
	if err := validateCreateRequest(&req); err != nil {
		return "", err
	}

	userID, err := primitive.ObjectIDFromHex(req.UserID)
	if err != nil {
		return "", badRequest("Invalid user ID")
	}
	if callerID != "" && callerID != req.UserID {
		return "", forbidden("Cannot create a withdrawal for another user")
	}

	mobile, err := utils.SanitizeMobileNumber(req.Payment.Details.MobileNumber)
	if err != nil {
		return "", badRequest("Invalid mobile number")
	}

	var eventID *primitive.ObjectID
	if req.EventID != "" {
		id, err := primitive.ObjectIDFromHex(req.EventID)
		if err != nil {
			return "", badRequest("Invalid event ID")
		}
		eventID = &id
	}

	if err := s.otp.ConsumeVerification(ctx, req.UserID); err != nil {
		return "", err
	}

	withdrawalID, err := s.ids.NextID(ctx)
	if err != nil {
		return "", internal("Failed to allocate withdrawal ID", err)
	}

	now := s.now()
	details := models.PaymentDetails{
		MobileNumber: mobile,
		AccountName:  utils.SanitizeInput(req.Payment.Details.AccountName),
	}
	withdrawal := &models.Withdrawal{
		ID:           primitive.NewObjectID(),
		WithdrawalID: withdrawalID,
		UserID:       userID,
		Amount:       req.Amount,
		Payment: models.Payment{
			PaymentMethod: strings.TrimSpace(req.Payment.PaymentMethod),
			Method:        utils.SanitizeInput(req.Payment.Method),
			Details:       &details,
		},
		EventID:   eventID,
		Balance:   req.Balance,
		Status:    models.WithdrawalStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.Insert(ctx, withdrawal); err != nil {
		return "", internal("Failed to create withdrawal request", err)
	}

	log.Printf("Withdrawal %s created for user %s (amount %.2f)", withdrawalID, req.UserID, req.Amount)
	publish(ctx, s.publisher, events.WithdrawalCreated, withdrawal, "")
	return withdrawalID, nil
}

func viewsOf(records []models.WithdrawalWithUser) []models.WithdrawalView {
	views := make([]models.WithdrawalView, 0, len(records))
	for i := range records {
		views = append(views, records[i].Withdrawal.ToView(records[i].UserName))
	}
	return views
}

// ListAll returns every withdrawal, newest first
func (s *WithdrawalService) ListAll(ctx context.Context) ([]models.WithdrawalView, error) {
	records, err := s.store.ListWithUsers(ctx, nil)
	if err != nil {
		return nil, internal("Failed to fetch withdrawals", err)
	}
	return viewsOf(records), nil
}

// ListForUser returns the user's withdrawals, newest first
func (s *WithdrawalService) ListForUser(ctx context.Context, userID string) ([]models.WithdrawalView, error) {
	if userID == "" {
		return nil, unauthorized("Authentication required")
	}
	objID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, badRequest("Invalid user ID")
	}
	records, err := s.store.ListWithUsers(ctx, &objID)
	if err != nil {
		return nil, internal("Failed to fetch withdrawals", err)
	}
	return viewsOf(records), nil
}

func (s *WithdrawalService) load(ctx context.Context, withdrawalID string) (*models.Withdrawal, error) {
	w, err := s.store.FindByWithdrawalID(ctx, withdrawalID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, notFound("Withdrawal not found")
	}
	if err != nil {
		return nil, internal("Failed to retrieve withdrawal", err)
	}
	return w, nil
}

// owner loads the withdrawal's user, nil when it no longer exists
func (s *WithdrawalService) owner(ctx context.Context, w *models.Withdrawal) *models.User {
	user, err := s.users.FindByID(ctx, w.UserID.Hex())
	if err != nil {
		if !errors.Is(err, repositories.ErrNotFound) {
			log.Printf("Failed to load owner of withdrawal %s: %v", w.WithdrawalID, err)
		}
		return nil
	}
	return user
}

// GetWithdrawal returns a single withdrawal in its redacted form
func (s *WithdrawalService) GetWithdrawal(ctx context.Context, withdrawalID string) (*models.WithdrawalView, error) {
	w, err := s.load(ctx, withdrawalID)
	if err != nil {
		return nil, err
	}
	name := ""
	if user := s.owner(ctx, w); user != nil {
		name = user.FullName
	}
	view := w.ToView(name)
	return &view, nil
}

// RejectWithdrawal closes a pending withdrawal without paying it out
func (s *WithdrawalService) RejectWithdrawal(ctx context.Context, withdrawalID, reason string) (*models.WithdrawalView, error) {
	w, err := s.load(ctx, withdrawalID)
	if err != nil {
		return nil, err
	}
	if w.Status != models.WithdrawalStatusPending {
		return nil, conflict("Withdrawal is not pending")
	}

	reason = utils.SanitizeInput(reason)
	rejected, err := s.store.Reject(ctx, withdrawalID, reason)
	if errors.Is(err, repositories.ErrStatusMismatch) {
		return nil, conflict("Withdrawal is not pending")
	}
	if err != nil {
		return nil, internal("Failed to reject withdrawal", err)
	}

	user := s.owner(ctx, rejected)
	publish(ctx, s.publisher, events.WithdrawalRejected, rejected, reason)
	if s.notifier != nil {
		s.notifier.WithdrawalUpdated(ctx, user, rejected)
	}

	name := ""
	if user != nil {
		name = user.FullName
	}
	view := rejected.ToView(name)
	return &view, nil
}

func publish(ctx context.Context, p events.Publisher, eventType string, w *models.Withdrawal, reason string) {
	if p == nil {
		return
	}
	event := events.NewWithdrawalEvent(eventType, w.WithdrawalID, w.UserID.Hex(), w.Amount, w.Status)
	event.Reason = reason
	if err := p.PublishWithdrawalEvent(ctx, event); err != nil {
		log.Printf("Failed to publish %s for %s: %v", eventType, w.WithdrawalID, err)
	}
}
