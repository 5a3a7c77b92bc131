package services

import (
	"context"
	"crypto/rand"
	"errors"
	"log"
	"math/big"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/HSouheill/evently_backend/config"
	"github.com/HSouheill/evently_backend/models"
	"github.com/HSouheill/evently_backend/repositories"
)

// UserDirectory resolves users by id
type UserDirectory interface {
	FindByID(ctx context.Context, userID string) (*models.User, error)
}

// OTPStore holds pending codes (by email) and verified flags (by user id)
type OTPStore interface {
	SaveCode(ctx context.Context, email, codeHash string, ttl time.Duration) error
	GetCode(ctx context.Context, email string) (string, error)
	DeleteCode(ctx context.Context, email string) (bool, error)
	SetVerified(ctx context.Context, userID string, ttl time.Duration) error
	ConsumeVerified(ctx context.Context, userID string) (bool, error)
	IncrAttempts(ctx context.Context, userID string, window time.Duration) (int64, error)
	ResetAttempts(ctx context.Context, userID string) error
}

// Mailer sends an HTML email
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

const (
	otpDigits          = 6
	maxVerifyAttempts  = 5
	verifyAttemptsSpan = time.Hour
)

// OTPService gates withdrawal creation behind a one-time emailed code
type OTPService struct {
	users       UserDirectory
	store       OTPStore
	mailer      Mailer
	codeTTL     time.Duration
	verifiedTTL time.Duration
	hashCost    int
}

func NewOTPService(users UserDirectory, store OTPStore, mailer Mailer) *OTPService {
	return &OTPService{
		users:       users,
		store:       store,
		mailer:      mailer,
		codeTTL:     config.GetDurationEnv("WITHDRAWAL_OTP_TTL", 10*time.Minute),
		verifiedTTL: config.GetDurationEnv("WITHDRAWAL_VERIFIED_TTL", 15*time.Minute),
		hashCost:    bcrypt.DefaultCost,
	}
}

// GenerateNumericOTP returns a uniformly random code of n decimal digits
func GenerateNumericOTP(n int) (string, error) {
	const digits = "0123456789"
	code := make([]byte, n)
	for i := range code {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(digits))))
		if err != nil {
			return "", err
		}
		code[i] = digits[num.Int64()]
	}
	return string(code), nil
}

func (s *OTPService) lookupEmail(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, notFound("User not found")
	}
	if err != nil {
		return nil, internal("Failed to retrieve user", err)
	}
	if user.Email == "" {
		return nil, notFound("User email not found")
	}
	return user, nil
}

// RequestOTP issues a fresh code for the user, replacing any earlier one, and emails it
func (s *OTPService) RequestOTP(ctx context.Context, userID string) error {
	if userID == "" {
		return badRequest("User ID is required")
	}
	user, err := s.lookupEmail(ctx, userID)
	if err != nil {
		return err
	}

	code, err := GenerateNumericOTP(otpDigits)
	if err != nil {
		return internal("Failed to generate OTP", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), s.hashCost)
	if err != nil {
		return internal("Failed to generate OTP", err)
	}

	if err := s.store.SaveCode(ctx, user.Email, string(hash), s.codeTTL); err != nil {
		return internal("Failed to save OTP", err)
	}

	body := withdrawalOTPEmail(user.FullName, code, int(s.codeTTL/time.Minute))
	if err := s.mailer.Send(ctx, user.Email, "Your withdrawal verification code", body); err != nil {
		log.Printf("Failed to send withdrawal OTP email to user %s: %v", userID, err)
		return upstream("Failed to send OTP email", err)
	}
	return nil
}

// VerifyOTP checks code against the stored one. On success the code is used up
// and the user may create exactly one withdrawal.
func (s *OTPService) VerifyOTP(ctx context.Context, userID, code string) error {
	if userID == "" || code == "" {
		return badRequest("User ID and OTP are required")
	}
	user, err := s.lookupEmail(ctx, userID)
	if err != nil {
		return err
	}

	attempts, err := s.store.IncrAttempts(ctx, userID, verifyAttemptsSpan)
	if err != nil {
		return internal("Failed to verify OTP", err)
	}
	if attempts > maxVerifyAttempts {
		return invalidOTP("Too many OTP attempts, try again later")
	}

	hash, err := s.store.GetCode(ctx, user.Email)
	if errors.Is(err, repositories.ErrOTPNotFound) {
		return invalidOTP("Invalid or expired OTP")
	}
	if err != nil {
		return internal("Failed to verify OTP", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(code)) != nil {
		return invalidOTP("Invalid or expired OTP")
	}

	// only the request that actually deletes the code gets to mark the user verified
	deleted, err := s.store.DeleteCode(ctx, user.Email)
	if err != nil {
		return internal("Failed to verify OTP", err)
	}
	if !deleted {
		return invalidOTP("Invalid or expired OTP")
	}

	if err := s.store.SetVerified(ctx, userID, s.verifiedTTL); err != nil {
		return internal("Failed to verify OTP", err)
	}
	if err := s.store.ResetAttempts(ctx, userID); err != nil {
		log.Printf("Failed to reset OTP attempts for user %s: %v", userID, err)
	}
	return nil
}

// ConsumeVerification uses up the user's verified flag
func (s *OTPService) ConsumeVerification(ctx context.Context, userID string) error {
	ok, err := s.store.ConsumeVerified(ctx, userID)
	if err != nil {
		return internal("Failed to check OTP verification", err)
	}
	if !ok {
		return forbidden("OTP not verified")
	}
	return nil
}
