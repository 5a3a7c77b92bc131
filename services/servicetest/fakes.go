// Package servicetest provides in-memory stand-ins for the stores and
// collaborators the services depend on.
package servicetest

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/HSouheill/evently_backend/events"
	"github.com/HSouheill/evently_backend/models"
	"github.com/HSouheill/evently_backend/repositories"
)

// Users is an in-memory user directory
type Users struct {
	mu    sync.Mutex
	users map[string]*models.User
	Err   error
}

func NewUsers(users ...*models.User) *Users {
	u := &Users{users: make(map[string]*models.User)}
	for _, user := range users {
		u.Add(user)
	}
	return u
}

func (u *Users) Add(user *models.User) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	u.users[user.ID.Hex()] = user
}

func (u *Users) FindByID(ctx context.Context, userID string) (*models.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.Err != nil {
		return nil, u.Err
	}
	user, ok := u.users[userID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *user
	return &cp, nil
}

type otpEntry struct {
	value     string
	expiresAt time.Time
}

// OTPStore mimics the Redis store, expiring entries against Now
type OTPStore struct {
	mu       sync.Mutex
	codes    map[string]otpEntry
	verified map[string]otpEntry
	attempts map[string]int64
	Now      func() time.Time
	Err      error
}

func NewOTPStore() *OTPStore {
	return &OTPStore{
		codes:    make(map[string]otpEntry),
		verified: make(map[string]otpEntry),
		attempts: make(map[string]int64),
		Now:      time.Now,
	}
}

func (s *OTPStore) live(m map[string]otpEntry, key string) (otpEntry, bool) {
	e, ok := m[key]
	if !ok || !s.Now().Before(e.expiresAt) {
		delete(m, key)
		return otpEntry{}, false
	}
	return e, true
}

func (s *OTPStore) SaveCode(ctx context.Context, email, codeHash string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.codes[email] = otpEntry{value: codeHash, expiresAt: s.Now().Add(ttl)}
	return nil
}

func (s *OTPStore) GetCode(ctx context.Context, email string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return "", s.Err
	}
	e, ok := s.live(s.codes, email)
	if !ok {
		return "", repositories.ErrOTPNotFound
	}
	return e.value, nil
}

func (s *OTPStore) DeleteCode(ctx context.Context, email string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.live(s.codes, email)
	delete(s.codes, email)
	return ok, s.Err
}

func (s *OTPStore) SetVerified(ctx context.Context, userID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verified[userID] = otpEntry{value: "1", expiresAt: s.Now().Add(ttl)}
	return s.Err
}

func (s *OTPStore) ConsumeVerified(ctx context.Context, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return false, s.Err
	}
	_, ok := s.live(s.verified, userID)
	delete(s.verified, userID)
	return ok, nil
}

func (s *OTPStore) IncrAttempts(ctx context.Context, userID string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts[userID]++
	return s.attempts[userID], s.Err
}

func (s *OTPStore) ResetAttempts(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.attempts, userID)
	return nil
}

// HasCode reports whether a live code is stored for email
func (s *OTPStore) HasCode(email string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.live(s.codes, email)
	return ok
}

// IsVerified reports whether a live verified flag is stored for userID
func (s *OTPStore) IsVerified(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.live(s.verified, userID)
	return ok
}

// SentMail is one captured email
type SentMail struct {
	To, Subject, Body string
}

// Mailer records sent mail instead of delivering it
type Mailer struct {
	mu   sync.Mutex
	Sent []SentMail
	Err  error
}

func (m *Mailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Sent = append(m.Sent, SentMail{To: to, Subject: subject, Body: htmlBody})
	return nil
}

// Last returns the most recent email
func (m *Mailer) Last() (SentMail, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Sent) == 0 {
		return SentMail{}, false
	}
	return m.Sent[len(m.Sent)-1], true
}

// Withdrawals is an in-memory withdrawal store with the same conditional
// update semantics as the Mongo repository
type Withdrawals struct {
	mu      sync.Mutex
	byID    map[string]*models.Withdrawal
	users   *Users
	Err     error
	counter int64
}

func NewWithdrawals(users *Users) *Withdrawals {
	return &Withdrawals{byID: make(map[string]*models.Withdrawal), users: users}
}

func clone(w *models.Withdrawal) *models.Withdrawal {
	cp := *w
	if w.Payment.Details != nil {
		d := *w.Payment.Details
		cp.Payment.Details = &d
	}
	return &cp
}

func (s *Withdrawals) Insert(ctx context.Context, w *models.Withdrawal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if _, dup := s.byID[w.WithdrawalID]; dup {
		return errors.New("duplicate withdrawalId")
	}
	if w.ID.IsZero() {
		w.ID = primitive.NewObjectID()
	}
	s.byID[w.WithdrawalID] = clone(w)
	return nil
}

func (s *Withdrawals) FindByWithdrawalID(ctx context.Context, withdrawalID string) (*models.Withdrawal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	w, ok := s.byID[withdrawalID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return clone(w), nil
}

func (s *Withdrawals) LatestWithdrawalID(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *models.Withdrawal
	for _, w := range s.byID {
		if latest == nil || w.CreatedAt.After(latest.CreatedAt) {
			latest = w
		}
	}
	if latest == nil {
		return "", nil
	}
	return latest.WithdrawalID, nil
}

func (s *Withdrawals) transition(withdrawalID, from, to string, apply func(w *models.Withdrawal)) (*models.Withdrawal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	w, ok := s.byID[withdrawalID]
	if !ok || w.Status != from {
		return nil, repositories.ErrStatusMismatch
	}
	w.Status = to
	w.UpdatedAt = time.Now()
	if apply != nil {
		apply(w)
	}
	return clone(w), nil
}

func (s *Withdrawals) ClaimForPayout(ctx context.Context, withdrawalID string) (*models.Withdrawal, error) {
	return s.transition(withdrawalID, models.WithdrawalStatusPending, models.WithdrawalStatusProcessing, nil)
}

func (s *Withdrawals) MarkApproved(ctx context.Context, withdrawalID, transID string, dateInitiated time.Time) (*models.Withdrawal, error) {
	return s.transition(withdrawalID, models.WithdrawalStatusProcessing, models.WithdrawalStatusApproved, func(w *models.Withdrawal) {
		now := time.Now()
		w.TransID = transID
		w.DateInitiated = &dateInitiated
		w.ProcessedAt = &now
	})
}

func (s *Withdrawals) ReleaseClaim(ctx context.Context, withdrawalID string) error {
	_, err := s.transition(withdrawalID, models.WithdrawalStatusProcessing, models.WithdrawalStatusPending, nil)
	return err
}

func (s *Withdrawals) Reject(ctx context.Context, withdrawalID, reason string) (*models.Withdrawal, error) {
	return s.transition(withdrawalID, models.WithdrawalStatusPending, models.WithdrawalStatusRejected, func(w *models.Withdrawal) {
		now := time.Now()
		w.RejectionReason = reason
		w.ProcessedAt = &now
	})
}

func (s *Withdrawals) ListWithUsers(ctx context.Context, userID *primitive.ObjectID) ([]models.WithdrawalWithUser, error) {
	s.mu.Lock()
	if s.Err != nil {
		s.mu.Unlock()
		return nil, s.Err
	}
	var list []*models.Withdrawal
	for _, w := range s.byID {
		if userID == nil || w.UserID == *userID {
			list = append(list, clone(w))
		}
	}
	s.mu.Unlock()

	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })

	out := make([]models.WithdrawalWithUser, 0, len(list))
	for _, w := range list {
		name := ""
		if s.users != nil {
			if user, err := s.users.FindByID(ctx, w.UserID.Hex()); err == nil {
				name = user.FullName
			}
		}
		out = append(out, models.WithdrawalWithUser{Withdrawal: *w, UserName: name})
	}
	return out, nil
}

// Put stores w as-is, bypassing validation
func (s *Withdrawals) Put(w *models.Withdrawal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w.ID.IsZero() {
		w.ID = primitive.NewObjectID()
	}
	s.byID[w.WithdrawalID] = clone(w)
}

// Get returns the stored record, nil if absent
func (s *Withdrawals) Get(withdrawalID string) *models.Withdrawal {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.byID[withdrawalID]
	if !ok {
		return nil
	}
	return clone(w)
}

// Counter is an in-memory named sequence
type Counter struct {
	mu     sync.Mutex
	values map[string]int64
	Err    error
}

func NewCounter() *Counter {
	return &Counter{values: make(map[string]int64)}
}

func (c *Counter) Next(ctx context.Context, name string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return 0, c.Err
	}
	c.values[name]++
	return c.values[name], nil
}

func (c *Counter) Seed(ctx context.Context, name string, value int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if value > c.values[name] {
		c.values[name] = value
	}
	return c.Err
}

// Provider is a scripted payout provider
type Provider struct {
	mu       sync.Mutex
	Requests []models.PayoutRequest
	Result   *models.PayoutResult
	Err      error
	BalanceV float64
	// Block, when set, is waited on before answering
	Block chan struct{}
}

func (p *Provider) Payout(ctx context.Context, req models.PayoutRequest) (*models.PayoutResult, error) {
	p.mu.Lock()
	p.Requests = append(p.Requests, req)
	block := p.Block
	p.mu.Unlock()

	if block != nil {
		<-block
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return nil, p.Err
	}
	return p.Result, nil
}

func (p *Provider) Balance(ctx context.Context) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.BalanceV, p.Err
}

// Calls returns how many payouts were submitted
func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Requests)
}

// Publisher records published events
type Publisher struct {
	mu     sync.Mutex
	Events []events.WithdrawalEvent
}

func (p *Publisher) PublishWithdrawalEvent(ctx context.Context, event events.WithdrawalEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Events = append(p.Events, event)
	return nil
}

func (p *Publisher) Close() {}

// Types returns the published event types in order
func (p *Publisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]string, 0, len(p.Events))
	for _, e := range p.Events {
		types = append(types, e.Type)
	}
	return types
}

// Notifier records withdrawal notifications
type Notifier struct {
	mu      sync.Mutex
	Updates []models.Withdrawal
}

func (n *Notifier) WithdrawalUpdated(ctx context.Context, user *models.User, w *models.Withdrawal) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Updates = append(n.Updates, *w)
}
