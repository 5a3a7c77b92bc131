package services

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/HSouheill/evently_backend/models"
	"github.com/HSouheill/evently_backend/services/servicetest"
)

var mailedCode = regexp.MustCompile(`letter-spacing: 6px;">(\d{6})</p>`)

type otpFixture struct {
	svc    *OTPService
	users  *servicetest.Users
	store  *servicetest.OTPStore
	mailer *servicetest.Mailer
	user   *models.User
}

func newOTPFixture(t *testing.T) *otpFixture {
	t.Helper()
	user := &models.User{Email: "jane@example.com", FullName: "Jane Doe", UserType: "user"}
	f := &otpFixture{
		users:  servicetest.NewUsers(user),
		store:  servicetest.NewOTPStore(),
		mailer: &servicetest.Mailer{},
		user:   user,
	}
	f.svc = NewOTPService(f.users, f.store, f.mailer)
	f.svc.hashCost = bcrypt.MinCost
	return f
}

func (f *otpFixture) requestCode(t *testing.T) string {
	t.Helper()
	require.NoError(t, f.svc.RequestOTP(context.Background(), f.user.ID.Hex()))
	mail, ok := f.mailer.Last()
	require.True(t, ok, "no email sent")
	m := mailedCode.FindStringSubmatch(mail.Body)
	require.NotNil(t, m, "no code in email body: %s", mail.Body)
	return m[1]
}

func otherCode(code string) string {
	if code == "000000" {
		return "111111"
	}
	return "000000"
}

func TestGenerateNumericOTP(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := GenerateNumericOTP(6)
		require.NoError(t, err)
		assert.Regexp(t, `^\d{6}$`, code)
	}
}

func TestRequestOTPSendsCodeToUserEmail(t *testing.T) {
	f := newOTPFixture(t)
	f.requestCode(t)

	mail, _ := f.mailer.Last()
	assert.Equal(t, "jane@example.com", mail.To)
	assert.True(t, f.store.HasCode("jane@example.com"))
}

func TestRequestOTPEscapesUserName(t *testing.T) {
	f := newOTPFixture(t)
	f.user.FullName = `<b>Jane</b><script>alert("x")</script>`
	f.requestCode(t)

	mail, _ := f.mailer.Last()
	assert.NotContains(t, mail.Body, "<b>Jane</b>")
	assert.NotContains(t, mail.Body, "<script>")
	assert.Contains(t, mail.Body, "Hello &lt;b&gt;Jane&lt;/b&gt;&lt;script&gt;")
}

func TestRequestOTPUnknownUser(t *testing.T) {
	f := newOTPFixture(t)
	err := f.svc.RequestOTP(context.Background(), "64b7f0c2a1b2c3d4e5f60718")
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.Empty(t, f.mailer.Sent)
}

func TestRequestOTPUserWithoutEmail(t *testing.T) {
	f := newOTPFixture(t)
	noEmail := &models.User{FullName: "No Mail"}
	f.users.Add(noEmail)
	err := f.svc.RequestOTP(context.Background(), noEmail.ID.Hex())
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestRequestOTPMailFailure(t *testing.T) {
	f := newOTPFixture(t)
	f.mailer.Err = errors.New("smtp down")
	err := f.svc.RequestOTP(context.Background(), f.user.ID.Hex())
	assert.Equal(t, KindUpstream, KindOf(err))
}

func TestVerifyOTPSuccessIsSingleUse(t *testing.T) {
	f := newOTPFixture(t)
	ctx := context.Background()
	userID := f.user.ID.Hex()
	code := f.requestCode(t)

	require.NoError(t, f.svc.VerifyOTP(ctx, userID, code))
	assert.False(t, f.store.HasCode(f.user.Email), "code still stored after verification")
	assert.True(t, f.store.IsVerified(userID))

	err := f.svc.VerifyOTP(ctx, userID, code)
	assert.Equal(t, KindInvalidOTP, KindOf(err))
}

func TestVerifyOTPWrongCode(t *testing.T) {
	f := newOTPFixture(t)
	code := f.requestCode(t)

	err := f.svc.VerifyOTP(context.Background(), f.user.ID.Hex(), otherCode(code))
	assert.Equal(t, KindInvalidOTP, KindOf(err))
	assert.True(t, f.store.HasCode(f.user.Email), "wrong guess consumed the code")
}

func TestVerifyOTPExpired(t *testing.T) {
	f := newOTPFixture(t)
	now := time.Now()
	f.store.Now = func() time.Time { return now }
	code := f.requestCode(t)

	now = now.Add(f.svc.codeTTL + time.Second)
	err := f.svc.VerifyOTP(context.Background(), f.user.ID.Hex(), code)
	assert.Equal(t, KindInvalidOTP, KindOf(err))
}

func TestRequestOTPReplacesEarlierCode(t *testing.T) {
	f := newOTPFixture(t)
	first := f.requestCode(t)
	second := f.requestCode(t)
	if first == second {
		t.Skip("codes collided")
	}
	err := f.svc.VerifyOTP(context.Background(), f.user.ID.Hex(), first)
	assert.Equal(t, KindInvalidOTP, KindOf(err), "old code accepted")
	assert.NoError(t, f.svc.VerifyOTP(context.Background(), f.user.ID.Hex(), second))
}

func TestVerifyOTPAttemptLimit(t *testing.T) {
	f := newOTPFixture(t)
	ctx := context.Background()
	userID := f.user.ID.Hex()
	code := f.requestCode(t)

	for i := 0; i < maxVerifyAttempts; i++ {
		_ = f.svc.VerifyOTP(ctx, userID, otherCode(code))
	}
	err := f.svc.VerifyOTP(ctx, userID, code)
	assert.Equal(t, KindInvalidOTP, KindOf(err))
}

func TestVerifyOTPMissingFields(t *testing.T) {
	f := newOTPFixture(t)
	assert.Equal(t, KindBadRequest, KindOf(f.svc.VerifyOTP(context.Background(), "", "123456")))
	assert.Equal(t, KindBadRequest, KindOf(f.svc.VerifyOTP(context.Background(), f.user.ID.Hex(), "")))
}

func TestVerifyOTPConcurrentOnlyOneWins(t *testing.T) {
	f := newOTPFixture(t)
	code := f.requestCode(t)
	userID := f.user.ID.Hex()

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if f.svc.VerifyOTP(context.Background(), userID, code) == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestConsumeVerification(t *testing.T) {
	f := newOTPFixture(t)
	ctx := context.Background()
	userID := f.user.ID.Hex()

	assert.Equal(t, KindForbidden, KindOf(f.svc.ConsumeVerification(ctx, userID)))

	code := f.requestCode(t)
	require.NoError(t, f.svc.VerifyOTP(ctx, userID, code))
	require.NoError(t, f.svc.ConsumeVerification(ctx, userID))
	assert.Equal(t, KindForbidden, KindOf(f.svc.ConsumeVerification(ctx, userID)))
}
