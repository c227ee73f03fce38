package identity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gemimi2525-star/super-platform-sub002/pkg/contracts"
)

func TestStepUpIssueAndVerify(t *testing.T) {
	issuer := NewStepUpIssuer([]byte("test-secret"), 15*time.Minute)

	token, expiry, err := issuer.Issue("user-1", "core.accounting", "corr-1")
	require.NoError(t, err)
	assert.True(t, expiry.After(time.Now()))

	claims, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "core.accounting", claims.CapabilityID)
	assert.Equal(t, "corr-1", claims.CorrelationID)
}

func TestStepUpVerifyWrongSecret(t *testing.T) {
	issuer := NewStepUpIssuer([]byte("secret-a"), time.Minute)
	other := NewStepUpIssuer([]byte("secret-b"), time.Minute)

	token, _, err := issuer.Issue("user-1", "cap", "corr")
	require.NoError(t, err)

	_, err = other.Verify(token)
	assert.ErrorIs(t, err, ErrStepUpTokenInvalid)
}

func TestStepUpVerifyExpired(t *testing.T) {
	base := time.Now()
	issuer := NewStepUpIssuer([]byte("secret"), time.Minute)
	issuer.WithClock(func() time.Time { return base })

	token, _, err := issuer.Issue("user-1", "cap", "corr")
	require.NoError(t, err)

	issuer.WithClock(func() time.Time { return base.Add(2 * time.Minute) })
	_, err = issuer.Verify(token)
	assert.ErrorIs(t, err, ErrStepUpTokenExpired)
}

func TestSecurityContextPolicies(t *testing.T) {
	sec := SecurityContext{
		Authenticated: true,
		UserID:        "u1",
		Role:          contracts.RoleUser,
		Policies:      []string{"files.read", "notes.write"},
	}
	assert.True(t, sec.HasPolicy("files.read"))
	assert.False(t, sec.HasPolicy("files.write"))
	assert.Equal(t, []string{"files.write"}, sec.MissingPolicies([]string{"files.read", "files.write"}))
}

func TestStepUpValidity(t *testing.T) {
	now := time.Now()
	sec := Anonymous().WithStepUp(now.Add(time.Minute))
	assert.True(t, sec.StepUpValid(now))
	assert.False(t, sec.StepUpValid(now.Add(2*time.Minute)))
	assert.False(t, sec.WithoutStepUp().StepUpValid(now))
}
