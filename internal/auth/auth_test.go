package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret-key")

func TestIssueVerify(t *testing.T) {
	t.Parallel()

	v := NewVerifier(testSecret, time.Hour)

	token, err := v.Issue(42)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	userID, err := v.Verify(token)
	require.NoError(t, err)
	require.Equal(t, int64(42), userID)
}

func TestVerifyExpired(t *testing.T) {
	t.Parallel()

	v := NewVerifier(testSecret, -time.Minute)

	token, err := v.Issue(42)
	require.NoError(t, err)

	_, err = v.Verify(token)
	require.Equal(t, ErrInvalidCredential, err)
}

func TestVerifyMalformed(t *testing.T) {
	t.Parallel()

	v := NewVerifier(testSecret, time.Hour)

	_, err := v.Verify("not-a-token")
	require.Equal(t, ErrInvalidCredential, err)
}

func TestVerifyWrongKey(t *testing.T) {
	t.Parallel()

	issuer := NewVerifier([]byte("one secret"), time.Hour)
	verifier := NewVerifier([]byte("another secret"), time.Hour)

	token, err := issuer.Issue(7)
	require.NoError(t, err)

	_, err = verifier.Verify(token)
	require.Equal(t, ErrInvalidCredential, err)
}

func TestVerifyNonNumericSubject(t *testing.T) {
	t.Parallel()

	v := NewVerifier(testSecret, time.Hour)

	// tokens are only ever issued for numeric user ids, anything else is unknown-subject
	token, err := v.Issue(0)
	require.NoError(t, err)

	_, err = v.Verify(token)
	require.Equal(t, ErrInvalidCredential, err)
}

func TestPasswordRoundTrip(t *testing.T) {
	t.Parallel()

	hash, err := HashPassword("correct horse battery staple")
	require.NoError(t, err)
	require.NotEqual(t, "correct horse battery staple", hash)

	require.NoError(t, CheckPassword(hash, "correct horse battery staple"))
	require.Equal(t, ErrInvalidCredential, CheckPassword(hash, "wrong password"))
}
