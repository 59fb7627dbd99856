package serviceauth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMintAndVerify_RoundTrips(t *testing.T) {
	issuer := NewIssuer("shared-secret", time.Minute)
	verifier := NewVerifier("shared-secret")

	token, err := issuer.Mint()
	require.NoError(t, err)
	assert.NoError(t, verifier.Verify(token))
}

func TestVerify_RejectsWrongSecret(t *testing.T) {
	issuer := NewIssuer("secret-a", time.Minute)
	verifier := NewVerifier("secret-b")

	token, err := issuer.Mint()
	require.NoError(t, err)
	assert.Error(t, verifier.Verify(token))
}

func TestVerify_RejectsExpiredToken(t *testing.T) {
	issuer := NewIssuer("shared-secret", time.Nanosecond)
	verifier := NewVerifier("shared-secret")

	token, err := issuer.Mint()
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)
	assert.Error(t, verifier.Verify(token))
}

func TestVerify_RejectsGarbage(t *testing.T) {
	verifier := NewVerifier("shared-secret")
	assert.Error(t, verifier.Verify("not-a-jwt"))
}
