package shared

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSRFTokenStableWithinSession(t *testing.T) {
	m := NewCSRFManager("secret")
	sess := &Session{ID: "s1", values: map[string]string{}}

	token := m.EnsureToken(sess)
	require.NotEmpty(t, token)
	assert.Equal(t, token, m.EnsureToken(sess))
	assert.NoError(t, m.VerifyToken(sess, token))
}

func TestCSRFTokenReissuedAfterRotation(t *testing.T) {
	m := NewCSRFManager("secret")
	sess := &Session{ID: "s1", values: map[string]string{}, isNew: true}
	before := m.EnsureToken(sess)

	sess.Login("user-1")
	assert.ErrorIs(t, m.VerifyToken(sess, before), ErrCSRFTokenMismatch)

	after := m.EnsureToken(sess)
	assert.NotEqual(t, before, after)
	assert.NoError(t, m.VerifyToken(sess, after))
}

func TestCSRFVerifyRejects(t *testing.T) {
	m := NewCSRFManager("secret")
	sess := &Session{ID: "s1", values: map[string]string{}}

	assert.ErrorIs(t, m.VerifyToken(sess, "anything"), ErrCSRFTokenMissing)
	assert.ErrorIs(t, m.VerifyToken(nil, "anything"), ErrCSRFTokenMissing)

	token := m.EnsureToken(sess)
	assert.ErrorIs(t, m.VerifyToken(sess, ""), ErrCSRFTokenMissing)
	assert.ErrorIs(t, m.VerifyToken(sess, token+"x"), ErrCSRFTokenMismatch)

	other := NewCSRFManager("other")
	assert.ErrorIs(t, other.VerifyToken(sess, token), ErrCSRFTokenMismatch)
}

func TestCSRFNilSession(t *testing.T) {
	assert.Empty(t, NewCSRFManager("secret").EnsureToken(nil))
}
