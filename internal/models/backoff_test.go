package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNextDelay_ExponentialDoubles(t *testing.T) {
	policy := BackoffPolicy{Kind: BackoffExponential, Base: 2 * time.Second, Cap: 5 * time.Minute}

	assert.Equal(t, 2*time.Second, policy.NextDelay(1))
	assert.Equal(t, 4*time.Second, policy.NextDelay(2))
	assert.Equal(t, 8*time.Second, policy.NextDelay(3))
}

func TestNextDelay_ExponentialCapped(t *testing.T) {
	policy := BackoffPolicy{Kind: BackoffExponential, Base: 2 * time.Second, Cap: 5 * time.Second}

	assert.Equal(t, 2*time.Second, policy.NextDelay(1))
	assert.Equal(t, 4*time.Second, policy.NextDelay(2))
	assert.Equal(t, 5*time.Second, policy.NextDelay(3))
	assert.Equal(t, 5*time.Second, policy.NextDelay(10))
}

func TestNextDelay_FixedIgnoresAttempt(t *testing.T) {
	policy := BackoffPolicy{Kind: BackoffFixed, Base: 3 * time.Second, Cap: time.Minute}

	assert.Equal(t, 3*time.Second, policy.NextDelay(1))
	assert.Equal(t, 3*time.Second, policy.NextDelay(5))
}

func TestNextDelay_LargeAttemptDoesNotOverflow(t *testing.T) {
	policy := BackoffPolicy{Kind: BackoffExponential, Base: 2 * time.Second, Cap: 5 * time.Minute}

	assert.Equal(t, 5*time.Minute, policy.NextDelay(64))
}

func TestDefaultBackoff_Values(t *testing.T) {
	policy := DefaultBackoff()

	assert.Equal(t, BackoffExponential, policy.Kind)
	assert.Equal(t, 2*time.Second, policy.Base)
	assert.Equal(t, 5*time.Minute, policy.Cap)
}
