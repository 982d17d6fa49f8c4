package discord

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeFingerprint_NormalizesCaseAndWhitespace(t *testing.T) {
	t.Parallel()

	a := computeFingerprint("msg-1", "", "  Hello There  ", "chan-1")
	b := computeFingerprint("msg-1", "", "hello there", "chan-1")
	assert.Equal(t, a, b)
}

func TestComputeFingerprint_DiffersByChannel(t *testing.T) {
	t.Parallel()

	a := computeFingerprint("msg-1", "", "hello", "chan-1")
	b := computeFingerprint("msg-1", "", "hello", "chan-2")
	assert.NotEqual(t, a, b)
}

func TestFingerprintCache_ExactDuplicateIsSeenTwice(t *testing.T) {
	t.Parallel()

	cache := NewFingerprintCache(10)
	fp := computeFingerprint("msg-1", "", "hello", "chan-1")

	assert.False(t, cache.SeenOrRemember(fp), "first observation should not be seen")
	assert.True(t, cache.SeenOrRemember(fp), "second observation of the same fingerprint should be seen")
	assert.True(t, cache.SeenOrRemember(fp), "repeated checks remain idempotent")
}

func TestFingerprintCache_EvictsOldestBeyondCapacity(t *testing.T) {
	t.Parallel()

	cache := NewFingerprintCache(2)
	fp1 := computeFingerprint("msg-1", "", "one", "chan-1")
	fp2 := computeFingerprint("msg-2", "", "two", "chan-1")
	fp3 := computeFingerprint("msg-3", "", "three", "chan-1")

	assert.False(t, cache.SeenOrRemember(fp1))
	assert.False(t, cache.SeenOrRemember(fp2))
	assert.False(t, cache.SeenOrRemember(fp3)) // evicts fp1

	assert.False(t, cache.SeenOrRemember(fp1), "fp1 was evicted, so it should register as new again")
}
