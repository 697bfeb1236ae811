package ratelimit

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSendMessageBucketBurstThenDeny(t *testing.T) {
	rl := NewRateLimiter()

	for i := 0; i < 20; i++ {
		allowed, _ := rl.Allow("user-1", "send_message")
		assert.True(t, allowed, "burst message %d should be allowed", i)
	}

	allowed, wait := rl.Allow("user-1", "send_message")
	assert.False(t, allowed)
	assert.Greater(t, wait, time.Duration(0))

	// A different user has an independent bucket.
	allowed, _ = rl.Allow("user-2", "send_message")
	assert.True(t, allowed)
}

func TestOpenRoomBucketIsSmaller(t *testing.T) {
	rl := NewRateLimiter()

	for i := 0; i < 10; i++ {
		allowed, _ := rl.Allow("user-1", "open_room")
		assert.True(t, allowed)
	}

	allowed, _ := rl.Allow("user-1", "open_room")
	assert.False(t, allowed)

	// The same user's message bucket is untouched.
	allowed, _ = rl.Allow("user-1", "send_message")
	assert.True(t, allowed)
}

func TestCleanupRemovesStaleBuckets(t *testing.T) {
	rl := NewRateLimiter()
	rl.Allow("user-1", "send_message")
	rl.Allow("user-2", "send_message")

	rl.mutex.Lock()
	stale := rl.buckets["user-1:send_message"]
	rl.mutex.Unlock()
	stale.mutex.Lock()
	stale.lastRefill = time.Now().Add(-2 * time.Hour)
	stale.mutex.Unlock()

	rl.Cleanup()

	rl.mutex.RLock()
	_, staleExists := rl.buckets["user-1:send_message"]
	_, freshExists := rl.buckets["user-2:send_message"]
	rl.mutex.RUnlock()
	assert.False(t, staleExists)
	assert.True(t, freshExists)
}

func TestCleanupConcurrentWithAllow(t *testing.T) {
	rl := NewRateLimiter()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				rl.Allow(fmt.Sprintf("user-%d", i), "send_message")
				rl.Cleanup()
			}
		}(i)
	}
	wg.Wait()
}

func TestTokenBucketRefill(t *testing.T) {
	bucket := NewTokenBucket(1, 1, 10*time.Millisecond)

	allowed, _ := bucket.Allow()
	assert.True(t, allowed)
	allowed, _ = bucket.Allow()
	assert.False(t, allowed)

	time.Sleep(15 * time.Millisecond)
	allowed, _ = bucket.Allow()
	assert.True(t, allowed)
}
