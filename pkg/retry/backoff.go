// Package retry computes deterministic backoff schedules and runs bounded
// polling loops on top of them.
package retry

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// ErrExhausted is returned by Poll when every attempt failed.
var ErrExhausted = errors.New("retry attempts exhausted")

// BackoffParams seed the jitter for one attempt.
type BackoffParams struct {
	PolicyID     string
	Target       string
	AttemptIndex int
}

// BackoffPolicy bounds a retry loop.
type BackoffPolicy struct {
	PolicyID    string
	BaseMs      int64
	MaxMs       int64
	MaxJitterMs int64
	MaxAttempts int
}

// EngineStartupPolicy polls every 500ms for up to 30 attempts.
func EngineStartupPolicy() BackoffPolicy {
	return BackoffPolicy{
		PolicyID:    "engine-startup",
		BaseMs:      500,
		MaxMs:       500,
		MaxAttempts: 30,
	}
}

// ComputeBackoff returns the delay before the given attempt.
func ComputeBackoff(params BackoffParams, policy BackoffPolicy) time.Duration {
	// delay = base * 2^attempt, exponent capped to avoid overflow
	factor := int64(1)
	if params.AttemptIndex > 0 {
		if params.AttemptIndex > 30 {
			factor = 1 << 30
		} else {
			factor = 1 << params.AttemptIndex
		}
	}

	baseDelay := policy.BaseMs * factor
	if baseDelay > policy.MaxMs {
		baseDelay = policy.MaxMs
	}

	return time.Duration(baseDelay+ComputeDeterministicJitter(params, policy)) * time.Millisecond
}

// ComputeDeterministicJitter derives jitter from the attempt inputs so the
// same schedule is produced on every run.
func ComputeDeterministicJitter(params BackoffParams, policy BackoffPolicy) int64 {
	if policy.MaxJitterMs <= 0 {
		return 0
	}
	seed := fmt.Sprintf("%s:%s:%d", params.PolicyID, params.Target, params.AttemptIndex)
	hash := sha256.Sum256([]byte(seed))
	basis := binary.BigEndian.Uint64(hash[:8])
	return int64(basis % uint64(policy.MaxJitterMs)) //nolint:gosec // MaxJitterMs is positive here
}

// Poll calls fn until it succeeds, ctx ends, or the policy runs out of
// attempts. The last error from fn is wrapped together with ErrExhausted.
func Poll(ctx context.Context, policy BackoffPolicy, target string, fn func(context.Context) error) error {
	attempts := policy.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	var last error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			delay := ComputeBackoff(BackoffParams{PolicyID: policy.PolicyID, Target: target, AttemptIndex: i}, policy)
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
		if last = fn(ctx); last == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempts, last)
}
