package adapter

import "context"

// FallbackPolicy decides what an unreachable verification authority means.
// This is a declared integration choice, never a silent default: strict
// fails the attempt, permissive optimistically confirms it and is only
// acceptable when no backend authority exists at all.
type FallbackPolicy string

const (
	FallbackStrict     FallbackPolicy = "strict"
	FallbackPermissive FallbackPolicy = "permissive"
)

func (p FallbackPolicy) Valid() bool {
	return p == FallbackStrict || p == FallbackPermissive
}

// VerificationResult is the verifier's answer for one reference.
// An authoritative rejection always wins over any fallback.
type VerificationResult struct {
	Confirmed bool
	Detail    string
}

// Verifier confirms with the external authority that a gateway-reported
// reference actually cleared. Calls are bounded by a timeout and idempotent:
// the authority is the source of truth, so repeated calls for the same
// reference yield a consistent answer.
type Verifier interface {
	Verify(ctx context.Context, reference string) VerificationResult
}
