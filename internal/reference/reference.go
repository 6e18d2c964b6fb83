// Package reference produces the transaction references that correlate a
// checkout attempt across the gateway, the verification authority and this
// application.
package reference

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Generator builds references of the form
// <namespace>_<itemID>_<buyerID>_<millis>. The millisecond component is
// strictly increasing per process, so two attempts for the same buyer and
// lesson can never collide even when generated back to back.
type Generator struct {
	namespace string
	last      atomic.Int64
}

func NewGenerator(namespace string) *Generator {
	if namespace == "" {
		namespace = "PAY"
	}
	return &Generator{namespace: namespace}
}

// Next returns a fresh reference. Lock-free: the CAS loop bumps the stored
// millisecond past any value already handed out.
func (g *Generator) Next(itemID, buyerID string) string {
	for {
		last := g.last.Load()
		next := time.Now().UnixMilli()
		if next <= last {
			next = last + 1
		}
		if g.last.CompareAndSwap(last, next) {
			return fmt.Sprintf("%s_%s_%s_%d", g.namespace, itemID, buyerID, next)
		}
	}
}
