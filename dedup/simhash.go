package dedup

import (
	"context"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// simhash computes the 64-bit SimHash of already-normalized text over its
// whitespace-separated tokens. Each token contributes its xxhash bits with
// weight one per occurrence: set bits vote up, clear bits vote down, and
// the sign of each column becomes the output bit.
func simhash(normalized string) uint64 {
	var vector [64]int
	for _, token := range strings.Fields(normalized) {
		h := xxhash.Sum64String(token)
		for i := 0; i < 64; i++ {
			if h&(1<<uint(i)) != 0 {
				vector[i]++
			} else {
				vector[i]--
			}
		}
	}

	var fp uint64
	for i := 0; i < 64; i++ {
		if vector[i] > 0 {
			fp |= 1 << uint(i)
		}
	}
	return fp
}

// Fingerprinter computes content fingerprints on a bounded worker pool.
// The pool is process-global in normal operation; tests construct their
// own with a small slot count.
type Fingerprinter struct {
	slots chan struct{}
}

// NewFingerprinter creates a pool with maxWorkers concurrent slots.
func NewFingerprinter(maxWorkers int) *Fingerprinter {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &Fingerprinter{slots: make(chan struct{}, maxWorkers)}
}

// Fingerprint normalizes text and computes its 64-bit SimHash. The call
// blocks until a pool slot is free or the context is cancelled.
func (f *Fingerprinter) Fingerprint(ctx context.Context, text string) (uint64, error) {
	select {
	case f.slots <- struct{}{}:
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	defer func() { <-f.slots }()

	return simhash(Normalize(text)), nil
}

// Close is a no-op: the pool holds nothing beyond its slot channel.
// Outstanding Fingerprint calls complete normally.
func (f *Fingerprinter) Close() {}
