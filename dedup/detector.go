// Package dedup answers "have we seen this content before" using a
// two-tier check: an in-memory existence cache in front of the persistent
// content ledger.
package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"civicwatch/cache"

	"github.com/apex/log"
)

const cacheKeyPrefix = "duplicate:"

// Ledger is the persistent content-hash store behind the detector. The
// *database.Database satisfies it.
type Ledger interface {
	LedgerContains(ctx context.Context, contentHash string) (bool, error)
	RecordObservation(ctx context.Context, contentHash string) error
}

// Detector owns the existence cache and the content ledger. No other
// component writes to either.
type Detector struct {
	cache  *cache.ExistenceCache
	ledger Ledger
	ttl    time.Duration
}

// NewDetector creates a duplicate detector. Positive confirmations are
// cached for ttl.
func NewDetector(c *cache.ExistenceCache, ledger Ledger, ttl time.Duration) *Detector {
	return &Detector{cache: c, ledger: ledger, ttl: ttl}
}

// Check reports whether contentHash has been observed before, and durably
// records this observation in the ledger either way, so the ledger's
// occurrence count tracks every sighting.
//
// A cache hit skips the ledger lookup; only positive confirmations are ever
// cached, so a stale cache can never hide a duplicate. On any ledger
// failure the check degrades to "not a duplicate": admitting a possible
// duplicate is preferred over blocking a legitimate submission. Those
// failures are logged, never swallowed.
func (d *Detector) Check(ctx context.Context, contentHash string) bool {
	key := cacheKeyPrefix + contentHash

	duplicate := d.cache.Get(key)
	if !duplicate {
		found, err := d.ledger.LedgerContains(ctx, contentHash)
		if err != nil {
			log.WithError(err).Error("duplicate check failed, degrading to fail-open")
			return false
		}
		if found {
			d.cache.Set(key, d.ttl)
			duplicate = true
		}
	}

	if err := d.ledger.RecordObservation(ctx, contentHash); err != nil {
		log.WithError(err).Error("failed to record content observation")
		if !duplicate {
			return false
		}
	}
	return duplicate
}

// HashContent fingerprints sanitized report text. Normalization keeps
// trivially restyled resubmissions from dodging the check.
func HashContent(parts ...string) string {
	normalized := make([]string, 0, len(parts))
	for _, p := range parts {
		normalized = append(normalized, strings.ToLower(strings.TrimSpace(p)))
	}
	sum := sha256.Sum256([]byte(strings.Join(normalized, "\n")))
	return hex.EncodeToString(sum[:])
}
