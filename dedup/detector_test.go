package dedup

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"civicwatch/cache"

	"github.com/stretchr/testify/assert"
)

// memoryLedger is an in-memory Ledger with the same upsert semantics as the
// content_ledger table.
type memoryLedger struct {
	mu     sync.Mutex
	counts map[string]int

	containsErr error
	recordErr   error
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{counts: make(map[string]int)}
}

func (l *memoryLedger) LedgerContains(_ context.Context, hash string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.containsErr != nil {
		return false, l.containsErr
	}
	_, ok := l.counts[hash]
	return ok, nil
}

func (l *memoryLedger) RecordObservation(_ context.Context, hash string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.recordErr != nil {
		return l.recordErr
	}
	l.counts[hash]++
	return nil
}

func (l *memoryLedger) count(hash string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.counts[hash]
}

func newDetector(ledger Ledger) *Detector {
	return NewDetector(cache.New(time.Minute, time.Minute), ledger, time.Hour)
}

func TestCheckFalseThenTrue(t *testing.T) {
	ledger := newMemoryLedger()
	d := newDetector(ledger)
	ctx := context.Background()

	assert.False(t, d.Check(ctx, "h1"), "first sighting is not a duplicate")
	assert.True(t, d.Check(ctx, "h1"), "second sighting is a duplicate")
	assert.True(t, d.Check(ctx, "h1"))

	assert.Equal(t, 3, ledger.count("h1"), "every check records an observation")
}

func TestCheckCacheHitSkipsLedgerLookup(t *testing.T) {
	ledger := newMemoryLedger()
	d := newDetector(ledger)
	ctx := context.Background()

	d.Check(ctx, "h1")
	d.Check(ctx, "h1") // populates the cache from the ledger hit

	// Break only the lookup path; the cached positive must still answer.
	ledger.mu.Lock()
	ledger.containsErr = errors.New("lookup down")
	ledger.mu.Unlock()

	assert.True(t, d.Check(ctx, "h1"))
	assert.Equal(t, 3, ledger.count("h1"))
}

func TestCheckFailsOpenOnLedgerError(t *testing.T) {
	ledger := newMemoryLedger()
	ledger.containsErr = errors.New("db down")
	d := newDetector(ledger)

	assert.False(t, d.Check(context.Background(), "h1"),
		"ledger failure must admit the submission rather than block it")
}

func TestCheckFailsOpenOnRecordError(t *testing.T) {
	ledger := newMemoryLedger()
	ledger.recordErr = errors.New("write down")
	d := newDetector(ledger)

	assert.False(t, d.Check(context.Background(), "h1"))
}

func TestCheckConcurrentFirstWriters(t *testing.T) {
	ledger := newMemoryLedger()
	d := newDetector(ledger)
	ctx := context.Background()

	const n = 16
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.Check(ctx, "h1")
		}()
	}
	wg.Wait()

	assert.Equal(t, n, ledger.count("h1"),
		"concurrent checks must each land exactly one observation")
}

func TestHashContent(t *testing.T) {
	h1 := HashContent("Title", "Description body")
	h2 := HashContent("  title  ", "description body")
	h3 := HashContent("Other", "Description body")

	assert.Equal(t, h1, h2, "hash must normalize case and whitespace")
	assert.NotEqual(t, h1, h3)
	assert.Len(t, h1, 64)
}
