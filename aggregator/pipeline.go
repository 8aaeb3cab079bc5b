// Package aggregator merges externally sourced content into the live feed
// through the same sanitize/dedup/classify/store/broadcast pipeline a user
// submission takes.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"civicwatch/classifier"
	"civicwatch/database"
	"civicwatch/dedup"
	"civicwatch/models"
	"civicwatch/sanitize"

	"github.com/apex/log"
)

// ErrAlreadyRunning is returned when a run fires while the previous one is
// still in progress. The caller skips the tick instead of queueing it.
var ErrAlreadyRunning = errors.New("aggregation run already in progress")

// Classifier confidence at or above this threshold marks an aggregated
// report verified on arrival, making it immediately visible in the feed.
// Lower-confidence items wait in pending for moderation.
const verifiedConfidenceThreshold = 0.6

const maxDerivedTitleLen = 120

// ReportStore persists survivors of the pipeline.
type ReportStore interface {
	CreateReport(ctx context.Context, r *models.Report) (*models.Report, error)
}

// DuplicateChecker is the duplicate detector boundary.
type DuplicateChecker interface {
	Check(ctx context.Context, contentHash string) bool
}

// Broadcaster pushes stored reports to live feed subscribers.
type Broadcaster interface {
	PublishToTopic(topic string, message models.BroadcastMessage)
}

// ReportPublisher forwards stored reports to downstream consumers. May be
// absent.
type ReportPublisher interface {
	PublishReport(report *models.Report) error
}

// Stats summarizes one aggregation run.
type Stats struct {
	Fetched    int
	Stored     int
	Duplicates int
	Skipped    int
	Failed     int
}

// Pipeline runs the recurring ingestion job.
type Pipeline struct {
	source           Source
	detector         DuplicateChecker
	store            ReportStore
	hub              Broadcaster
	publisher        ReportPublisher
	candidateTimeout time.Duration

	runMu sync.Mutex
}

// NewPipeline wires an ingestion pipeline. publisher may be nil when no
// downstream fan-out is configured.
func NewPipeline(source Source, detector DuplicateChecker, store ReportStore, hub Broadcaster, publisher ReportPublisher, candidateTimeout time.Duration) *Pipeline {
	return &Pipeline{
		source:           source,
		detector:         detector,
		store:            store,
		hub:              hub,
		publisher:        publisher,
		candidateTimeout: candidateTimeout,
	}
}

// Run executes one aggregation firing: fetch a batch, push every candidate
// through the submission pipeline, and report what happened. A single bad
// candidate never aborts the batch. Run never overlaps itself; a call that
// arrives mid-run returns ErrAlreadyRunning.
func (p *Pipeline) Run(ctx context.Context) (Stats, error) {
	if !p.runMu.TryLock() {
		return Stats{}, ErrAlreadyRunning
	}
	defer p.runMu.Unlock()

	candidates, err := p.source.FetchCandidates(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("aggregation fetch failed: %w", err)
	}

	stats := Stats{Fetched: len(candidates)}
	for i, candidate := range candidates {
		stored, outcome := p.processCandidate(ctx, candidate)
		switch outcome {
		case outcomeStored:
			stats.Stored++
			p.broadcast(stored)
		case outcomeDuplicate:
			stats.Duplicates++
		case outcomeSkipped:
			stats.Skipped++
		case outcomeFailed:
			stats.Failed++
			log.Warnf("Aggregation candidate %d from %s failed, continuing batch", i, p.source.Name())
		}
	}

	log.Infof("Aggregation run from %s: fetched=%d stored=%d duplicates=%d skipped=%d failed=%d",
		p.source.Name(), stats.Fetched, stats.Stored, stats.Duplicates, stats.Skipped, stats.Failed)
	return stats, nil
}

type outcome int

const (
	outcomeStored outcome = iota
	outcomeDuplicate
	outcomeSkipped
	outcomeFailed
)

// processCandidate runs one candidate through sanitize -> hash -> dedup ->
// classify -> store. Each candidate gets its own timeout so one slow item
// cannot stall the batch.
func (p *Pipeline) processCandidate(ctx context.Context, candidate models.RawContent) (*models.Report, outcome) {
	cctx, cancel := context.WithTimeout(ctx, p.candidateTimeout)
	defer cancel()

	title := sanitize.Text(candidate.Title)
	text := sanitize.Text(candidate.Text)
	if text == "" {
		return nil, outcomeSkipped
	}
	if title == "" {
		title = deriveTitle(text)
	}

	contentHash := dedup.HashContent(title, text)
	if p.detector.Check(cctx, contentHash) {
		// Seen before: discard silently. The detector already bumped the
		// ledger's occurrence count.
		return nil, outcomeDuplicate
	}

	classification := classifier.Classify(title + " " + text)
	if !models.ValidType(classification.Type) {
		log.Debugf("Candidate from %s matched no feed type, skipping", p.source.Name())
		return nil, outcomeSkipped
	}

	status := models.StatusPending
	if classification.Confidence >= verifiedConfidenceThreshold {
		status = models.StatusVerified
	}

	report := &models.Report{
		Type:        classification.Type,
		Title:       title,
		Description: text,
		Category:    classification.Category,
		Tags:        strings.Join(classification.Tags, ","),
		Status:      status,
		SourceType:  models.SourceAggregated,
		SourceURL:   candidate.SourceURL,
		ContentHash: contentHash,
	}

	stored, err := p.store.CreateReport(cctx, report)
	if errors.Is(err, database.ErrDuplicateContent) {
		// The fail-open dedup path let a duplicate through; the store's
		// uniqueness constraint is the backstop.
		return nil, outcomeDuplicate
	}
	if err != nil {
		log.WithError(err).Errorf("failed to store aggregated report from %s", p.source.Name())
		return nil, outcomeFailed
	}
	return stored, outcomeStored
}

// broadcast publishes a stored report to its feed topic, and to the
// optional downstream exchange. Publish only ever happens after a
// successful insert.
func (p *Pipeline) broadcast(report *models.Report) {
	p.hub.PublishToTopic(report.Type, models.BroadcastMessage{
		Type:      models.EventFeedUpdate,
		Data:      report,
		Timestamp: time.Now().UTC(),
	})

	if p.publisher != nil {
		if err := p.publisher.PublishReport(report); err != nil {
			log.WithError(err).Warn("failed to publish aggregated report downstream")
		}
	}
}

func deriveTitle(text string) string {
	if len(text) <= maxDerivedTitleLen {
		return text
	}
	cut := strings.LastIndex(text[:maxDerivedTitleLen], " ")
	if cut <= 0 {
		// No space to cut at; back up so the cut never splits a rune.
		cut = maxDerivedTitleLen
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
	}
	return text[:cut]
}
