// Package service owns the process-lifetime components and the submission
// pipeline. Everything shared (database pool, existence cache, websocket
// hub, duplicate detector, scheduler) is constructed here at startup,
// handed to the handlers, and torn down at shutdown.
package service

import (
	"context"
	"fmt"
	"time"

	"civicwatch/aggregator"
	"civicwatch/cache"
	"civicwatch/config"
	"civicwatch/database"
	"civicwatch/dedup"
	"civicwatch/models"
	"civicwatch/rabbitmq"
	"civicwatch/websocket"

	"github.com/apex/log"
	"github.com/robfig/cron/v3"
)

const cacheSweepInterval = 2 * time.Minute

// Store is the persistence boundary the service works against.
// *database.Database satisfies it.
type Store interface {
	CreateReportWithSubmission(ctx context.Context, r *models.Report, sub *models.Submission) (*models.Report, error)
	GetReportByID(ctx context.Context, id int64) (*models.Report, error)
	IncrementViewCount(ctx context.Context, id int64) error
	ListReports(ctx context.Context, filters models.ListFilters) ([]models.Report, error)
	GetFeedByType(ctx context.Context, reportType string, limit int) ([]models.Report, error)
	RecordAppreciation(ctx context.Context, reportID int64, ipAddress string) (int, error)
}

// DuplicateChecker is the duplicate detection boundary.
type DuplicateChecker interface {
	Check(ctx context.Context, contentHash string) bool
}

// Broadcaster is the live fan-out boundary. *websocket.Hub satisfies it.
type Broadcaster interface {
	PublishToTopic(topic string, message models.BroadcastMessage)
	PublishGlobal(message models.BroadcastMessage)
}

// ReportPublisher forwards stored reports to downstream consumers.
type ReportPublisher interface {
	PublishReport(report *models.Report) error
}

// Service manages the reporting pipeline and its shared components.
type Service struct {
	cfg         *config.Config
	db          *database.Database
	store       Store
	detector    DuplicateChecker
	hub         *websocket.Hub
	broadcaster Broadcaster
	pipeline    *aggregator.Pipeline
	publisher   ReportPublisher
	cron        *cron.Cron
}

// NewService builds the full component graph. It fails if the store is
// unreachable: the process must not serve traffic without it.
func NewService(cfg *config.Config) (*Service, error) {
	db, err := database.NewDatabase(cfg)
	if err != nil {
		return nil, err
	}

	existence := cache.New(cfg.DuplicateCacheTTL, cacheSweepInterval)
	detector := dedup.NewDetector(existence, db, cfg.DuplicateCacheTTL)
	hub := websocket.NewHub()

	var publisher ReportPublisher
	if cfg.AMQPURL != "" {
		p, err := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create report publisher: %w", err)
		}
		publisher = p
	}

	s := &Service{
		cfg:         cfg,
		db:          db,
		store:       db,
		detector:    detector,
		hub:         hub,
		broadcaster: hub,
		publisher:   publisher,
		cron:        cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger))),
	}

	if cfg.AggregationSourceURL != "" {
		source := aggregator.NewHTTPSource("news", cfg.AggregationSourceURL)
		s.pipeline = aggregator.NewPipeline(source, detector, db, hub, publisher, cfg.CandidateTimeout)
	}

	return s, nil
}

// Start initializes the schema and begins the aggregation schedule.
func (s *Service) Start() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.db.InitSchema(ctx); err != nil {
		return err
	}

	if s.pipeline != nil {
		spec := fmt.Sprintf("@every %s", s.cfg.AggregationInterval)
		if _, err := s.cron.AddFunc(spec, s.runAggregation); err != nil {
			return fmt.Errorf("failed to schedule aggregation: %w", err)
		}
		s.cron.Start()
		log.Infof("Aggregation scheduled every %s", s.cfg.AggregationInterval)
	}

	log.Info("civicwatch service started")
	return nil
}

// Stop tears the service down gracefully.
func (s *Service) Stop() error {
	if s.pipeline != nil {
		<-s.cron.Stop().Done()
	}
	s.hub.Stop()

	if closer, ok := s.publisher.(interface{ Close() error }); ok && closer != nil {
		if err := closer.Close(); err != nil {
			log.WithError(err).Warn("error closing report publisher")
		}
	}

	if err := s.db.Close(); err != nil {
		log.WithError(err).Warn("error closing database")
	}

	log.Info("civicwatch service stopped")
	return nil
}

func (s *Service) runAggregation() {
	_, err := s.pipeline.Run(context.Background())
	if err == aggregator.ErrAlreadyRunning {
		// Previous firing still in progress; this tick is skipped, not queued.
		log.Warn("Aggregation tick skipped, previous run still in progress")
		return
	}
	if err != nil {
		log.WithError(err).Error("aggregation run failed")
	}
}

// Hub exposes the broadcaster for the websocket handler.
func (s *Service) Hub() *websocket.Hub {
	return s.hub
}

func (s *Service) dbCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.cfg.DBTimeout)
}
