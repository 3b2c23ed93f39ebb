package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fraglink-io/fraglink/internal/app/model"
	"github.com/fraglink-io/fraglink/internal/app/store"
	"github.com/fraglink-io/fraglink/internal/infra/prometheus"
)

// ExpirySweeper periodically snapshots the store and refreshes the store
// gauges. It never mutates records; whether a link is expired stays a
// read-time decision.
type ExpirySweeper struct {
	logger   *zap.Logger
	store    *store.Store
	metrics  *prometheus.Metrics
	interval time.Duration
	now      func() int64
	stopChan chan struct{}
}

// NewExpirySweeper creates a sweeper that runs every interval.
func NewExpirySweeper(logger *zap.Logger, st *store.Store, metrics *prometheus.Metrics, interval time.Duration) *ExpirySweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &ExpirySweeper{
		logger:   logger,
		store:    st,
		metrics:  metrics,
		interval: interval,
		now:      model.NowMS,
		stopChan: make(chan struct{}),
	}
}

// Start begins the periodic sweep.
func (s *ExpirySweeper) Start() {
	go s.run()
}

// Stop stops the periodic sweep.
func (s *ExpirySweeper) Stop() {
	close(s.stopChan)
}

func (s *ExpirySweeper) run() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stopChan:
			s.logger.Info("expiry sweeper stopped")
			return
		}
	}
}

func (s *ExpirySweeper) sweep() {
	records, err := s.store.Load(context.Background())
	if err != nil {
		s.logger.Error("failed to load store for sweep", zap.Error(err))
		return
	}

	now := s.now()
	var active, expired, visits int
	for i := range records {
		if records[i].ActiveAt(now) {
			active++
		} else {
			expired++
		}
		visits += len(records[i].Visits)
	}

	if s.metrics != nil {
		s.metrics.StoreLinks.Set(float64(len(records)))
		s.metrics.StoreActiveLinks.Set(float64(active))
		s.metrics.StoreExpiredLinks.Set(float64(expired))
		s.metrics.StoreVisits.Set(float64(visits))
		s.metrics.StoreSaveConflicts.Set(float64(s.store.ConflictCount()))
	}

	if expired > 0 {
		s.logger.Debug("sweep found expired links",
			zap.Int("links", len(records)),
			zap.Int("expired", expired),
		)
	}
}
