// Package resolver turns navigation fragments into redirect decisions and
// records the visit on the record it matched.
package resolver

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fraglink-io/fraglink/internal/app/codefilter"
	"github.com/fraglink-io/fraglink/internal/app/model"
	"github.com/fraglink-io/fraglink/internal/app/store"
	"github.com/fraglink-io/fraglink/internal/infra/prometheus"
)

// Outcome classifies what a resolve attempt did.
type Outcome string

const (
	// OutcomeResolved means the code matched a record and a redirect target
	// was produced.
	OutcomeResolved Outcome = "resolved"
	// OutcomeNotFound means the fragment carried a code but no record has it.
	OutcomeNotFound Outcome = "not_found"
	// OutcomeNoMatch means the fragment is not a redirect fragment at all.
	OutcomeNoMatch Outcome = "no_match"
)

// Result is the decision for one navigation fragment. Location is only set
// when Outcome is OutcomeResolved.
type Result struct {
	Outcome  Outcome
	Code     string
	Location string
}

// VisitPublisher forwards recorded visits to the event stream.
type VisitPublisher interface {
	Publish(event model.VisitEvent) error
}

// Deps groups dependencies required by the resolver. Publisher, Filter and
// Metrics are optional.
type Deps struct {
	Logger    *zap.Logger
	Store     *store.Store
	Filter    *codefilter.Filter
	Publisher VisitPublisher
	Metrics   *prometheus.Metrics
	Now       func() int64
}

// Resolver matches redirect fragments against the link store.
type Resolver struct {
	logger    *zap.Logger
	store     *store.Store
	filter    *codefilter.Filter
	publisher VisitPublisher
	metrics   *prometheus.Metrics
	now       func() int64
}

// New creates a resolver with the provided dependencies.
func New(deps Deps) *Resolver {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Now
	if now == nil {
		now = model.NowMS
	}
	return &Resolver{
		logger:    logger,
		store:     deps.Store,
		filter:    deps.Filter,
		publisher: deps.Publisher,
		metrics:   deps.Metrics,
		now:       now,
	}
}

// ParseFragment extracts the short code from a navigation fragment. It
// accepts "#/r/<code>" and "#r/<code>"; everything after "r/" is the code,
// taken verbatim, and must be non-empty.
func ParseFragment(fragment string) (string, bool) {
	rest, ok := strings.CutPrefix(fragment, "#")
	if !ok {
		return "", false
	}
	rest = strings.TrimPrefix(rest, "/")
	code, ok := strings.CutPrefix(rest, "r/")
	if !ok || code == "" {
		return "", false
	}
	return code, true
}

// Resolve parses the fragment, looks its code up and, on a hit, appends a
// visit to the matched record in the same store write that read it. The
// lookup is exact: codes differing only in case do not match.
func (r *Resolver) Resolve(ctx context.Context, fragment string, client model.ClientInfo) (Result, error) {
	code, ok := ParseFragment(fragment)
	if !ok {
		r.count(OutcomeNoMatch)
		return Result{Outcome: OutcomeNoMatch}, nil
	}

	if r.filter != nil && !r.filter.MightContain(code) {
		r.logger.Debug("code ruled out by membership filter", zap.String("code", code))
		r.count(OutcomeNotFound)
		return Result{Outcome: OutcomeNotFound, Code: code}, nil
	}

	visit := model.NewVisit(r.now(), client)

	var target string
	var found bool
	_, err := r.store.Update(ctx, func(records []model.LinkRecord) ([]model.LinkRecord, bool, error) {
		// The closure replays on write conflicts, so reset the captures.
		target, found = "", false

		idx, ok := store.FindByCode(records, code)
		if !ok {
			return records, false, nil
		}

		updated := records[idx].Clone()
		updated.Visits = append(updated.Visits, visit)

		next := append([]model.LinkRecord(nil), records...)
		next[idx] = updated

		target, found = updated.LongURL, true
		return next, true, nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("resolve %s: %w", code, err)
	}

	if !found {
		r.logger.Debug("no record for code", zap.String("code", code))
		r.count(OutcomeNotFound)
		return Result{Outcome: OutcomeNotFound, Code: code}, nil
	}

	if r.metrics != nil {
		r.metrics.VisitsRecordedTotal.Inc()
	}
	if r.publisher != nil {
		go r.publishVisit(code, visit)
	}

	r.logger.Debug("resolved short link", zap.String("code", code), zap.String("target", target))
	r.count(OutcomeResolved)
	return Result{Outcome: OutcomeResolved, Code: code, Location: target}, nil
}

func (r *Resolver) publishVisit(code string, visit model.VisitRecord) {
	event := model.VisitEvent{
		ID:    uuid.New().String(),
		Code:  code,
		Visit: visit,
	}
	if err := r.publisher.Publish(event); err != nil {
		r.logger.Error("failed to publish visit event", zap.Error(err), zap.String("code", code))
	}
}

func (r *Resolver) count(outcome Outcome) {
	if r.metrics != nil {
		r.metrics.ResolvesTotal.WithLabelValues(string(outcome)).Inc()
	}
}
