package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/fraglink-io/fraglink/internal/app/codefilter"
	"github.com/fraglink-io/fraglink/internal/app/model"
	"github.com/fraglink-io/fraglink/internal/app/shortcode"
	"github.com/fraglink-io/fraglink/internal/app/store"
	"github.com/fraglink-io/fraglink/internal/infra/prometheus"
)

var (
	ErrInvalidURL      = errors.New("long url must be an absolute http or https url")
	ErrInvalidValidity = errors.New("validity must be a positive number of minutes")
	ErrInvalidCode     = errors.New("preferred code has no usable characters")
	ErrCodeTaken       = errors.New("code is already in use")
	ErrEmptyBatch      = errors.New("batch has no items")
	ErrLinkNotFound    = errors.New("link not found")
	ErrCodeExhausted   = errors.New("could not allocate a free code")
)

// generateAttempts bounds how often a fresh random code is drawn before the
// batch is rejected.
const generateAttempts = 8

// LinkService defines behaviour-level operations on links.
type LinkService interface {
	CreateBatch(ctx context.Context, items []CreateItem) ([]model.LinkRecord, error)
	ListLinks(ctx context.Context, limit, offset int) ([]model.LinkRecord, error)
	GetLink(ctx context.Context, code string) (*model.LinkRecord, error)
	Stats(ctx context.Context) (Stats, error)
}

// CreateItem is one requested link in a creation batch.
type CreateItem struct {
	LongURL         string `json:"longUrl"`
	ValidityMinutes *int   `json:"validityMinutes"`
	PreferredCode   string `json:"preferredCode"`
}

// ItemError ties a validation failure to the batch item that caused it.
type ItemError struct {
	Index int
	Field string
	Err   error
}

// BatchError reports every invalid item of a rejected batch. A rejected
// batch creates nothing.
type BatchError struct {
	Items []ItemError
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch rejected: %d invalid item(s)", len(e.Items))
}

// Stats is an aggregate snapshot of the store.
type Stats struct {
	Links   int `json:"links"`
	Active  int `json:"active"`
	Expired int `json:"expired"`
	Visits  int `json:"visits"`
}

// Deps groups dependencies required by the link service. Filter and Metrics
// are optional.
type Deps struct {
	Logger     *zap.Logger
	Store      *store.Store
	Filter     *codefilter.Filter
	Metrics    *prometheus.Metrics
	CodeLength int
	Now        func() int64
}

type linkService struct {
	logger  *zap.Logger
	store   *store.Store
	filter  *codefilter.Filter
	metrics *prometheus.Metrics
	codeLen int
	now     func() int64
}

// NewLinkService returns a service implementation backed by the given store.
func NewLinkService(deps Deps) LinkService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	codeLen := deps.CodeLength
	if codeLen <= 0 {
		codeLen = shortcode.GeneratedLength
	}
	now := deps.Now
	if now == nil {
		now = model.NowMS
	}
	return &linkService{
		logger:  logger,
		store:   deps.Store,
		filter:  deps.Filter,
		metrics: deps.Metrics,
		codeLen: codeLen,
		now:     now,
	}
}

// ValidateLongURL checks that raw is an absolute http or https URL with a
// host. Surrounding whitespace is ignored.
func ValidateLongURL(raw string) error {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ErrInvalidURL
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return ErrInvalidURL
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ErrInvalidURL
	}
	if u.Host == "" {
		return ErrInvalidURL
	}
	return nil
}

// preparedItem is a batch item after static validation.
type preparedItem struct {
	longURL         string
	validityMinutes *int
	code            string // sanitized preferred code, empty means generate
}

// CreateBatch validates every item and then creates all of them in one store
// write. Either the whole batch lands or none of it does; on rejection the
// returned error is a *BatchError naming each offending item.
func (s *linkService) CreateBatch(ctx context.Context, items []CreateItem) ([]model.LinkRecord, error) {
	if len(items) == 0 {
		return nil, ErrEmptyBatch
	}

	prepared, batchErr := s.prepare(items)
	if batchErr != nil {
		return nil, batchErr
	}

	var created []model.LinkRecord
	_, err := s.store.Update(ctx, func(records []model.LinkRecord) ([]model.LinkRecord, bool, error) {
		// The closure replays on write conflicts, so rebuild from scratch.
		created = nil

		taken := make(map[string]struct{}, len(records)+len(prepared))
		for i := range records {
			taken[strings.ToLower(records[i].Code)] = struct{}{}
		}

		var itemErrs []ItemError
		codes := make([]string, len(prepared))
		for i, item := range prepared {
			if item.code == "" {
				continue
			}
			if _, exists := taken[strings.ToLower(item.code)]; exists {
				itemErrs = append(itemErrs, ItemError{Index: i, Field: "preferredCode", Err: ErrCodeTaken})
				continue
			}
			codes[i] = item.code
			taken[strings.ToLower(item.code)] = struct{}{}
		}
		if len(itemErrs) > 0 {
			return nil, false, &BatchError{Items: itemErrs}
		}

		for i := range prepared {
			if codes[i] != "" {
				continue
			}
			code, err := s.pickCode(taken)
			if err != nil {
				return nil, false, err
			}
			codes[i] = code
			taken[strings.ToLower(code)] = struct{}{}
		}

		now := s.now()
		created = make([]model.LinkRecord, len(prepared))
		for i, item := range prepared {
			var expiry *int64
			if item.validityMinutes != nil {
				ts := now + int64(*item.validityMinutes)*60_000
				expiry = &ts
			}
			created[i] = model.LinkRecord{
				Code:      codes[i],
				LongURL:   item.longURL,
				CreatedAt: now,
				ExpiryTS:  expiry,
				Visits:    []model.VisitRecord{},
			}
		}

		// New records go to the head, keeping the batch's own order.
		next := make([]model.LinkRecord, 0, len(created)+len(records))
		next = append(next, created...)
		next = append(next, records...)
		return next, true, nil
	})
	if err != nil {
		var be *BatchError
		if errors.As(err, &be) {
			return nil, be
		}
		return nil, fmt.Errorf("create batch: %w", err)
	}

	for i := range created {
		if s.filter != nil {
			s.filter.Add(created[i].Code)
		}
		s.logger.Info("short link created",
			zap.String("code", created[i].Code),
			zap.String("target", created[i].LongURL),
		)
	}
	if s.metrics != nil {
		s.metrics.LinksCreatedTotal.Add(float64(len(created)))
	}
	return created, nil
}

// prepare runs the static checks that need no store state.
func (s *linkService) prepare(items []CreateItem) ([]preparedItem, *BatchError) {
	prepared := make([]preparedItem, len(items))
	var itemErrs []ItemError
	seen := make(map[string]int, len(items))

	for i, item := range items {
		if err := ValidateLongURL(item.LongURL); err != nil {
			itemErrs = append(itemErrs, ItemError{Index: i, Field: "longUrl", Err: err})
		}
		if item.ValidityMinutes != nil && *item.ValidityMinutes <= 0 {
			itemErrs = append(itemErrs, ItemError{Index: i, Field: "validityMinutes", Err: ErrInvalidValidity})
		}

		code := shortcode.Sanitize(item.PreferredCode)
		if strings.TrimSpace(item.PreferredCode) != "" && code == "" {
			itemErrs = append(itemErrs, ItemError{Index: i, Field: "preferredCode", Err: ErrInvalidCode})
		} else if code != "" {
			if _, dup := seen[strings.ToLower(code)]; dup {
				itemErrs = append(itemErrs, ItemError{Index: i, Field: "preferredCode", Err: ErrCodeTaken})
			} else {
				seen[strings.ToLower(code)] = i
			}
		}

		prepared[i] = preparedItem{
			longURL:         strings.TrimSpace(item.LongURL),
			validityMinutes: item.ValidityMinutes,
			code:            code,
		}
	}

	if len(itemErrs) > 0 {
		return nil, &BatchError{Items: itemErrs}
	}
	return prepared, nil
}

func (s *linkService) pickCode(taken map[string]struct{}) (string, error) {
	for attempt := 0; attempt < generateAttempts; attempt++ {
		code, err := shortcode.Generate(s.codeLen)
		if err != nil {
			return "", fmt.Errorf("generate code: %w", err)
		}
		if _, exists := taken[strings.ToLower(code)]; !exists {
			return code, nil
		}
	}
	return "", ErrCodeExhausted
}

func (s *linkService) ListLinks(ctx context.Context, limit, offset int) ([]model.LinkRecord, error) {
	records, err := s.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}

	if offset < 0 {
		offset = 0
	}
	if offset >= len(records) {
		return []model.LinkRecord{}, nil
	}
	records = records[offset:]
	if limit > 0 && limit < len(records) {
		records = records[:limit]
	}
	return records, nil
}

func (s *linkService) GetLink(ctx context.Context, code string) (*model.LinkRecord, error) {
	records, err := s.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("get link: %w", err)
	}
	idx, ok := store.FindByCode(records, code)
	if !ok {
		return nil, ErrLinkNotFound
	}
	record := records[idx]
	return &record, nil
}

func (s *linkService) Stats(ctx context.Context) (Stats, error) {
	records, err := s.store.Load(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("stats: %w", err)
	}

	now := s.now()
	stats := Stats{Links: len(records)}
	for i := range records {
		if records[i].ActiveAt(now) {
			stats.Active++
		} else {
			stats.Expired++
		}
		stats.Visits += len(records[i].Visits)
	}
	return stats, nil
}
