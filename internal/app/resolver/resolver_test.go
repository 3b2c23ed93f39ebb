package resolver

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/fraglink-io/fraglink/internal/app/codefilter"
	"github.com/fraglink-io/fraglink/internal/app/model"
	"github.com/fraglink-io/fraglink/internal/app/store"
	"github.com/fraglink-io/fraglink/internal/infra/prometheus"
	"github.com/fraglink-io/fraglink/internal/infra/slot"
)

func TestParseFragment(t *testing.T) {
	tests := []struct {
		fragment string
		wantCode string
		wantOK   bool
	}{
		{"#/r/abc", "abc", true},
		{"#r/abc", "abc", true},
		{"#/r/ABC", "ABC", true},
		{"#/r/a/b", "a/b", true},
		{"#/r/x?y=1", "x?y=1", true},
		{"#/r/", "", false},
		{"#/r", "", false},
		{"#//r/abc", "", false},
		{"#/R/abc", "", false},
		{"#/links", "", false},
		{"/r/abc", "", false},
		{"r/abc", "", false},
		{"#", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		code, ok := ParseFragment(tt.fragment)
		if code != tt.wantCode || ok != tt.wantOK {
			t.Errorf("ParseFragment(%q) = (%q, %v), want (%q, %v)",
				tt.fragment, code, ok, tt.wantCode, tt.wantOK)
		}
	}
}

type publisherMock struct {
	events chan model.VisitEvent
}

func (m *publisherMock) Publish(event model.VisitEvent) error {
	m.events <- event
	return nil
}

func seedStore(t *testing.T, records []model.LinkRecord) *store.Store {
	t.Helper()
	s := store.New(slot.NewMemory(), nil, 0)
	if err := s.Save(context.Background(), records); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	return s
}

func TestResolver_Resolve_RecordsVisit(t *testing.T) {
	s := seedStore(t, []model.LinkRecord{
		{Code: "abc", LongURL: "https://example.com/a", CreatedAt: 1, Visits: []model.VisitRecord{}},
		{Code: "def", LongURL: "https://example.com/b", CreatedAt: 2, Visits: []model.VisitRecord{}},
	})
	r := New(Deps{
		Store: s,
		Now:   func() int64 { return 1_700_000_123_000 },
	})

	res, err := r.Resolve(context.Background(), "#/r/abc", model.ClientInfo{
		Referrer: "https://news.example",
		OS:       "Linux",
		Lang:     "en-US",
		TZ:       "UTC",
		Screen:   "1920x1080",
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.Outcome != OutcomeResolved {
		t.Fatalf("Outcome = %q, want %q", res.Outcome, OutcomeResolved)
	}
	if res.Code != "abc" || res.Location != "https://example.com/a" {
		t.Errorf("Result = %+v", res)
	}

	records, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(records[0].Visits) != 1 {
		t.Fatalf("abc has %d visits, want 1", len(records[0].Visits))
	}
	visit := records[0].Visits[0]
	if visit.TS != 1_700_000_123_000 {
		t.Errorf("visit.TS = %d", visit.TS)
	}
	if visit.Ref != "https://news.example" || visit.OS != "Linux" {
		t.Errorf("visit = %+v", visit)
	}
	if len(records[1].Visits) != 0 {
		t.Errorf("def picked up %d visits", len(records[1].Visits))
	}
}

func TestResolver_Resolve_EmptyReferrerBecomesDirect(t *testing.T) {
	s := seedStore(t, []model.LinkRecord{
		{Code: "abc", LongURL: "https://example.com", Visits: []model.VisitRecord{}},
	})
	r := New(Deps{Store: s})

	if _, err := r.Resolve(context.Background(), "#/r/abc", model.ClientInfo{}); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	records, _ := s.Load(context.Background())
	if got := records[0].Visits[0].Ref; got != model.ReferrerDirect {
		t.Errorf("visit.Ref = %q, want %q", got, model.ReferrerDirect)
	}
}

func TestResolver_Resolve_Outcomes(t *testing.T) {
	s := seedStore(t, []model.LinkRecord{
		{Code: "abc", LongURL: "https://example.com", Visits: []model.VisitRecord{}},
	})
	metrics := prometheus.NewMetrics(nil)
	r := New(Deps{Store: s, Metrics: metrics})

	tests := []struct {
		name     string
		fragment string
		want     Outcome
	}{
		{"hit", "#/r/abc", OutcomeResolved},
		{"unknown code", "#/r/zzz", OutcomeNotFound},
		{"case mismatch", "#/r/ABC", OutcomeNotFound},
		{"not a redirect fragment", "#/about", OutcomeNoMatch},
		{"empty fragment", "", OutcomeNoMatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := r.Resolve(context.Background(), tt.fragment, model.ClientInfo{})
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if res.Outcome != tt.want {
				t.Errorf("Outcome = %q, want %q", res.Outcome, tt.want)
			}
		})
	}

	if got := testutil.ToFloat64(metrics.ResolvesTotal.WithLabelValues(string(OutcomeResolved))); got != 1 {
		t.Errorf("resolved counter = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.ResolvesTotal.WithLabelValues(string(OutcomeNotFound))); got != 2 {
		t.Errorf("not_found counter = %v, want 2", got)
	}
}

func TestResolver_Resolve_ExpiredLinkStillRedirects(t *testing.T) {
	expiry := int64(1_000)
	s := seedStore(t, []model.LinkRecord{
		{Code: "old", LongURL: "https://example.com", ExpiryTS: &expiry, Visits: []model.VisitRecord{}},
	})
	r := New(Deps{
		Store: s,
		Now:   func() int64 { return 2_000 },
	})

	res, err := r.Resolve(context.Background(), "#/r/old", model.ClientInfo{})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.Outcome != OutcomeResolved {
		t.Errorf("Outcome = %q, want %q for an expired link", res.Outcome, OutcomeResolved)
	}
}

type deadSlot struct {
	t *testing.T
}

func (d *deadSlot) Load(context.Context) ([]byte, string, error) {
	d.t.Error("store read despite filter miss")
	return nil, "", nil
}

func (d *deadSlot) Write(context.Context, []byte) (string, error) {
	d.t.Error("store write despite filter miss")
	return "", nil
}

func (d *deadSlot) CompareAndWrite(context.Context, []byte, string) (string, error) {
	d.t.Error("store write despite filter miss")
	return "", nil
}

func TestResolver_Resolve_FilterShortCircuitsUnknownCodes(t *testing.T) {
	filter := codefilter.New(100, 0.01)
	filter.Add("known")
	r := New(Deps{
		Store:  store.New(&deadSlot{t: t}, nil, 0),
		Filter: filter,
	})

	res, err := r.Resolve(context.Background(), "#/r/definitely-absent", model.ClientInfo{})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.Outcome != OutcomeNotFound {
		t.Errorf("Outcome = %q, want %q", res.Outcome, OutcomeNotFound)
	}
}

func TestResolver_Resolve_PublishesVisitEvent(t *testing.T) {
	s := seedStore(t, []model.LinkRecord{
		{Code: "abc", LongURL: "https://example.com", Visits: []model.VisitRecord{}},
	})
	pub := &publisherMock{events: make(chan model.VisitEvent, 1)}
	r := New(Deps{
		Store:     s,
		Publisher: pub,
		Now:       func() int64 { return 42 },
	})

	if _, err := r.Resolve(context.Background(), "#/r/abc", model.ClientInfo{OS: "iOS"}); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	select {
	case event := <-pub.events:
		if event.ID == "" {
			t.Error("event.ID is empty")
		}
		if event.Code != "abc" {
			t.Errorf("event.Code = %q", event.Code)
		}
		if event.Visit.TS != 42 || event.Visit.OS != "iOS" {
			t.Errorf("event.Visit = %+v", event.Visit)
		}
	case <-time.After(time.Second):
		t.Fatal("no visit event published")
	}
}
