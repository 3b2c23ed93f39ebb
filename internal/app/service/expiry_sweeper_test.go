package service

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/fraglink-io/fraglink/internal/app/model"
	"github.com/fraglink-io/fraglink/internal/app/store"
	"github.com/fraglink-io/fraglink/internal/infra/prometheus"
	"github.com/fraglink-io/fraglink/internal/infra/slot"
)

func TestExpirySweeper_RefreshesGauges(t *testing.T) {
	past := int64(100)
	future := int64(9_000)
	st := store.New(slot.NewMemory(), nil, 0)
	err := st.Save(context.Background(), []model.LinkRecord{
		{Code: "live", ExpiryTS: &future, Visits: []model.VisitRecord{{TS: 1}}},
		{Code: "gone", ExpiryTS: &past, Visits: []model.VisitRecord{{TS: 2}, {TS: 3}}},
		{Code: "forever", Visits: []model.VisitRecord{}},
	})
	if err != nil {
		t.Fatalf("seed store: %v", err)
	}

	metrics := prometheus.NewMetrics(nil)
	sweeper := NewExpirySweeper(nil, st, metrics, time.Minute)
	sweeper.now = func() int64 { return 1_000 }

	sweeper.sweep()

	checks := []struct {
		name  string
		gauge float64
		want  float64
	}{
		{"store_links", testutil.ToFloat64(metrics.StoreLinks), 3},
		{"store_active_links", testutil.ToFloat64(metrics.StoreActiveLinks), 2},
		{"store_expired_links", testutil.ToFloat64(metrics.StoreExpiredLinks), 1},
		{"store_visits", testutil.ToFloat64(metrics.StoreVisits), 3},
	}
	for _, c := range checks {
		if c.gauge != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.gauge, c.want)
		}
	}
}

func TestExpirySweeper_StartStop(t *testing.T) {
	st := store.New(slot.NewMemory(), nil, 0)
	sweeper := NewExpirySweeper(nil, st, nil, time.Hour)

	sweeper.Start()
	sweeper.Stop()
}
