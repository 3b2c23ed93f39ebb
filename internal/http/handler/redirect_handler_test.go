package handler

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/fraglink-io/fraglink/internal/app/model"
	"github.com/fraglink-io/fraglink/internal/app/resolver"
	"github.com/fraglink-io/fraglink/internal/app/store"
	"github.com/fraglink-io/fraglink/internal/infra/slot"
)

func newRedirectApp(t *testing.T, records []model.LinkRecord) (*fiber.App, *store.Store) {
	t.Helper()

	st := store.New(slot.NewMemory(), nil, 0)
	if len(records) > 0 {
		if err := st.Save(context.Background(), records); err != nil {
			t.Fatalf("seed store: %v", err)
		}
	}

	res := resolver.New(resolver.Deps{
		Store: st,
		Now:   func() int64 { return 1_700_000_123_000 },
	})

	app := fiber.New()
	NewRedirectHandler(RedirectDeps{Resolver: res, PageTitle: "fraglink"}).Register(app)
	return app, st
}

func TestRedirectHandler_Resolve_Found(t *testing.T) {
	app, st := newRedirectApp(t, []model.LinkRecord{
		{Code: "abc", LongURL: "https://example.com/landing", Visits: []model.VisitRecord{}},
	})

	req := httptest.NewRequest("GET", "/r/abc?lang=de-DE&tz=Europe%2FBerlin&screen=800x600", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != fiber.StatusFound {
		t.Fatalf("status = %d, want %d", resp.StatusCode, fiber.StatusFound)
	}
	if loc := resp.Header.Get("Location"); loc != "https://example.com/landing" {
		t.Errorf("Location = %q", loc)
	}

	records, err := st.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(records[0].Visits) != 1 {
		t.Fatalf("visits = %d, want 1", len(records[0].Visits))
	}
	visit := records[0].Visits[0]
	if visit.Lang != "de-DE" || visit.TZ != "Europe/Berlin" || visit.Screen != "800x600" {
		t.Errorf("visit = %+v", visit)
	}
	if visit.Ref != model.ReferrerDirect {
		t.Errorf("visit.Ref = %q, want direct sentinel", visit.Ref)
	}
}

func TestRedirectHandler_Resolve_NotFound(t *testing.T) {
	app, st := newRedirectApp(t, []model.LinkRecord{
		{Code: "abc", LongURL: "https://example.com", Visits: []model.VisitRecord{}},
	})

	for _, code := range []string{"zzz", "ABC"} {
		req := httptest.NewRequest("GET", "/r/"+code, nil)
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("app.Test() error = %v", err)
		}

		if resp.StatusCode != fiber.StatusNotFound {
			t.Errorf("GET /r/%s status = %d, want %d", code, resp.StatusCode, fiber.StatusNotFound)
		}
		if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "text/html") {
			t.Errorf("Content-Type = %q, want html", ct)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if !strings.Contains(string(body), code) {
			t.Errorf("not-found page does not name the code %q", code)
		}
	}

	records, _ := st.Load(context.Background())
	if len(records[0].Visits) != 0 {
		t.Errorf("misses must not record visits, got %d", len(records[0].Visits))
	}
}

func TestRedirectHandler_Shell(t *testing.T) {
	app, _ := newRedirectApp(t, nil)

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "location.replace") {
		t.Error("shell page is missing the fragment hop script")
	}
	if !strings.Contains(string(body), "fraglink") {
		t.Error("shell page is missing the configured title")
	}
}

func TestRedirectHandler_Health(t *testing.T) {
	app, _ := newRedirectApp(t, nil)

	resp, err := app.Test(httptest.NewRequest("GET", "/health", nil))
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `"status":"ok"`) {
		t.Errorf("unexpected health body %s", body)
	}
}
