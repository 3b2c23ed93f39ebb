package model

import "testing"

func TestLinkRecord_ActiveAt(t *testing.T) {
	now := int64(1700000000000)
	past := now - 60_000
	future := now + 60_000

	tests := []struct {
		name   string
		expiry *int64
		active bool
	}{
		{"no expiry", nil, true},
		{"future expiry", &future, true},
		{"past expiry", &past, false},
		{"expiry equals now", &now, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := LinkRecord{Code: "abc123", ExpiryTS: tt.expiry}
			if got := rec.ActiveAt(now); got != tt.active {
				t.Fatalf("ActiveAt = %v, want %v", got, tt.active)
			}
			if got := rec.ExpiredAt(now); got == tt.active {
				t.Fatalf("ExpiredAt = %v, want %v", got, !tt.active)
			}
		})
	}
}

func TestLinkRecord_Clone(t *testing.T) {
	expiry := int64(1700003600000)
	rec := LinkRecord{
		Code:      "abc123",
		LongURL:   "https://example.com/page",
		CreatedAt: 1700000000000,
		ExpiryTS:  &expiry,
		Visits:    []VisitRecord{{TS: 1700000100000, Ref: ReferrerDirect}},
	}

	clone := rec.Clone()
	clone.Visits = append(clone.Visits, VisitRecord{TS: 1700000200000})
	*clone.ExpiryTS = 0

	if len(rec.Visits) != 1 {
		t.Fatalf("clone shares visit slice with original")
	}
	if *rec.ExpiryTS != expiry {
		t.Fatalf("clone shares expiry pointer with original")
	}
}

func TestNewVisit_DirectSentinel(t *testing.T) {
	v := NewVisit(1700000100000, ClientInfo{OS: "macOS", Lang: "en-US", TZ: "UTC", Screen: "1920x1080"})
	if v.Ref != ReferrerDirect {
		t.Fatalf("empty referrer should map to %q, got %q", ReferrerDirect, v.Ref)
	}

	v = NewVisit(1700000100000, ClientInfo{Referrer: "https://news.example"})
	if v.Ref != "https://news.example" {
		t.Fatalf("non-empty referrer should be kept, got %q", v.Ref)
	}
}
