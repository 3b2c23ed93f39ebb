package model

import "time"

// LinkRecord is the persisted shape of one short link. The JSON field names
// are part of the durable format: the whole collection is stored as a single
// JSON array of these objects, and external tooling reads it as-is.
type LinkRecord struct {
	Code      string        `json:"code"`
	LongURL   string        `json:"longUrl"`
	CreatedAt int64         `json:"createdAt"`
	ExpiryTS  *int64        `json:"expiryTs"`
	Visits    []VisitRecord `json:"visits"`
}

// ActiveAt reports whether the link is still active at the given moment.
// Active/expired is derived, never stored: a nil ExpiryTS means the link
// never expires.
func (r *LinkRecord) ActiveAt(nowMS int64) bool {
	return r.ExpiryTS == nil || *r.ExpiryTS > nowMS
}

// ExpiredAt is the complement of ActiveAt.
func (r *LinkRecord) ExpiredAt(nowMS int64) bool {
	return !r.ActiveAt(nowMS)
}

// Clone returns a deep copy of the record. Mutations of links always go
// through copies so a loaded collection is never aliased into saved state.
func (r LinkRecord) Clone() LinkRecord {
	out := r
	if r.ExpiryTS != nil {
		ts := *r.ExpiryTS
		out.ExpiryTS = &ts
	}
	out.Visits = make([]VisitRecord, len(r.Visits))
	copy(out.Visits, r.Visits)
	return out
}

// NowMS is the timestamp convention used throughout the store: epoch
// milliseconds.
func NowMS() int64 {
	return time.Now().UnixMilli()
}
