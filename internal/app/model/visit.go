package model

// ReferrerDirect is the sentinel stored in a visit's ref field when the
// client arrived without a referrer.
const ReferrerDirect = "(direct)"

// VisitRecord is one recorded access of a short link via the redirect path.
// Visits are append-only; insertion order is chronological order.
type VisitRecord struct {
	TS     int64  `json:"ts"`
	Ref    string `json:"ref"`
	OS     string `json:"os"`
	Lang   string `json:"lang"`
	TZ     string `json:"tz"`
	Screen string `json:"screen"`
}

// ClientInfo is the metadata captured from the requesting client at visit
// time. Capture layers are expected to fill the descriptive fields with
// their platform fallbacks; an empty Referrer maps to the direct sentinel.
type ClientInfo struct {
	Referrer string
	OS       string
	Lang     string
	TZ       string
	Screen   string
}

// NewVisit builds the visit record for a resolve at the given moment.
func NewVisit(tsMS int64, client ClientInfo) VisitRecord {
	ref := client.Referrer
	if ref == "" {
		ref = ReferrerDirect
	}
	return VisitRecord{
		TS:     tsMS,
		Ref:    ref,
		OS:     client.OS,
		Lang:   client.Lang,
		TZ:     client.TZ,
		Screen: client.Screen,
	}
}

// VisitEvent is the message published to the visit stream after a resolve
// has been persisted. The stream is derived observability; the store remains
// the authoritative visit ledger.
type VisitEvent struct {
	ID    string      `json:"id"`
	Code  string      `json:"code"`
	Visit VisitRecord `json:"visit"`
}

const (
	VisitStreamName     = "VISITS"
	VisitStreamSubject  = "visits.recorded"
	VisitConsumerName   = "visit-tally"
	VisitStreamMaxBytes = 64 * 1024 * 1024 // 64MB
)
