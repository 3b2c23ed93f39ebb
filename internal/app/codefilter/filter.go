// Package codefilter keeps a bloom filter over the short codes that exist in
// the store, so resolve can reject unknown codes without a slot read.
package codefilter

import (
	"strings"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"

	"github.com/fraglink-io/fraglink/internal/app/model"
)

const (
	DefaultExpectedCodes     = 10_000
	DefaultFalsePositiveRate = 0.01
)

// Filter is a set-membership hint, not a source of truth. A hit still needs
// the exact store lookup behind it; only a miss is authoritative.
type Filter struct {
	mu sync.RWMutex
	bf *bloom.BloomFilter
}

// New sizes the filter for the expected number of codes. Non-positive
// arguments fall back to the defaults.
func New(expectedCodes uint, fpRate float64) *Filter {
	if expectedCodes == 0 {
		expectedCodes = DefaultExpectedCodes
	}
	if fpRate <= 0 || fpRate >= 1 {
		fpRate = DefaultFalsePositiveRate
	}
	return &Filter{bf: bloom.NewWithEstimates(expectedCodes, fpRate)}
}

// Add records a code. Codes go in case-folded so a query for any case variant
// of an existing code falls through to the exact lookup instead of being
// rejected here.
func (f *Filter) Add(code string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bf.AddString(strings.ToLower(code))
}

// MightContain reports whether code could be in the store. False means the
// code is definitely absent.
func (f *Filter) MightContain(code string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.bf.TestString(strings.ToLower(code))
}

// Seed loads every code from a store snapshot, typically at startup.
func (f *Filter) Seed(records []model.LinkRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range records {
		f.bf.AddString(strings.ToLower(records[i].Code))
	}
}
