package cache

import (
	"time"

	"github.com/jrsteele09/go-workforce-client/apierror"
)

const (
	DefaultStaleTime  = 5 * time.Minute
	DefaultGCTime     = 10 * time.Minute
	DefaultRetryDelay = time.Second
)

// Policy holds the read cache's staleness and retry rules.
type Policy struct {
	// StaleTime is how long a fetched value is served without a refetch.
	StaleTime time.Duration
	// GCTime is how long an entry nobody reads is kept before it is dropped.
	GCTime time.Duration
	// RefetchOnFocus makes Cache.Focus revalidate stale entries.
	RefetchOnFocus bool
	// RetryDelay is the pause before the single API error retry.
	RetryDelay time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		StaleTime:  DefaultStaleTime,
		GCTime:     DefaultGCTime,
		RetryDelay: DefaultRetryDelay,
	}
}

// ShouldRetryRead decides whether a read that has failed failures times
// should be attempted again. Connectivity failures are never retried. A
// server rejection gets one more attempt. Anything unclassified is final.
func (p Policy) ShouldRetryRead(failures int, err error) bool {
	switch apierror.KindOf(err) {
	case apierror.KindAPI:
		return failures <= 1
	default:
		return false
	}
}

// ShouldRetryMutation always reports false.
func (p Policy) ShouldRetryMutation(int, error) bool {
	return false
}
