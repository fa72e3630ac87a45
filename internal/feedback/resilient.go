package feedback

import (
	"context"
	"io"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// ResilientStore wraps a Store with a circuit breaker so a failing
// feedback collaborator degrades to the neutral prior instead of
// stalling or repeatedly failing the pipeline (§6: the store is
// optional and read-only from the core's perspective), and a rate
// limiter so a burst of pipeline requests can't overwhelm the backing
// database with prior lookups.
type ResilientStore struct {
	inner   Store
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
}

// NewResilientStore wraps inner with a breaker that opens after 5
// consecutive failures and probes again after 30 seconds, and a
// limiter admitting up to 50 prior lookups per second with a burst of
// 10.
func NewResilientStore(inner Store) *ResilientStore {
	settings := gobreaker.Settings{
		Name:        "feedback-store",
		MaxRequests: 1,
		Interval:    0,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
	return &ResilientStore{
		inner:   inner,
		breaker: gobreaker.NewCircuitBreaker(settings),
		limiter: rate.NewLimiter(rate.Limit(50), 10),
	}
}

// Prior returns inner's prior, or the neutral 1.0 when the breaker is
// open, the limiter rejects the call, or the call fails. It never
// propagates a store error to the pipeline: an unavailable feedback
// collaborator degrades, it never blocks.
func (r *ResilientStore) Prior(ctx context.Context, gene, diplotype string) (float64, error) {
	if !r.limiter.Allow() {
		return 1.0, nil
	}
	result, err := r.breaker.Execute(func() (interface{}, error) {
		return r.inner.Prior(ctx, gene, diplotype)
	})
	if err != nil {
		return 1.0, nil
	}
	return result.(float64), nil
}

func (r *ResilientStore) Save(ctx context.Context, record *PriorRecord) error {
	_, err := r.breaker.Execute(func() (interface{}, error) {
		return nil, r.inner.Save(ctx, record)
	})
	return err
}

func (r *ResilientStore) Get(ctx context.Context, gene, diplotype string) (*PriorRecord, error) {
	result, err := r.breaker.Execute(func() (interface{}, error) {
		return r.inner.Get(ctx, gene, diplotype)
	})
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}
	return result.(*PriorRecord), nil
}

func (r *ResilientStore) List(ctx context.Context, limit, offset int) ([]*PriorRecord, error) {
	return r.inner.List(ctx, limit, offset)
}

func (r *ResilientStore) Count(ctx context.Context) (int64, error) {
	return r.inner.Count(ctx)
}

func (r *ResilientStore) Delete(ctx context.Context, id int64) error {
	return r.inner.Delete(ctx, id)
}

func (r *ResilientStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	return r.inner.ExportJSON(ctx, writer)
}

func (r *ResilientStore) ImportJSON(ctx context.Context, reader io.Reader) (int, int, error) {
	return r.inner.ImportJSON(ctx, reader)
}

func (r *ResilientStore) Close() error {
	return r.inner.Close()
}
