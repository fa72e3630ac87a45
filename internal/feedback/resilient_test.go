package feedback

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

// fakeStore is a minimal in-memory Store stand-in that can be told to
// fail every Prior call, for exercising the breaker without a real
// backing database.
type fakeStore struct {
	priorErr   error
	priorValue float64
	calls      int
}

func (f *fakeStore) Save(ctx context.Context, record *PriorRecord) error { return nil }
func (f *fakeStore) Get(ctx context.Context, gene, diplotype string) (*PriorRecord, error) {
	return nil, nil
}
func (f *fakeStore) Prior(ctx context.Context, gene, diplotype string) (float64, error) {
	f.calls++
	if f.priorErr != nil {
		return 0, f.priorErr
	}
	return f.priorValue, nil
}
func (f *fakeStore) List(ctx context.Context, limit, offset int) ([]*PriorRecord, error) {
	return nil, nil
}
func (f *fakeStore) Count(ctx context.Context) (int64, error)    { return 0, nil }
func (f *fakeStore) Delete(ctx context.Context, id int64) error  { return nil }
func (f *fakeStore) ExportJSON(ctx context.Context, w io.Writer) error { return nil }
func (f *fakeStore) ImportJSON(ctx context.Context, r io.Reader) (int, int, error) {
	return 0, 0, nil
}
func (f *fakeStore) Close() error { return nil }

func TestResilientStore_PassesThroughOnSuccess(t *testing.T) {
	inner := &fakeStore{priorValue: 0.75}
	r := NewResilientStore(inner)

	prior, err := r.Prior(context.Background(), "CYP2D6", "*4/*4")

	assert.Nil(t, err)
	assert.Equal(t, 0.75, prior)
	assert.Equal(t, 1, inner.calls)
}

// After ReadyToTrip's threshold of 5 consecutive failures, the breaker
// opens and stops calling inner entirely; Prior degrades to the neutral
// prior both before and after the breaker opens, but inner stops being
// invoked once it does.
func TestResilientStore_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	inner := &fakeStore{priorErr: errors.New("store unavailable")}
	r := NewResilientStore(inner)

	for i := 0; i < 5; i++ {
		prior, err := r.Prior(context.Background(), "CYP2D6", "*4/*4")
		assert.Nil(t, err)
		assert.Equal(t, 1.0, prior)
	}
	assert.Equal(t, 5, inner.calls)

	prior, err := r.Prior(context.Background(), "CYP2D6", "*4/*4")
	assert.Nil(t, err)
	assert.Equal(t, 1.0, prior)
	assert.Equal(t, 5, inner.calls, "breaker should short-circuit without calling inner again")
}

// The limiter admits only a burst of 10 calls before the wall clock has
// moved enough to refill a token at 50/s; the first call after the
// burst is used up degrades to the neutral prior without ever reaching
// inner.
func TestResilientStore_LimiterRejectsBeyondBurst(t *testing.T) {
	inner := &fakeStore{priorValue: 0.5}
	r := NewResilientStore(inner)

	for i := 0; i < 10; i++ {
		_, err := r.Prior(context.Background(), "CYP2D6", "*4/*4")
		assert.Nil(t, err)
	}
	callsAfterBurst := inner.calls

	prior, err := r.Prior(context.Background(), "CYP2D6", "*4/*4")

	assert.Nil(t, err)
	assert.Equal(t, 1.0, prior)
	assert.Equal(t, callsAfterBurst, inner.calls, "the call beyond the burst must not reach inner")
}

func TestResilientStore_DelegatesPassthroughMethods(t *testing.T) {
	inner := &fakeStore{}
	r := NewResilientStore(inner)

	_, err := r.List(context.Background(), 10, 0)
	assert.Nil(t, err)
	count, err := r.Count(context.Background())
	assert.Nil(t, err)
	assert.Equal(t, int64(0), count)
	assert.Nil(t, r.Delete(context.Background(), 1))
	assert.Nil(t, r.Close())
}
