package pipeline

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/agbru/blobmerge/internal/errors"
	"github.com/agbru/blobmerge/internal/ingest"
	"github.com/agbru/blobmerge/internal/merge"
	"github.com/agbru/blobmerge/internal/metrics"
	"github.com/agbru/blobmerge/internal/parallel"
	"github.com/agbru/blobmerge/internal/payload"
	"github.com/agbru/blobmerge/internal/progress"
)

func sources(carrier, cargo []byte) (ingest.Source, ingest.Source) {
	return ingest.NewBytesSource("img.jpg", "image/jpeg", carrier),
		ingest.NewBytesSource("data.rar", "application/x-rar-compressed", cargo)
}

type failingSource struct{ ingest.Source }

func (failingSource) ReadAt([]byte, int64) (int, error) { return 0, errors.New("disk gone") }

type recorder struct {
	mu     sync.Mutex
	values []float64
}

func (r *recorder) Report(v float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values = append(r.values, v)
}

func TestRun_ConcreteScenario(t *testing.T) {
	t.Parallel()
	carrier := []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	cargo := []byte{100, 101, 102, 103, 104, 105}
	want := append(append([]byte{}, carrier...), cargo...)

	p := New(nil, nil)
	defer p.Close()

	for _, chunked := range []bool{false, true} {
		c, g := sources(carrier, cargo)
		out, err := p.Run(context.Background(), c, g, Options{
			Order:     payload.Append,
			Chunked:   chunked,
			ChunkSize: 4,
			PoolSize:  3,
		})
		require.NoError(t, err)
		assert.Equal(t, want, out, "chunked=%v", chunked)
	}
}

func TestRun_ChunkedMatchesDirect(t *testing.T) {
	t.Parallel()
	carrier := bytes.Repeat([]byte("carrier-"), 300)
	cargo := bytes.Repeat([]byte("cargo!"), 1000)

	p := New(nil, nil)
	defer p.Close()

	for _, order := range []payload.Order{payload.Append, payload.Prepend} {
		for _, pool := range []int{1, 2, 7, 16} {
			c, g := sources(carrier, cargo)
			out, err := p.Run(context.Background(), c, g, Options{
				Order:     order,
				Chunked:   true,
				ChunkSize: 512,
				PoolSize:  pool,
			})
			require.NoError(t, err)
			want := merge.Direct(payload.Record{Data: carrier}, payload.Record{Data: cargo}, order)
			assert.Equal(t, want, out, "order=%s pool=%d", order, pool)
			assert.Equal(t, pool, p.pool.Size())
		}
	}
}

func TestRun_ProgressReachesCompletion(t *testing.T) {
	t.Parallel()
	scale := progress.NewScale(Complete)
	rec := &recorder{}
	sink := progress.SinkFunc(func(v float64) {
		scale.Report(v)
		rec.Report(v)
	})

	p := New(nil, nil)
	defer p.Close()
	c, g := sources(bytes.Repeat([]byte{1}, 4096), bytes.Repeat([]byte{2}, 8192))
	_, err := p.Run(context.Background(), c, g, Options{
		Chunked:   true,
		ChunkSize: 1024,
		PoolSize:  4,
		Progress:  sink,
	})
	require.NoError(t, err)
	assert.Equal(t, Complete, scale.Value())

	rec.mu.Lock()
	defer rec.mu.Unlock()
	for _, v := range rec.values {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, Complete)
	}
}

func TestRun_ReadFailure(t *testing.T) {
	t.Parallel()
	c, g := sources([]byte("abc"), []byte("def"))
	p := New(nil, nil)
	defer p.Close()

	for _, chunked := range []bool{false, true} {
		_, err := p.Run(context.Background(), c, failingSource{g}, Options{Chunked: chunked, PoolSize: 2})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "read files: ")

		var readErr apperrors.ReadError
		require.ErrorAs(t, err, &readErr)
		assert.Equal(t, "data.rar", readErr.Name)
	}
}

func TestRun_FailureThenRecovery(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	task := parallel.TaskFunc(func(_ context.Context, unit parallel.WorkUnit) ([]byte, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("boom")
		}
		return unit.Chunk, nil
	})
	reg := metrics.NewRecorder()
	p := newPipeline(nil, reg, task)
	defer p.Close()

	carrier := bytes.Repeat([]byte{7}, 64)
	cargo := bytes.Repeat([]byte{9}, 32)
	opts := Options{Order: payload.Prepend, Chunked: true, ChunkSize: 16, PoolSize: 1}

	c, g := sources(carrier, cargo)
	_, err := p.Run(context.Background(), c, g, opts)
	require.Error(t, err)
	var workerErr apperrors.WorkerError
	require.ErrorAs(t, err, &workerErr)
	assert.True(t, p.stale)

	out, err := p.Run(context.Background(), c, g, opts)
	require.NoError(t, err)
	assert.Equal(t, append(append([]byte{}, cargo...), carrier...), out)
	assert.False(t, p.stale)
}

func TestRun_InvalidPoolSize(t *testing.T) {
	t.Parallel()
	p := New(nil, nil)
	defer p.Close()
	c, g := sources([]byte("a"), []byte("b"))
	_, err := p.Run(context.Background(), c, g, Options{Chunked: true, PoolSize: 0})
	var cfgErr apperrors.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestRun_Canceled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := New(nil, nil)
	defer p.Close()
	c, g := sources(bytes.Repeat([]byte{1}, 100), bytes.Repeat([]byte{2}, 100))
	_, err := p.Run(ctx, c, g, Options{Chunked: true, ChunkSize: 10, PoolSize: 2})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_EmptySides(t *testing.T) {
	t.Parallel()
	p := New(nil, nil)
	defer p.Close()

	c, g := sources(nil, []byte("only cargo"))
	out, err := p.Run(context.Background(), c, g, Options{Chunked: true, PoolSize: 4})
	require.NoError(t, err)
	assert.Equal(t, "only cargo", string(out))

	c, g = sources([]byte("only carrier"), nil)
	out, err = p.Run(context.Background(), c, g, Options{Chunked: false})
	require.NoError(t, err)
	assert.Equal(t, "only carrier", string(out))
}

func TestMergeOutcome_Strategy(t *testing.T) {
	t.Parallel()
	p := New(nil, nil)
	defer p.Close()
	carrier := payload.Record{Name: "img.jpg", Data: []byte("0123456789")}
	cargo := payload.Record{Name: "data.rar", Data: []byte("Rar!..")}

	tests := []struct {
		name    string
		carrier payload.Record
		opts    Options
		want    merge.Outcome
	}{
		{"whole file", carrier, Options{}, merge.Outcome{Strategy: metrics.StrategyDirect}},
		{"chunked on pool", carrier, Options{Chunked: true, PoolSize: 4}, merge.Outcome{Strategy: metrics.StrategyParallel, Units: 4}},
		{"chunked below threshold", carrier, Options{Chunked: true, PoolSize: 4, ParallelThreshold: 1 << 20}, merge.Outcome{Strategy: metrics.StrategyDirect}},
		{"chunked empty carrier", payload.Record{Name: "img.jpg"}, Options{Chunked: true, PoolSize: 4}, merge.Outcome{Strategy: metrics.StrategyDirect}},
	}
	for _, tt := range tests {
		out, outcome, err := p.MergeOutcome(context.Background(), tt.carrier, cargo, tt.opts)
		require.NoError(t, err, tt.name)
		assert.Equal(t, tt.want, outcome, tt.name)
		assert.Equal(t, merge.Direct(tt.carrier, cargo, payload.Append), out, tt.name)
	}
}
