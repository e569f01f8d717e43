package parallel_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"

	apperrors "github.com/agbru/blobmerge/internal/errors"
	"github.com/agbru/blobmerge/internal/parallel"
	"github.com/agbru/blobmerge/internal/parallel/mocks"
)

func await(t *testing.T, future <-chan parallel.WorkResult) parallel.WorkResult {
	t.Helper()
	select {
	case res := <-future:
		return res
	case <-time.After(5 * time.Second):
		t.Fatal("future was not resolved")
	}
	return parallel.WorkResult{}
}

func TestPool_InitializeRejectsNonPositiveSize(t *testing.T) {
	t.Parallel()
	p := parallel.NewPool(nil, nil)
	err := p.Initialize(0)
	var cfgErr apperrors.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}

func TestPool_PassThroughKeepsIndex(t *testing.T) {
	t.Parallel()
	p := parallel.NewPool(parallel.PassThrough{}, nil)
	if err := p.Initialize(3); err != nil {
		t.Fatal(err)
	}
	defer p.Shutdown()

	futures := make([]<-chan parallel.WorkResult, 6)
	for i := range futures {
		futures[i] = p.Dispatch(context.Background(), i%3, parallel.WorkUnit{Chunk: []byte{byte(i)}, Index: i})
	}
	for i, f := range futures {
		res := await(t, f)
		if res.Err != nil {
			t.Fatalf("unit %d: %v", i, res.Err)
		}
		if res.Index != i || !bytes.Equal(res.Buffer, []byte{byte(i)}) {
			t.Errorf("unit %d: got index %d buffer %v", i, res.Index, res.Buffer)
		}
	}
}

func TestPool_EmptyChunkIsWellFormed(t *testing.T) {
	t.Parallel()
	p := parallel.NewPool(parallel.PassThrough{}, nil)
	if err := p.Initialize(1); err != nil {
		t.Fatal(err)
	}
	defer p.Shutdown()

	res := await(t, p.Dispatch(context.Background(), 0, parallel.WorkUnit{Index: 4}))
	if res.Err != nil || res.Index != 4 || len(res.Buffer) != 0 {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestPool_TaskErrorIsTagged(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	task := mocks.NewMockTask(ctrl)
	task.EXPECT().Process(gomock.Any(), gomock.Any()).Return(nil, errors.New("bad chunk"))

	p := parallel.NewPool(task, nil)
	if err := p.Initialize(2); err != nil {
		t.Fatal(err)
	}
	defer p.Shutdown()

	res := await(t, p.Dispatch(context.Background(), 1, parallel.WorkUnit{Index: 1}))
	if res.Err == nil || res.Err.Error() != "bad chunk" {
		t.Errorf("expected task error, got %v", res.Err)
	}
	if res.Index != 1 {
		t.Errorf("Index = %d, want 1", res.Index)
	}
	if p.Err() != nil {
		t.Errorf("a returned error is not a pool-level failure, got %v", p.Err())
	}
}

func TestPool_PanicIsRecovered(t *testing.T) {
	t.Parallel()
	p := parallel.NewPool(parallel.TaskFunc(func(context.Context, parallel.WorkUnit) ([]byte, error) {
		panic("out of memory")
	}), nil)
	if err := p.Initialize(1); err != nil {
		t.Fatal(err)
	}
	defer p.Shutdown()

	res := await(t, p.Dispatch(context.Background(), 0, parallel.WorkUnit{Index: 0}))
	if res.Err == nil {
		t.Fatal("expected panic to surface as an error result")
	}
	if p.Err() == nil {
		t.Error("panic should be recorded as a pool-level failure")
	}

	if err := p.Initialize(1); err != nil {
		t.Fatal(err)
	}
	if p.Err() != nil {
		t.Errorf("Initialize should clear pool-level failures, got %v", p.Err())
	}
}

func TestPool_DispatchToDeadWorker(t *testing.T) {
	t.Parallel()
	p := parallel.NewPool(parallel.PassThrough{}, nil)
	if err := p.Initialize(2); err != nil {
		t.Fatal(err)
	}
	p.Shutdown()

	if p.Size() != 0 {
		t.Errorf("Size() after Shutdown = %d, want 0", p.Size())
	}
	res := await(t, p.Dispatch(context.Background(), 0, parallel.WorkUnit{Index: 0}))
	if res.Err == nil {
		t.Error("dispatch after Shutdown should fail")
	}
}

func TestPool_ReinitializeReplacesWorkers(t *testing.T) {
	t.Parallel()
	p := parallel.NewPool(parallel.PassThrough{}, nil)
	if err := p.Initialize(4); err != nil {
		t.Fatal(err)
	}
	if err := p.Initialize(2); err != nil {
		t.Fatal(err)
	}
	defer p.Shutdown()

	if p.Size() != 2 {
		t.Fatalf("Size() = %d, want 2", p.Size())
	}
	if res := await(t, p.Dispatch(context.Background(), 3, parallel.WorkUnit{Index: 3})); res.Err == nil {
		t.Error("worker 3 should no longer exist")
	}
	if res := await(t, p.Dispatch(context.Background(), 1, parallel.WorkUnit{Index: 1})); res.Err != nil {
		t.Errorf("worker 1 should be live: %v", res.Err)
	}
}

func TestPool_CanceledContext(t *testing.T) {
	t.Parallel()
	p := parallel.NewPool(parallel.PassThrough{}, nil)
	if err := p.Initialize(1); err != nil {
		t.Fatal(err)
	}
	defer p.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := await(t, p.Dispatch(ctx, 0, parallel.WorkUnit{Index: 0}))
	if !errors.Is(res.Err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", res.Err)
	}
}
