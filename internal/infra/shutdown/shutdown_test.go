package shutdown

import (
	"context"
	"errors"
	"sync"
	"syscall"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("os/signal.signal_recv"))
}

func waitResult(t *testing.T, errCh <-chan error) error {
	t.Helper()
	select {
	case err := <-errCh:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("Wait() did not complete in time")
		return nil
	}
}

func TestHandler_Done(t *testing.T) {
	h := NewHandler(5*time.Second, nil)

	select {
	case <-h.Done():
		t.Fatal("Done channel should not be closed initially")
	default:
	}

	h.Trigger()
	h.Trigger()
	if err := h.Wait(); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	select {
	case <-h.Done():
	default:
		t.Error("Done channel should be closed after Wait completes")
	}
}

func TestHandler_ReverseOrder(t *testing.T) {
	h := NewHandler(5*time.Second, nil)

	var mu sync.Mutex
	var order []string
	for _, name := range []string{"storage", "database", "http"} {
		name := name
		h.OnShutdown(name, func(context.Context) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- h.WaitContext(ctx) }()
	cancel()

	if err := waitResult(t, errCh); err != nil {
		t.Fatalf("WaitContext() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{"http", "database", "storage"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestHandler_Signal(t *testing.T) {
	h := NewHandler(5*time.Second, nil)

	called := make(chan struct{}, 1)
	h.OnShutdown("marker", func(context.Context) error {
		called <- struct{}{}
		return nil
	})

	errCh := make(chan error, 1)
	go func() { errCh <- h.Wait() }()

	time.Sleep(50 * time.Millisecond)
	if err := syscall.Kill(syscall.Getpid(), syscall.SIGTERM); err != nil {
		t.Fatal(err)
	}

	if err := waitResult(t, errCh); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	select {
	case <-called:
	default:
		t.Error("hook was not called")
	}
}

func TestHandler_HookErrors(t *testing.T) {
	h := NewHandler(5*time.Second, nil)

	errA := errors.New("flush failed")
	errB := errors.New("close failed")
	ran := 0
	h.OnShutdown("a", func(context.Context) error { ran++; return errA })
	h.OnShutdown("ok", func(context.Context) error { ran++; return nil })
	h.OnShutdown("b", func(context.Context) error { ran++; return errB })

	h.Trigger()
	err := h.Wait()

	if ran != 3 {
		t.Errorf("ran %d hooks, want 3 even after failures", ran)
	}
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Errorf("Wait() error = %v, want both hook errors", err)
	}
}

func TestHandler_Deadline(t *testing.T) {
	h := NewHandler(50*time.Millisecond, nil)

	h.OnShutdown("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	h.Trigger()
	if err := h.Wait(); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() error = %v, want deadline exceeded", err)
	}
}

func TestHandler_ConcurrentOnShutdown(t *testing.T) {
	h := NewHandler(5*time.Second, nil)

	var count int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.OnShutdown("hook", func(context.Context) error {
				mu.Lock()
				count++
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()

	h.Trigger()
	if err := h.Wait(); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if count != 10 {
		t.Errorf("count = %d, want 10", count)
	}
}
