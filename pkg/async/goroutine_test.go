package async

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/campuskit/campus/pkg/observability"
)

// syncWriter serializes writes so the test can read the buffer safely.
type syncWriter struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (w *syncWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}

func (w *syncWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}

func TestSafeGoRunsTask(t *testing.T) {
	logger := observability.NewLogger(observability.InfoLevel, &syncWriter{})
	done := make(chan struct{})

	SafeGo(context.Background(), logger, time.Second, "test task", func(ctx context.Context) error {
		close(done)
		return nil
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not run")
	}
}

func TestSafeGoRecoversPanic(t *testing.T) {
	out := &syncWriter{}
	logger := observability.NewLogger(observability.InfoLevel, out)
	done := make(chan struct{})

	SafeGo(context.Background(), logger, time.Second, "panicky task", func(ctx context.Context) error {
		defer close(done)
		panic("boom")
	})

	<-done
	// give the deferred recovery a moment to log
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if strings.Contains(out.String(), "panic in background task") {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("panic was not logged: %s", out.String())
}

func TestSafeGoLogsErrors(t *testing.T) {
	out := &syncWriter{}
	logger := observability.NewLogger(observability.InfoLevel, out)
	done := make(chan struct{})

	SafeGo(context.Background(), logger, time.Second, "failing task", func(ctx context.Context) error {
		defer close(done)
		return errors.New("publish failed")
	})

	<-done
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if strings.Contains(out.String(), "publish failed") {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("error was not logged: %s", out.String())
}
