package conversation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopchat-ai/shopchat/pkg/logging"
)

type fakeProcessor struct {
	mu      sync.Mutex
	resp    *Response
	err     error
	lastReq ProcessRequest
}

func (f *fakeProcessor) ProcessMessage(ctx context.Context, req ProcessRequest) (*Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastReq = req
	return f.resp, f.err
}

func (f *fakeProcessor) last() ProcessRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastReq
}

func newTestOrchestrator(t *testing.T, processor Processor) *Orchestrator {
	t.Helper()
	o := NewOrchestrator(
		processor,
		NewMemoryQueue(8),
		logging.Default(),
		WithWorkerCount(1),
		WithReceiveBatchSize(1),
		WithReceiveWaitSeconds(0),
	)
	t.Cleanup(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = o.Shutdown(shutdownCtx)
	})
	return o
}

func TestOrchestrator_ProcessMessage(t *testing.T) {
	processor := &fakeProcessor{resp: &Response{Message: "hello", Intent: IntentGreeting}}
	o := newTestOrchestrator(t, processor)

	req := ProcessRequest{MerchantID: "m-1", Channel: ChannelWidget, SessionID: "s-1", Message: "hi"}
	resp, err := o.ProcessMessage(context.Background(), req)
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if resp.Message != "hello" {
		t.Fatalf("message = %q, want hello", resp.Message)
	}
	if got := processor.last(); got.MerchantID != "m-1" || got.Message != "hi" {
		t.Fatalf("processor saw %+v", got)
	}
}

func TestOrchestrator_PropagatesProcessorError(t *testing.T) {
	processor := &fakeProcessor{err: ErrMerchantNotFound}
	o := newTestOrchestrator(t, processor)

	_, err := o.ProcessMessage(context.Background(), ProcessRequest{MerchantID: "ghost", Message: "hi"})
	if !errors.Is(err, ErrMerchantNotFound) {
		t.Fatalf("err = %v, want ErrMerchantNotFound", err)
	}
}

func TestOrchestrator_CallerContextCancellation(t *testing.T) {
	block := make(chan struct{})
	processor := &blockingProcessor{block: block}
	o := newTestOrchestrator(t, processor)
	defer close(block)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := o.ProcessMessage(ctx, ProcessRequest{MerchantID: "m-1", Message: "hi"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}

func TestOrchestrator_ShutdownRejectsPending(t *testing.T) {
	block := make(chan struct{})
	processor := &blockingProcessor{block: block}
	o := newTestOrchestrator(t, processor)
	defer close(block)

	errCh := make(chan error, 1)
	go func() {
		_, err := o.ProcessMessage(context.Background(), ProcessRequest{MerchantID: "m-1", Message: "hi"})
		errCh <- err
	}()

	// Let the job reach the worker before shutting down.
	time.Sleep(50 * time.Millisecond)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_ = o.Shutdown(shutdownCtx)

	select {
	case err := <-errCh:
		if err == nil {
			t.Fatal("pending caller got a nil error after shutdown")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("pending caller never released")
	}
}

type blockingProcessor struct {
	block chan struct{}
}

func (b *blockingProcessor) ProcessMessage(ctx context.Context, req ProcessRequest) (*Response, error) {
	select {
	case <-b.block:
		return &Response{Message: "late"}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestMemoryQueue_CarriesChannel(t *testing.T) {
	q := NewMemoryQueue(1)
	if err := q.Send(context.Background(), `{"id":"job-1"}`, "messenger"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	msgs, err := q.Receive(context.Background(), 1, 0)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("messages = %d, want 1", len(msgs))
	}
	if msgs[0].Channel != "messenger" {
		t.Fatalf("channel = %q, want messenger", msgs[0].Channel)
	}
}
