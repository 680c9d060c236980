package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopchat-ai/shopchat/pkg/logging"
)

// Processor is the surface the dispatcher fronts. *Service satisfies it.
type Processor interface {
	ProcessMessage(ctx context.Context, req ProcessRequest) (*Response, error)
}

// Dispatcher is the queue-backed entrypoint the channel handlers call.
// Webhooks that must ack fast enqueue and wait; the queue absorbs bursts and
// lets LocalStack SQS stand in for AWS during development.
type Dispatcher interface {
	ProcessMessage(ctx context.Context, req ProcessRequest) (*Response, error)
	Shutdown(ctx context.Context) error
}

// ErrDispatcherClosed indicates the dispatcher is no longer accepting work.
var ErrDispatcherClosed = errors.New("conversation: dispatcher closed")

type queueClient interface {
	Send(ctx context.Context, body, channel string) error
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]queueMessage, error)
	Delete(ctx context.Context, receiptHandle string) error
}

// queueMessage carries the originating channel out of band so workers can
// tag logs without decoding the body first.
type queueMessage struct {
	ID            string
	Body          string
	Channel       string
	ReceiptHandle string
}

type queuePayload struct {
	ID      string         `json:"id"`
	Message ProcessRequest `json:"message"`
}

type dispatchResult struct {
	response *Response
	err      error
}

const (
	defaultWorkers          = 2
	defaultReceiveWait      = 2  // seconds
	defaultReceiveMax       = 5  // messages
	maxReceiveWaitSeconds   = 20 // SQS limit
	maxReceiveBatchMessages = 10
)

type orchestratorConfig struct {
	workers          int
	receiveWaitSecs  int
	receiveBatchSize int
}

// OrchestratorOption configures the dispatcher.
type OrchestratorOption func(*orchestratorConfig)

// WithWorkerCount overrides the number of queue polling goroutines.
func WithWorkerCount(workers int) OrchestratorOption {
	return func(cfg *orchestratorConfig) {
		if workers > 0 {
			cfg.workers = workers
		}
	}
}

// WithReceiveWaitSeconds sets the long-poll wait time for receive calls.
func WithReceiveWaitSeconds(seconds int) OrchestratorOption {
	return func(cfg *orchestratorConfig) {
		if seconds < 0 {
			return
		}
		if seconds > maxReceiveWaitSeconds {
			seconds = maxReceiveWaitSeconds
		}
		cfg.receiveWaitSecs = seconds
	}
}

// WithReceiveBatchSize overrides how many messages each poll should return.
func WithReceiveBatchSize(size int) OrchestratorOption {
	return func(cfg *orchestratorConfig) {
		if size <= 0 {
			return
		}
		if size > maxReceiveBatchMessages {
			size = maxReceiveBatchMessages
		}
		cfg.receiveBatchSize = size
	}
}

// Orchestrator routes conversation work through a queue before invoking the
// pipeline. Callers block on a per-job channel until a worker delivers the
// result, so the HTTP surface keeps its synchronous contract.
type Orchestrator struct {
	processor Processor
	queue     queueClient
	logger    *logging.Logger

	cfg orchestratorConfig

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	pending sync.Map // jobID -> chan dispatchResult
}

var _ Dispatcher = (*Orchestrator)(nil)

// NewOrchestrator wires a queue-backed dispatcher around the pipeline.
func NewOrchestrator(processor Processor, queue queueClient, logger *logging.Logger, opts ...OrchestratorOption) *Orchestrator {
	if processor == nil {
		panic("conversation: processor cannot be nil")
	}
	if queue == nil {
		panic("conversation: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}

	cfg := orchestratorConfig{
		workers:          defaultWorkers,
		receiveWaitSecs:  defaultReceiveWait,
		receiveBatchSize: defaultReceiveMax,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		processor: processor,
		queue:     queue,
		logger:    logger,
		cfg:       cfg,
		ctx:       ctx,
		cancel:    cancel,
	}

	for i := 0; i < cfg.workers; i++ {
		o.wg.Add(1)
		go o.runWorker(i + 1)
	}

	return o
}

// ProcessMessage enqueues a message and blocks until a worker processes it.
func (o *Orchestrator) ProcessMessage(ctx context.Context, req ProcessRequest) (*Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	jobID := uuid.NewString()
	body, err := json.Marshal(queuePayload{ID: jobID, Message: req})
	if err != nil {
		return nil, fmt.Errorf("conversation: failed to encode job: %w", err)
	}

	resultCh := make(chan dispatchResult, 1)
	o.pending.Store(jobID, resultCh)
	defer o.pending.Delete(jobID)

	if err := o.queue.Send(ctx, string(body), string(req.Channel)); err != nil {
		return nil, fmt.Errorf("conversation: failed to enqueue job: %w", err)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-resultCh:
		return res.response, res.err
	}
}

// Shutdown stops worker goroutines and notifies any pending callers.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.cancel()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
	}

	o.pending.Range(func(key, value any) bool {
		if ch, ok := value.(chan dispatchResult); ok {
			select {
			case ch <- dispatchResult{err: ErrDispatcherClosed}:
			default:
			}
		}
		o.pending.Delete(key)
		return true
	})

	return nil
}

func (o *Orchestrator) runWorker(workerID int) {
	defer o.wg.Done()
	o.logger.Debug("conversation worker started", "worker_id", workerID)

	backoff := time.Second

	for {
		select {
		case <-o.ctx.Done():
			o.logger.Debug("conversation worker stopping", "worker_id", workerID)
			return
		default:
		}

		messages, err := o.queue.Receive(o.ctx, o.cfg.receiveBatchSize, o.cfg.receiveWaitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			o.logger.Error("failed to receive conversation jobs", "error", err, "worker_id", workerID)
			time.Sleep(backoff)
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, msg := range messages {
			o.handleQueueMessage(msg)
		}
	}
}

func (o *Orchestrator) handleQueueMessage(msg queueMessage) {
	deleteMsg := func() {
		deleteCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := o.queue.Delete(deleteCtx, msg.ReceiptHandle); err != nil {
			o.logger.Error("failed to delete conversation job", "error", err)
		}
	}

	var payload queuePayload
	if err := json.Unmarshal([]byte(msg.Body), &payload); err != nil {
		o.logger.Error("failed to decode conversation job", "error", err, "channel", msg.Channel)
		deleteMsg()
		return
	}

	resp, err := o.processor.ProcessMessage(o.ctx, payload.Message)
	deleteMsg()
	o.deliverResult(payload.ID, resp, err)
}

func (o *Orchestrator) deliverResult(jobID string, resp *Response, err error) {
	value, ok := o.pending.Load(jobID)
	if !ok {
		o.logger.Debug("no waiting caller for conversation job", "job_id", jobID)
		return
	}

	ch, ok := value.(chan dispatchResult)
	if !ok {
		o.logger.Error("dispatcher pending map corrupted", "job_id", jobID)
		o.pending.Delete(jobID)
		return
	}

	select {
	case ch <- dispatchResult{response: resp, err: err}:
	default:
	}
}
