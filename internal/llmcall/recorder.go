package llmcall

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jackzampolin/claimdoc/internal/extract"
	"github.com/jackzampolin/claimdoc/internal/providers"
)

// Sink persists batches of calls.
type Sink interface {
	RecordLLMCalls(ctx context.Context, calls []*Call) error
}

// RecorderConfig configures a Recorder.
type RecorderConfig struct {
	Sink          Sink
	BatchSize     int           // Flush after N calls (default: 50)
	FlushInterval time.Duration // Or after duration (default: 2s)
	QueueSize     int           // Buffer size (default: 500)
	Logger        *slog.Logger
}

// Recorder handles fire-and-forget call recording. Calls are queued and
// written to the sink in batches by a single background goroutine.
type Recorder struct {
	sink   Sink
	logger *slog.Logger

	batchSize     int
	flushInterval time.Duration

	queue   chan *Call
	flushCh chan struct{}
	batch   []*Call

	mu       sync.Mutex
	started  bool
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewRecorder creates a recorder. A nil sink yields a recorder that drops
// every call.
func NewRecorder(cfg RecorderConfig) *Recorder {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 2 * time.Second
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 500
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Recorder{
		sink:          cfg.Sink,
		logger:        cfg.Logger,
		batchSize:     cfg.BatchSize,
		flushInterval: cfg.FlushInterval,
		queue:         make(chan *Call, cfg.QueueSize),
		flushCh:       make(chan struct{}, 1),
		batch:         make([]*Call, 0, cfg.BatchSize),
	}
}

// Start begins processing queued calls.
func (r *Recorder) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started || r.sink == nil {
		return
	}
	r.started = true
	r.wg.Add(1)
	go r.run()
}

// Stop flushes remaining calls and waits for the batcher to exit.
func (r *Recorder) Stop() {
	r.stopOnce.Do(func() {
		r.mu.Lock()
		started := r.started
		r.started = false
		close(r.queue)
		r.mu.Unlock()
		if started {
			r.wg.Wait()
		}
	})
}

// Flush asks the batcher to write its pending batch now.
func (r *Recorder) Flush() {
	select {
	case r.flushCh <- struct{}{}:
	default:
		// Flush already pending
	}
}

// Record queues a call. It never blocks: when the queue is full or the
// recorder is stopped the call is dropped with a warning.
func (r *Recorder) Record(call *Call) {
	if r == nil || r.sink == nil || call == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started {
		r.logger.Warn("llm call recorder not running, dropping call", "page", call.Page)
		return
	}
	select {
	case r.queue <- call:
	default:
		r.logger.Warn("llm call queue full, dropping call", "page", call.Page)
	}
}

// Observe converts a chat result into a Call using the page and extraction
// info carried on ctx. Its signature matches providers.Vision.Observer.
func (r *Recorder) Observe(ctx context.Context, res *providers.ChatResult) {
	if r == nil || res == nil {
		return
	}
	opts := RecordOptions{ExtractionID: ExtractionIDFrom(ctx)}
	if info, ok := extract.PageInfoFrom(ctx); ok {
		opts.Page = info.Page
		opts.PromptKey = info.PromptKey
		opts.PromptHash = info.PromptHash
	}
	r.Record(FromChatResult(res, opts))
}

func (r *Recorder) run() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case call, ok := <-r.queue:
			if !ok {
				r.flush()
				return
			}
			r.batch = append(r.batch, call)
			if len(r.batch) >= r.batchSize {
				r.flush()
			}
		case <-ticker.C:
			r.flush()
		case <-r.flushCh:
			r.flush()
		}
	}
}

func (r *Recorder) flush() {
	if len(r.batch) == 0 {
		return
	}
	calls := r.batch
	r.batch = make([]*Call, 0, r.batchSize)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := r.sink.RecordLLMCalls(ctx, calls); err != nil {
		r.logger.Warn("failed to record llm calls", "count", len(calls), "error", err)
		return
	}
	r.logger.Debug("recorded llm calls", "count", len(calls))
}
