// Package worker runs queued circuit and cast jobs against ciphertext storage.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/luxfi/lincircuit"
	"github.com/luxfi/lincircuit/internal/queue"
	"github.com/luxfi/lincircuit/internal/storage"
)

// Config holds worker pool settings.
type Config struct {
	// Workers is the number of goroutines popping jobs.
	Workers int
	// PopBackoff is the pause after a failed Pop before retrying.
	PopBackoff time.Duration
	// ShutdownTimeout bounds how long Stop waits for in-flight jobs.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns the settings used by the lincircuit command.
func DefaultConfig() Config {
	return Config{
		Workers:         4,
		PopBackoff:      time.Second,
		ShutdownTimeout: 30 * time.Second,
	}
}

// Pool manages a pool of job workers.
type Pool struct {
	cfg       Config
	queue     queue.Queue
	storage   storage.Storage
	interp    *lincircuit.Interpreter
	converter *lincircuit.Converter

	wg           sync.WaitGroup
	cancel       context.CancelFunc
	running      atomic.Bool
	successCount atomic.Int64
	failureCount atomic.Int64
}

// NewPool creates a pool evaluating with eval. Named circuits resolve through
// loader.
func NewPool(cfg Config, q queue.Queue, store storage.Storage, eval lincircuit.Evaluator, loader lincircuit.Loader) (*Pool, error) {
	if cfg.Workers <= 0 {
		return nil, fmt.Errorf("invalid worker count %d", cfg.Workers)
	}
	converter, err := lincircuit.NewConverter(eval)
	if err != nil {
		return nil, err
	}
	return &Pool{
		cfg:       cfg,
		queue:     q,
		storage:   store,
		interp:    lincircuit.NewInterpreter(eval, loader),
		converter: converter,
	}, nil
}

// SuccessCount returns the number of completed jobs.
func (p *Pool) SuccessCount() int64 { return p.successCount.Load() }

// FailureCount returns the number of failed jobs.
func (p *Pool) FailureCount() int64 { return p.failureCount.Load() }

// Start starts the worker pool.
func (p *Pool) Start(ctx context.Context) error {
	if !p.running.CompareAndSwap(false, true) {
		return errors.New("pool already running")
	}

	ctx, p.cancel = context.WithCancel(ctx)

	log.Printf("Starting %d workers", p.cfg.Workers)
	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
	return nil
}

// Stop cancels the workers and waits for in-flight jobs.
func (p *Pool) Stop() error {
	if !p.running.Load() {
		return nil
	}

	log.Println("Stopping worker pool...")
	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("Worker pool stopped")
	case <-time.After(p.cfg.ShutdownTimeout):
		log.Println("Shutdown timeout exceeded")
		return errors.New("shutdown timeout")
	}

	p.running.Store(false)
	return nil
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	log.Printf("Worker %d started", id)

	for {
		select {
		case <-ctx.Done():
			log.Printf("Worker %d stopping", id)
			return
		default:
		}

		job, err := p.queue.Pop(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, queue.ErrClosed) {
				return
			}
			log.Printf("Worker %d: failed to pop job: %v", id, err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(p.cfg.PopBackoff):
			}
			continue
		}

		p.processJob(ctx, id, job)
	}
}

func (p *Pool) processJob(ctx context.Context, workerID int, job *queue.Job) {
	log.Printf("Worker %d: processing job %s (kind=%s)", workerID, job.ID, job.Kind)

	job.Status = queue.StatusProcessing
	if err := p.queue.Update(ctx, job); err != nil {
		log.Printf("Worker %d: failed to update job status: %v", workerID, err)
	}

	handle, err := p.Run(ctx, job)
	if err != nil {
		job.Status = queue.StatusFailed
		job.Error = err.Error()
		if err := p.queue.Update(ctx, job); err != nil {
			log.Printf("Worker %d: failed to update job status: %v", workerID, err)
		}
		p.failureCount.Add(1)
		log.Printf("Worker %d: job %s failed: %v", workerID, job.ID, err)
		return
	}

	job.Status = queue.StatusCompleted
	job.ResultHandle = string(handle)
	if err := p.queue.Update(ctx, job); err != nil {
		log.Printf("Worker %d: failed to update job result: %v", workerID, err)
	}

	p.successCount.Add(1)
	log.Printf("Worker %d: job %s completed", workerID, job.ID)
}

// Run executes one job synchronously and stores its result vector.
func (p *Pool) Run(ctx context.Context, job *queue.Job) (storage.Handle, error) {
	inputData, err := p.storage.Load(ctx, storage.Handle(job.InputHandle))
	if err != nil {
		return "", fmt.Errorf("load input: %w", err)
	}
	inputs, err := lincircuit.UnmarshalCiphertexts(inputData)
	if err != nil {
		return "", fmt.Errorf("unmarshal input: %w", err)
	}

	var result []*lincircuit.Ciphertext
	switch job.Kind {
	case queue.KindExecute:
		result, err = p.interp.ExecuteNamed(job.Circuit, inputs)
	case queue.KindDecompose:
		result, err = p.decompose(job, inputs)
	case queue.KindRecompose:
		result, err = p.recompose(job, inputs)
	default:
		err = fmt.Errorf("unsupported job kind %q", job.Kind)
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", job.Kind, err)
	}

	resultData, err := lincircuit.MarshalCiphertexts(result)
	if err != nil {
		return "", fmt.Errorf("marshal result: %w", err)
	}
	handle, err := p.storage.Store(ctx, resultData)
	if err != nil {
		return "", fmt.Errorf("store result: %w", err)
	}
	return handle, nil
}

func targetEncoding(job *queue.Job) (lincircuit.Encoding, error) {
	if len(job.TargetEncoding) == 0 {
		return lincircuit.NewBooleanEncoding(), nil
	}
	var enc lincircuit.Encoding
	if err := enc.UnmarshalBinary(job.TargetEncoding); err != nil {
		return lincircuit.Encoding{}, fmt.Errorf("target encoding: %w", err)
	}
	return enc, nil
}

// decompose splits every input into its bits and concatenates them.
func (p *Pool) decompose(job *queue.Job, inputs []*lincircuit.Ciphertext) ([]*lincircuit.Ciphertext, error) {
	target, err := targetEncoding(job)
	if err != nil {
		return nil, err
	}
	var out []*lincircuit.Ciphertext
	for i, ct := range inputs {
		bits, err := p.converter.Decompose(ct, target)
		if err != nil {
			return nil, fmt.Errorf("value %d: %w", i, err)
		}
		out = append(out, bits...)
	}
	return out, nil
}

// recompose packs consecutive groups of bits into values.
func (p *Pool) recompose(job *queue.Job, inputs []*lincircuit.Ciphertext) ([]*lincircuit.Ciphertext, error) {
	if len(job.TargetEncoding) == 0 {
		return nil, fmt.Errorf("%w: recompose needs a target encoding", lincircuit.ErrInvalidEncoding)
	}
	target, err := targetEncoding(job)
	if err != nil {
		return nil, err
	}
	if len(inputs)%lincircuit.RecomposeWidth != 0 {
		return nil, fmt.Errorf("%w: %d bits do not form groups of %d",
			lincircuit.ErrArityMismatch, len(inputs), lincircuit.RecomposeWidth)
	}
	out := make([]*lincircuit.Ciphertext, 0, len(inputs)/lincircuit.RecomposeWidth)
	for i := 0; i < len(inputs); i += lincircuit.RecomposeWidth {
		ct, err := p.converter.Recompose(inputs[i:i+lincircuit.RecomposeWidth], target)
		if err != nil {
			return nil, fmt.Errorf("group %d: %w", i/lincircuit.RecomposeWidth, err)
		}
		out = append(out, ct)
	}
	return out, nil
}
