// Package queue carries circuit evaluation jobs between submitters and
// workers.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Common errors.
var (
	ErrQueueEmpty     = errors.New("queue is empty")
	ErrJobNotFound    = errors.New("job not found")
	ErrConnectionLost = errors.New("queue connection lost")
	ErrClosed         = errors.New("queue closed")
)

// JobStatus represents the state of a job.
type JobStatus uint8

const (
	StatusPending JobStatus = iota
	StatusProcessing
	StatusCompleted
	StatusFailed
)

func (s JobStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusProcessing:
		return "processing"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("JobStatus(%d)", uint8(s))
	}
}

// JobKind selects the operation a worker runs.
type JobKind string

const (
	// KindExecute runs Circuit over the input register file.
	KindExecute JobKind = "execute"
	// KindDecompose splits every input value into encrypted bits.
	KindDecompose JobKind = "decompose"
	// KindRecompose packs consecutive groups of bits into values under
	// TargetEncoding.
	KindRecompose JobKind = "recompose"
)

// Job is a request to evaluate one operation over a stored ciphertext vector.
type Job struct {
	ID             string    `json:"id"`
	Kind           JobKind   `json:"kind"`
	Circuit        string    `json:"circuit,omitempty"`
	InputHandle    string    `json:"input_handle"`
	TargetEncoding []byte    `json:"target_encoding,omitempty"`
	ResultHandle   string    `json:"result_handle,omitempty"`
	Status         JobStatus `json:"status"`
	Error          string    `json:"error,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Queue defines the interface for job queue operations.
type Queue interface {
	// Push adds a job to the queue.
	Push(ctx context.Context, job *Job) error
	// Pop blocks until the next job is available and removes it from the queue.
	Pop(ctx context.Context) (*Job, error)
	// Update updates job status.
	Update(ctx context.Context, job *Job) error
	// Get retrieves a job by ID.
	Get(ctx context.Context, id string) (*Job, error)
	// Close closes the queue.
	Close() error
}

// jobTTL bounds how long job records are kept.
const jobTTL = 24 * time.Hour

// RedisQueue implements Queue using Redis.
type RedisQueue struct {
	client    *redis.Client
	queueKey  string
	jobPrefix string
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisQueue creates a new Redis-backed queue.
func NewRedisQueue(cfg RedisConfig, queueName string) (*RedisQueue, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisQueue{
		client:    client,
		queueKey:  "lincircuit:queue:" + queueName,
		jobPrefix: "lincircuit:job:",
	}, nil
}

func (q *RedisQueue) Push(ctx context.Context, job *Job) error {
	job.CreatedAt = time.Now()
	job.UpdatedAt = job.CreatedAt
	job.Status = StatusPending

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	pipe := q.client.Pipeline()
	pipe.Set(ctx, q.jobPrefix+job.ID, data, jobTTL)
	pipe.LPush(ctx, q.queueKey, job.ID)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("push job: %w", err)
	}
	return nil
}

func (q *RedisQueue) Pop(ctx context.Context) (*Job, error) {
	result, err := q.client.BRPop(ctx, 0, q.queueKey).Result()
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		if errors.Is(err, redis.ErrClosed) {
			return nil, ErrConnectionLost
		}
		return nil, fmt.Errorf("pop job: %w", err)
	}
	if len(result) < 2 {
		return nil, ErrQueueEmpty
	}
	return q.Get(ctx, result[1])
}

func (q *RedisQueue) Update(ctx context.Context, job *Job) error {
	job.UpdatedAt = time.Now()

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.Set(ctx, q.jobPrefix+job.ID, data, jobTTL).Err(); err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return nil
}

func (q *RedisQueue) Get(ctx context.Context, id string) (*Job, error) {
	data, err := q.client.Get(ctx, q.jobPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("get job: %w", err)
	}

	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("unmarshal job: %w", err)
	}
	return &job, nil
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}

// MemoryQueue is an in-process Queue for single-node runs and tests.
type MemoryQueue struct {
	mu      sync.Mutex
	jobs    map[string]Job
	pending chan string
	closed  chan struct{}
	once    sync.Once
}

// NewMemoryQueue creates a queue holding at most capacity pending jobs.
func NewMemoryQueue(capacity int) *MemoryQueue {
	return &MemoryQueue{
		jobs:    make(map[string]Job),
		pending: make(chan string, capacity),
		closed:  make(chan struct{}),
	}
}

func (q *MemoryQueue) Push(ctx context.Context, job *Job) error {
	select {
	case <-q.closed:
		return ErrClosed
	default:
	}

	job.CreatedAt = time.Now()
	job.UpdatedAt = job.CreatedAt
	job.Status = StatusPending

	// The record goes in before the ID is queued so a Pop never sees an
	// unknown ID. A failed send restores whatever was there before.
	q.mu.Lock()
	prev, existed := q.jobs[job.ID]
	q.jobs[job.ID] = *job
	q.mu.Unlock()

	var err error
	select {
	case q.pending <- job.ID:
		return nil
	case <-q.closed:
		err = ErrClosed
	case <-ctx.Done():
		err = ctx.Err()
	}

	q.mu.Lock()
	if existed {
		q.jobs[job.ID] = prev
	} else {
		delete(q.jobs, job.ID)
	}
	q.mu.Unlock()
	return err
}

func (q *MemoryQueue) Pop(ctx context.Context) (*Job, error) {
	select {
	case id := <-q.pending:
		return q.Get(ctx, id)
	case <-q.closed:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *MemoryQueue) Update(ctx context.Context, job *Job) error {
	job.UpdatedAt = time.Now()

	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.jobs[job.ID]; !ok {
		return ErrJobNotFound
	}
	q.jobs[job.ID] = *job
	return nil
}

func (q *MemoryQueue) Get(ctx context.Context, id string) (*Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return &job, nil
}

func (q *MemoryQueue) Close() error {
	q.once.Do(func() { close(q.closed) })
	return nil
}
