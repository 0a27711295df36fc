package mutation

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/hirewire/internal/logger"
	"github.com/spigell/hirewire/internal/metrics"
	"github.com/spigell/hirewire/internal/notify"
)

var ErrClosed = errors.New("coordinator closed")

const (
	defaultFailureTitle   = "Not Saved"
	defaultFailureMessage = "Your change was kept here but could not be saved. Please try again."
)

// Notifier receives the outcome notices of mutations.
type Notifier interface {
	Success(title, message string) notify.Notice
	Error(title, message string) notify.Notice
}

// Message is the text of a notice. An empty success title suppresses the
// success notice.
type Message struct {
	Title   string
	Message string
}

// Op describes one optimistic mutation.
type Op[T any] struct {
	Collection *Collection[T]
	Value      T
	// Persist writes the value remotely and returns the stored version.
	Persist func(ctx context.Context, v T) (T, error)
	Success Message
	Failure Message
}

// Pending tracks the remote half of a mutation.
type Pending struct {
	Key string
	Rev uint64

	done chan struct{}
	err  error
}

func (p *Pending) Done() <-chan struct{} { return p.done }

// Err is the persistence error. It is only meaningful after Done is closed.
func (p *Pending) Err() error {
	select {
	case <-p.done:
		return p.err
	default:
		return nil
	}
}

// Wait blocks until the mutation settles or ctx is done.
func (p *Pending) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return p.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Coordinator runs the remote half of optimistic mutations.
type Coordinator struct {
	logger   *zap.Logger
	notifier Notifier

	mu       sync.Mutex
	closed   bool
	inflight sync.WaitGroup
}

func NewCoordinator(log *zap.Logger, notifier Notifier) *Coordinator {
	return &Coordinator{
		logger:   logger.ForComponent(logger.OrNop(log), "mutation"),
		notifier: notifier,
	}
}

// Submit applies op locally and persists it in the background. The local
// write is visible when Submit returns. A failed write stays in the
// collection tagged unsynced.
func Submit[T any](c *Coordinator, op Op[T]) *Pending {
	key := op.Collection.Key(op.Value)
	p := &Pending{Key: key, done: make(chan struct{})}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		p.err = ErrClosed
		close(p.done)
		return p
	}
	p.Rev = op.Collection.Upsert(op.Value)
	c.inflight.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.inflight.Done()
		defer close(p.done)
		p.err = run(c, op, key, p.Rev)
	}()

	return p
}

func persistValue[T any](op Op[T]) (T, error) {
	if op.Persist == nil {
		return op.Value, nil
	}
	return op.Persist(context.Background(), op.Value)
}

func run[T any](c *Coordinator, op Op[T], key string, rev uint64) error {
	collection := op.Collection.Name()
	log := c.logger.With(zap.String("collection", collection), zap.String("key", key))

	started := time.Now()
	stored, err := persistValue(op)
	metrics.MutationDuration.WithLabelValues(collection).Observe(time.Since(started).Seconds())

	if err != nil {
		if !op.Collection.tag(key, rev, StateUnsynced, nil, err) {
			log.Debug("newer local write, unsynced tag skipped")
		}
		metrics.Mutations.WithLabelValues(collection, metrics.OutcomeUnsynced).Inc()
		log.Error("change not persisted, keeping local state", zap.Error(err))

		title := op.Failure.Title
		if title == "" {
			title = defaultFailureTitle
		}
		message := op.Failure.Message
		if message == "" {
			message = defaultFailureMessage
		}
		c.notify().Error(title, message)
		return err
	}

	if !op.Collection.tag(key, rev, StateConfirmed, &stored, nil) {
		log.Debug("newer local write, confirmation skipped")
	}
	metrics.Mutations.WithLabelValues(collection, metrics.OutcomeConfirmed).Inc()
	log.Debug("change persisted")

	if op.Success.Title != "" {
		c.notify().Success(op.Success.Title, op.Success.Message)
	}
	return nil
}

func (c *Coordinator) notify() Notifier {
	if c.notifier == nil {
		return nopNotifier{}
	}
	return c.notifier
}

// Wait blocks until every submitted mutation has settled.
func (c *Coordinator) Wait() {
	c.inflight.Wait()
}

// Close refuses new mutations and waits for the ones in flight.
func (c *Coordinator) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.inflight.Wait()
}

type nopNotifier struct{}

func (nopNotifier) Success(title, message string) notify.Notice {
	return notify.Notice{Severity: notify.SeveritySuccess, Title: title, Message: message}
}

func (nopNotifier) Error(title, message string) notify.Notice {
	return notify.Notice{Severity: notify.SeverityError, Title: title, Message: message}
}
