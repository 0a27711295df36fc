package notify

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/hirewire/internal/logger"
	"github.com/spigell/hirewire/internal/metrics"
)

type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
	SeverityInfo    Severity = "info"
)

const DefaultTTL = 5 * time.Second

// Notice is a transient, dismissible message for the user.
type Notice struct {
	ID       string
	Severity Severity
	Title    string
	Message  string
	At       time.Time
}

func (n Notice) String() string {
	if n.Message == "" {
		return n.Title
	}
	return fmt.Sprintf("%s: %s", n.Title, n.Message)
}

// Center keeps the notices that are still on screen.
type Center struct {
	logger *zap.Logger
	ttl    time.Duration
	now    func() time.Time

	mu          sync.Mutex
	notices     []Notice
	subscribers map[int]func(Notice)
	nextID      int
}

// NewCenter returns a center whose notices expire after ttl. A zero ttl
// keeps notices until they are dismissed.
func NewCenter(log *zap.Logger, ttl time.Duration) *Center {
	return &Center{
		logger:      logger.ForComponent(logger.OrNop(log), "notify"),
		ttl:         ttl,
		now:         time.Now,
		subscribers: make(map[int]func(Notice)),
	}
}

func (c *Center) Success(title, message string) Notice {
	return c.Notify(SeveritySuccess, title, message)
}

func (c *Center) Error(title, message string) Notice {
	return c.Notify(SeverityError, title, message)
}

func (c *Center) Info(title, message string) Notice {
	return c.Notify(SeverityInfo, title, message)
}

// Notify records a notice and hands it to every subscriber.
func (c *Center) Notify(severity Severity, title, message string) Notice {
	n := Notice{
		ID:       uuid.NewString(),
		Severity: severity,
		Title:    title,
		Message:  message,
		At:       c.now(),
	}

	c.mu.Lock()
	c.prune()
	c.notices = append(c.notices, n)
	subs := make([]func(Notice), 0, len(c.subscribers))
	for _, fn := range c.subscribers {
		subs = append(subs, fn)
	}
	c.mu.Unlock()

	metrics.Notifications.WithLabelValues(string(severity)).Inc()
	c.logger.Debug("notice", zap.String("severity", string(severity)), zap.String("title", title), zap.String("message", message))

	for _, fn := range subs {
		fn(n)
	}
	return n
}

// Dismiss removes a notice. It reports whether the notice was still active.
func (c *Center) Dismiss(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, n := range c.notices {
		if n.ID == id {
			c.notices = append(c.notices[:i], c.notices[i+1:]...)
			return true
		}
	}
	return false
}

// Active returns the notices that are neither dismissed nor expired, oldest
// first.
func (c *Center) Active() []Notice {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.prune()
	return append([]Notice(nil), c.notices...)
}

// Last returns the most recent active notice.
func (c *Center) Last() (Notice, bool) {
	active := c.Active()
	if len(active) == 0 {
		return Notice{}, false
	}
	return active[len(active)-1], true
}

func (c *Center) Subscribe(fn func(Notice)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID
	c.nextID++
	c.subscribers[id] = fn

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subscribers, id)
	}
}

func (c *Center) prune() {
	if c.ttl <= 0 {
		return
	}

	cutoff := c.now().Add(-c.ttl)
	kept := c.notices[:0]
	for _, n := range c.notices {
		if n.At.After(cutoff) {
			kept = append(kept, n)
		}
	}
	c.notices = kept
}
