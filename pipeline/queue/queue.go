package queue

import (
	"fmt"
	"strings"
	"sync"

	"github.com/bilus/recorder/pipeline/item"
)

// Policy decides what TryPush does when the queue is full.
type Policy int

const (
	// Blocking makes the producer wait for room (or for Finish).
	Blocking Policy = iota
	// DropOldest evicts the head item to make room; the producer never waits.
	DropOldest
)

func (p Policy) String() string {
	switch p {
	case Blocking:
		return "block"
	case DropOldest:
		return "drop_oldest"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "block", "blocking":
		return Blocking, nil
	case "drop_oldest", "drop-oldest", "sliding":
		return DropOldest, nil
	default:
		return Blocking, fmt.Errorf("unknown overflow policy %q (want block or drop_oldest)", s)
	}
}

func (p Policy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Policy) UnmarshalText(text []byte) error {
	parsed, err := ParsePolicy(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

type Config struct {
	Capacity int    `yaml:"capacity"`
	Policy   Policy `yaml:"policy"`
}

func DefaultConfig() *Config {
	return &Config{
		Capacity: 100,
		Policy:   Blocking,
	}
}

func (c *Config) WithCapacity(capacity int) *Config {
	c.Capacity = capacity
	return c
}

func (c *Config) WithPolicy(p Policy) *Config {
	c.Policy = p
	return c
}

// Queue is a bounded FIFO shared by one producer and any number of
// consumers. Items live in a fixed ring so memory never grows past
// Capacity items. Once Finish is called no item is ever appended again,
// but whatever is already queued stays available to Pop.
type Queue struct {
	mu       sync.Mutex
	notEmpty sync.Cond
	notFull  sync.Cond

	ring     []item.Item
	head     int
	count    int
	policy   Policy
	finished bool
	evicted  uint64
}

func New(config Config) *Queue {
	if config.Capacity <= 0 {
		panic(fmt.Sprintf("queue capacity must be positive, got %v", config.Capacity))
	}
	q := &Queue{
		ring:   make([]item.Item, config.Capacity),
		policy: config.Policy,
	}
	q.notEmpty.L = &q.mu
	q.notFull.L = &q.mu
	return q
}

// TryPush appends it to the tail. It returns false if the queue is finished,
// including when Finish happens while a Blocking push is waiting for room.
func (q *Queue) TryPush(it item.Item) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.finished {
		return false
	}
	if q.count == len(q.ring) {
		switch q.policy {
		case DropOldest:
			q.ring[q.head] = item.Item{}
			q.head = q.next(q.head)
			q.count--
			q.evicted++
		default:
			for q.count == len(q.ring) && !q.finished {
				q.notFull.Wait()
			}
			if q.finished {
				return false
			}
		}
	}
	q.ring[(q.head+q.count)%len(q.ring)] = it
	q.count++
	q.notEmpty.Signal()
	return true
}

// Pop removes the head item, waiting while the queue is empty and not
// finished. ok is false only once the queue is both finished and empty;
// from then on every call returns false.
func (q *Queue) Pop() (it item.Item, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.count == 0 && !q.finished {
		q.notEmpty.Wait()
	}
	if q.count == 0 {
		return item.Item{}, false
	}
	it = q.ring[q.head]
	q.ring[q.head] = item.Item{} // Release the payload.
	q.head = q.next(q.head)
	q.count--
	q.notFull.Signal()
	return it, true
}

// Finish latches the queue closed and wakes every waiting producer and
// consumer. Calls after the first have no effect.
func (q *Queue) Finish() {
	q.mu.Lock()
	if q.finished {
		q.mu.Unlock()
		return
	}
	q.finished = true
	q.mu.Unlock()
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
}

func (q *Queue) Finished() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.finished
}

// Size is a point-in-time snapshot; use it for reporting only.
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

func (q *Queue) Capacity() int {
	return len(q.ring)
}

func (q *Queue) Policy() Policy {
	return q.policy
}

// Evicted returns how many items the DropOldest policy has discarded.
func (q *Queue) Evicted() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.evicted
}

func (q *Queue) next(i int) int {
	i++
	if i >= len(q.ring) {
		i = 0
	}
	return i
}
