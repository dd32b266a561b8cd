package landkeeper

import (
	"sync"
	"time"

	"github.com/rawblock/landkeeper/internal/ids"
	"github.com/rawblock/landkeeper/internal/statetree"
)

type commandKind int

const (
	cmdAction commandKind = iota
	cmdJoin
	cmdLeave
	cmdTick
	cmdSyncFlush
	cmdSetTransport
	cmdGetRecord
	cmdGetProjection
	cmdShutdown
)

// command is one FIFO queue entry. Only the fields relevant to its kind are
// populated; resultCh carries the reply back to the submitting goroutine.
type command struct {
	kind     commandKind
	deadline time.Time

	tickDelta int64

	player     ids.PlayerID
	client     ids.ClientID
	session    ids.SessionID
	actionType string
	payload    statetree.SnapshotValue

	transport TransportPublisher

	resultCh chan commandResult
}

type commandResult struct {
	value interface{}
	err   error
}

func (c *command) reply(value interface{}, err error) {
	if c.resultCh == nil {
		return
	}
	c.resultCh <- commandResult{value: value, err: err}
}

// commandQueue is the FIFO the keeper's single goroutine drains. Tick
// commands coalesce once TickCoalesceMax pending ticks have accumulated —
// the oldest pending tick absorbs every further tick that arrives before
// the loop catches up, so the queue depth contributed by ticks is bounded
// regardless of how far behind the keeper falls.
type commandQueue struct {
	mu     sync.Mutex
	items  []*command
	wakeCh chan struct{}
	closed bool
}

func newCommandQueue() *commandQueue {
	return &commandQueue{wakeCh: make(chan struct{}, 1)}
}

func (q *commandQueue) wake() {
	select {
	case q.wakeCh <- struct{}{}:
	default:
	}
}

// push appends an ordinary (non-tick) command.
func (q *commandQueue) push(cmd *command) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.items = append(q.items, cmd)
	q.wake()
	return true
}

// enqueueTick appends a tick command, coalescing into the oldest pending
// tick once maxPending ticks are already queued.
func (q *commandQueue) enqueueTick(maxPending int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	pending := 0
	for _, c := range q.items {
		if c.kind == cmdTick {
			pending++
		}
	}
	if maxPending > 0 && pending >= maxPending {
		for _, c := range q.items {
			if c.kind == cmdTick {
				c.tickDelta++
				q.wake()
				return
			}
		}
	}
	q.items = append(q.items, &command{kind: cmdTick, tickDelta: 1})
	q.wake()
}

// dequeue blocks until a command is available or the queue is closed with
// nothing left to drain, in which case ok is false.
func (q *commandQueue) dequeue() (*command, bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			cmd := q.items[0]
			q.items = q.items[1:]
			q.mu.Unlock()
			return cmd, true
		}
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return nil, false
		}
		<-q.wakeCh
	}
}

func (q *commandQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// close marks the queue closed: no further pushes succeed, and dequeue
// returns ok=false once any already-queued items are drained.
func (q *commandQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.wake()
}
