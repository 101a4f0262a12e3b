package agent

import (
	"context"
	"log"
	"sync"
	"time"
)

// inflight is the shared handle for one backend fulfillment. Late callers
// wait on done and read result instead of starting a duplicate call.
type inflight struct {
	done   chan struct{}
	result string
}

// Coordinator owns the single-flight state machine for one session: it
// starts operations, lets late requests supersede or join the in-flight one,
// runs the feedback ticker bound to it, and tears everything down on every
// exit path.
type Coordinator struct {
	state   *OperationState
	sink    SpeechSink
	backend Backend
	phrases *Phrasebook
	sched   FeedbackSchedule

	mu     sync.Mutex
	cur    *inflight
	ticker *feedbackTicker
}

func NewCoordinator(state *OperationState, sink SpeechSink, backend Backend, phrases *Phrasebook, sched FeedbackSchedule) *Coordinator {
	return &Coordinator{state: state, sink: sink, backend: backend, phrases: phrases, sched: sched}
}

// Submit fulfills one operation and returns the utterance to speak back to
// the user. It never returns an error: every backend failure maps to a fixed
// apologetic utterance.
//
// If an operation is already active this is supersession, not a parallel
// run: the running ticker is cancelled and awaited, kind and query are
// overwritten, a fresh ticker starts under the new kind, and the caller
// joins the existing backend call. The in-flight call is not restarted; the
// result it eventually produces is what every waiter receives.
func (c *Coordinator) Submit(ctx context.Context, op Operation) string {
	c.mu.Lock()
	if c.cur != nil {
		cur := c.cur
		old := c.ticker
		c.ticker = nil
		c.state.supersede(op)
		c.mu.Unlock()

		log.Printf("coordinator: superseding in-flight operation with %s %q", op.Kind, op.Label)
		if old != nil {
			old.stop()
		}

		c.mu.Lock()
		if c.cur == cur && c.ticker == nil {
			c.ticker = c.spawnTicker()
		}
		c.mu.Unlock()

		select {
		case <-cur.done:
			return cur.result
		case <-ctx.Done():
			return supersededText[op.Kind]
		}
	}

	cur := &inflight{done: make(chan struct{})}
	c.cur = cur
	c.state.begin(op, time.Now())
	c.ticker = c.spawnTicker()
	c.mu.Unlock()

	log.Printf("coordinator: starting %s operation: %s", op.Kind, op.Label)
	started := time.Now()

	var result string
	defer func() {
		c.teardown()
		cur.result = result
		close(cur.done)
	}()

	answer, err := c.backend.Resolve(ctx, op)
	if err != nil {
		// Supersession never cancels the backend call, so a cancelled
		// context here means the session itself is going away.
		log.Printf("coordinator: %s operation failed: %v", op.Kind, err)
		result = FailureText(c.state.Kind(), err)
		return result
	}

	log.Printf("coordinator: %s operation completed in %.2fs", op.Kind, time.Since(started).Seconds())
	result = answer
	return result
}

// teardown cancels and awaits the ticker, resets the state to idle and
// stamps lastCompletedAt. Runs on success, error, timeout and cancellation
// alike, and always before the result is delivered to waiters.
func (c *Coordinator) teardown() {
	c.mu.Lock()
	t := c.ticker
	c.ticker = nil
	c.cur = nil
	c.state.finish(time.Now())
	c.mu.Unlock()
	if t != nil {
		t.stop()
	}
}
