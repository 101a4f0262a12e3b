package agent

import (
	"context"
	"log"
	"time"
)

// FeedbackSchedule is the wait ladder for progress utterances, relative to
// the previous fire: Initial after operation start, Processing after the
// initial message, then Patience repeating until cancelled.
type FeedbackSchedule struct {
	Initial    time.Duration
	Processing time.Duration
	Patience   time.Duration
}

func DefaultFeedbackSchedule() FeedbackSchedule {
	return FeedbackSchedule{
		Initial:    3 * time.Second,
		Processing: 6 * time.Second,
		Patience:   8 * time.Second,
	}
}

// feedbackTicker is the handle for one running progress-feedback task.
// stop cancels the task and waits for it to exit, so at most one ticker is
// ever waiting or speaking per session.
type feedbackTicker struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func (t *feedbackTicker) stop() {
	t.cancel()
	<-t.done
}

// spawnTicker starts a feedback task. Caller holds c.mu.
func (c *Coordinator) spawnTicker() *feedbackTicker {
	ctx, cancel := context.WithCancel(context.Background())
	t := &feedbackTicker{cancel: cancel, done: make(chan struct{})}
	go c.runTicker(ctx, t.done)
	return t
}

func (c *Coordinator) runTicker(ctx context.Context, done chan struct{}) {
	defer close(done)

	if !sleepUnless(ctx, c.sched.Initial) {
		return
	}
	c.speakStage(ctx, StageInitial)

	if !sleepUnless(ctx, c.sched.Processing) {
		return
	}
	c.speakStage(ctx, StageProcessing)

	for {
		if !sleepUnless(ctx, c.sched.Patience) {
			return
		}
		c.speakStage(ctx, StagePatience)
	}
}

// speakStage speaks one feedback utterance, but only if the operation is
// still active at fire time. A stage whose wait outlived the operation is
// skipped silently, never spoken late. The kind is re-read from state so a
// superseding request immediately steers the pools.
func (c *Coordinator) speakStage(ctx context.Context, stage Stage) {
	if ctx.Err() != nil || !c.state.Active() {
		return
	}
	kind := c.state.Kind()
	text := c.phrases.Feedback(kind, stage)
	if text == "" {
		return
	}
	if err := c.sink.Say(ctx, text); err != nil {
		log.Printf("feedback: say failed at stage %s: %v", stage, err)
		return
	}
	c.state.recordStage(stage)
	log.Printf("feedback: %s stage spoken for %s operation", stage, kind)
}

// sleepUnless waits d or until ctx is cancelled; reports whether the full
// wait elapsed.
func sleepUnless(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
