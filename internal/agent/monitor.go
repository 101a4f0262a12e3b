package agent

import (
	"context"
	"log"
	"time"
)

// MonitorConfig holds the idle-silence thresholds. One unified variant:
// 30s poll, single warning.
type MonitorConfig struct {
	Poll         time.Duration
	CheckInAfter time.Duration
	Grace        time.Duration
	LongIdle     time.Duration
	MaxWarnings  int
}

func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Poll:         30 * time.Second,
		CheckInAfter: 60 * time.Second,
		Grace:        45 * time.Second,
		LongIdle:     300 * time.Second,
		MaxWarnings:  1,
	}
}

// Monitor watches user/agent activity for one session and injects a single
// check-in utterance after sustained silence. It never speaks while an
// operation is active, nor inside the grace window after one completes.
type Monitor struct {
	state    *OperationState
	activity *ConversationActivity
	sink     SpeechSink
	cfg      MonitorConfig

	cancel context.CancelFunc
	done   chan struct{}
}

func NewMonitor(state *OperationState, activity *ConversationActivity, sink SpeechSink, cfg MonitorConfig) *Monitor {
	return &Monitor{state: state, activity: activity, sink: sink, cfg: cfg}
}

// Start launches the polling loop. Stop with Stop.
func (m *Monitor) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	log.Printf("monitor: silence monitoring started (poll %s)", m.cfg.Poll)
	go m.run(ctx)
}

// Stop cancels the loop and waits for it to exit.
func (m *Monitor) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	<-m.done
	log.Printf("monitor: silence monitoring stopped")
}

func (m *Monitor) run(ctx context.Context) {
	defer close(m.done)
	for {
		if !sleepUnless(ctx, m.cfg.Poll) {
			return
		}
		m.tick(ctx, time.Now())
	}
}

func (m *Monitor) tick(ctx context.Context, now time.Time) {
	// Never interrupt an in-flight operation.
	if m.state.Active() {
		return
	}
	// Give the user time to react to a just-delivered result.
	if last := m.state.LastCompletedAt(); !last.IsZero() && now.Sub(last) < m.cfg.Grace {
		return
	}

	silence := m.activity.silenceFor(now)
	switch {
	case silence >= m.cfg.CheckInAfter && m.activity.warnings() < m.cfg.MaxWarnings:
		m.checkIn(ctx, now, silence)
	case silence >= m.cfg.LongIdle:
		// Passive mode: stop nagging, re-arm quietly.
		log.Printf("monitor: long idle period, going passive")
		m.activity.passiveReset(now)
	}
}

// checkIn speaks the silence check-in. Active is re-read at fire time: an
// operation submitted after the tick's first check must not be talked over.
func (m *Monitor) checkIn(ctx context.Context, now time.Time, silence time.Duration) {
	if m.state.Active() {
		return
	}
	log.Printf("monitor: checking in after %.1fs of silence", silence.Seconds())
	if err := m.sink.Say(ctx, CheckInText); err != nil {
		log.Printf("monitor: check-in failed: %v", err)
	} else {
		m.activity.TouchAgent(now)
	}
	m.activity.noteWarning(now)
}
