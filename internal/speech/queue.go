// Package speech turns utterance text into audio. Queue is the SpeechSink
// used by live calls: it serializes utterances so only one synthesis is in
// flight per session and the agent never talks over itself.
package speech

import (
	"context"
	"log"
	"sync"
)

// Synthesizer streams 48kHz PCM16LE mono audio for the given text.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (<-chan []byte, <-chan error)
}

// AudioSink consumes PCM bytes and performs delivery (e.g. encode and pace
// onto the telephony leg). Implementations buffer internally.
type AudioSink interface {
	WritePCM(pcm []byte)
	FlushTail()
}

// Queue implements agent.SpeechSink over a Synthesizer and an AudioSink.
type Queue struct {
	synth Synthesizer
	sink  AudioSink
	mu    sync.Mutex
}

func NewQueue(synth Synthesizer, sink AudioSink) *Queue {
	return &Queue{synth: synth, sink: sink}
}

// Say synthesizes one utterance and writes its audio to the sink. Calls are
// serialized; a caller blocks until earlier utterances finish. Cancelling
// ctx stops the stream without flushing the tail.
func (q *Queue) Say(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	pcmCh, errCh := q.synth.Synthesize(ctx, text)
	var streamErr error
	openPCM, openErr := true, true
	for openPCM || openErr {
		select {
		case b, ok := <-pcmCh:
			if !ok {
				openPCM = false
				continue
			}
			if len(b) > 0 && ctx.Err() == nil {
				q.sink.WritePCM(b)
			}
		case e, ok := <-errCh:
			if ok && e != nil {
				streamErr = e
				log.Printf("speech: synth stream error: %v", e)
			}
			openErr = false
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if streamErr != nil {
		return streamErr
	}
	q.sink.FlushTail()
	return nil
}
