// File: internal/agent/stream.go
package agent

import "context"

// EventKind tags the entries emitted by StreamRun.
type EventKind string

const (
	EventStart  EventKind = "start"
	EventStep   EventKind = "step"
	EventAnswer EventKind = "answer"
	EventEnd    EventKind = "end"
)

// Event is one item in a StreamRun replay. Step events carry one
// intermediate step (a Thought or Observation line); the answer event
// carries the final answer, and the end event carries the full response.
type Event struct {
	Kind     EventKind `json:"kind"`
	Step     string    `json:"step,omitempty"`
	Answer   string    `json:"answer,omitempty"`
	Response *Response `json:"response,omitempty"`
}

// StreamRun executes Run to completion and replays it as an ordered event
// stream: start, one step event per intermediate step, answer, end. The
// channel is closed after the end event, or early if ctx is cancelled while
// a consumer lags. A Run error surfaces as a missing answer event followed
// by end carrying the partial response.
func (e *Engine) StreamRun(ctx context.Context, query string, opts RunOptions) <-chan Event {
	out := make(chan Event)
	go func() {
		defer close(out)

		resp, err := e.Run(ctx, query, opts)

		emit := func(ev Event) bool {
			select {
			case out <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !emit(Event{Kind: EventStart}) {
			return
		}
		for _, step := range resp.IntermediateSteps {
			if !emit(Event{Kind: EventStep, Step: step}) {
				return
			}
		}
		if err == nil {
			if !emit(Event{Kind: EventAnswer, Answer: resp.Answer}) {
				return
			}
		}
		emit(Event{Kind: EventEnd, Response: resp})
	}()
	return out
}
