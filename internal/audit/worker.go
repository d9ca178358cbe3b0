package audit

import "context"

// ChannelSink decouples event capture from slow downstream sinks: Emit only
// enqueues, and the Worker drains the channel off the request path. A full
// channel drops the event rather than blocking a request; the store already
// holds the authoritative copy.
type ChannelSink struct {
	ch chan<- Event
}

func NewChannelSink(ch chan<- Event) ChannelSink {
	return ChannelSink{ch: ch}
}

func (s ChannelSink) Publish(_ context.Context, event Event) error {
	select {
	case s.ch <- event:
	default:
	}
	return nil
}

// Worker consumes audit events from a channel and forwards them to a sink.
// It keeps background publishing testable without wiring queue
// implementations into the request path.
type Worker struct {
	sink  Sink
	inbox <-chan Event
}

func NewWorker(sink Sink, inbox <-chan Event) *Worker {
	return &Worker{sink: sink, inbox: inbox}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			if err := w.sink.Publish(ctx, event); err != nil {
				return err
			}
		}
	}
}
