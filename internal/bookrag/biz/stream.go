package biz

import (
	"context"
	"io"
	"sync"

	"github.com/kart-io/bookrag/pkg/llm"
	"github.com/kart-io/bookrag/pkg/pool"
)

// streamBuffer bounds how far the producer may run ahead of the
// consumer before backpressure kicks in.
const streamBuffer = 32

type streamEvent struct {
	token string
	err   error
}

// AnswerStream decouples reading tokens from the model backend from
// delivering them to the client. A pooled worker pumps the inner
// stream into a bounded channel so a slow client cannot stall the
// backend read and a slow backend cannot block stream teardown.
type AnswerStream struct {
	events    <-chan streamEvent
	cancel    context.CancelFunc
	closeOnce sync.Once
}

var _ llm.TokenStream = (*AnswerStream)(nil)

// NewAnswerStream starts pumping inner on a pooled worker and returns
// the consumer side. The stream owns inner and closes it when the
// producer exits. ctx cancellation tears the stream down.
func NewAnswerStream(ctx context.Context, workers *pool.Pool, inner llm.TokenStream) *AnswerStream {
	ctx, cancel := context.WithCancel(ctx)
	events := make(chan streamEvent, streamBuffer)

	workers.Go(func() {
		defer close(events)
		defer func() { _ = inner.Close() }()

		for {
			token, err := inner.Recv()
			if err == io.EOF {
				return
			}
			if err != nil {
				select {
				case events <- streamEvent{err: err}:
				case <-ctx.Done():
				}
				return
			}
			select {
			case events <- streamEvent{token: token}:
			case <-ctx.Done():
				return
			}
		}
	})

	return &AnswerStream{events: events, cancel: cancel}
}

// Recv returns the next token. It returns io.EOF when the answer is
// complete and the producer's error when generation failed mid-way.
func (s *AnswerStream) Recv() (string, error) {
	ev, ok := <-s.events
	if !ok {
		return "", io.EOF
	}
	if ev.err != nil {
		return "", ev.err
	}
	return ev.token, nil
}

// Close stops the producer. Safe to call multiple times and
// concurrently with Recv.
func (s *AnswerStream) Close() error {
	s.closeOnce.Do(s.cancel)
	return nil
}
