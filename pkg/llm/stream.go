package llm

import (
	"context"
	"errors"
	"io"
	"strings"
)

// TokenStream yields answer fragments as the backend produces them.
//
// Recv blocks until the next fragment is available. It returns io.EOF
// after the final fragment of a completed answer. Any other error means
// the answer is incomplete.
type TokenStream interface {
	Recv() (string, error)
	Close() error
}

// Collect drains the stream into a single string. It closes the stream
// before returning.
func Collect(ts TokenStream) (string, error) {
	defer ts.Close()

	var sb strings.Builder
	for {
		token, err := ts.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return sb.String(), nil
			}
			return sb.String(), err
		}
		sb.WriteString(token)
	}
}

// GenerateViaStream implements non-streaming generation on top of
// GenerateStream for providers without a dedicated completion call.
func GenerateViaStream(ctx context.Context, p ChatProvider, prompt, systemPrompt string) (string, error) {
	ts, err := p.GenerateStream(ctx, prompt, systemPrompt)
	if err != nil {
		return "", err
	}
	return Collect(ts)
}
