package ollama

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/kart-io/bookrag/pkg/errors"
	"github.com/kart-io/bookrag/pkg/llm"
)

// maxLineSize bounds a single NDJSON line from the backend.
const maxLineSize = 1 << 20

// stream reads NDJSON generate fragments from the response body.
type stream struct {
	resp    *http.Response
	scanner *bufio.Scanner
	done    bool
}

var _ llm.TokenStream = (*stream)(nil)

func newStream(resp *http.Response) *stream {
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &stream{resp: resp, scanner: scanner}
}

// Recv returns the next non-empty fragment. The done flag on a
// fragment is authoritative: once seen, Recv returns io.EOF. A body
// that ends without a done fragment is an interrupted answer.
func (s *stream) Recv() (string, error) {
	if s.done {
		return "", io.EOF
	}

	for s.scanner.Scan() {
		line := s.scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var chunk generateResponse
		if err := json.Unmarshal(line, &chunk); err != nil {
			return "", errors.ErrStreamInterrupted.WithCause(fmt.Errorf("malformed fragment: %w", err))
		}
		if chunk.Error != "" {
			return "", errors.ErrGenerationFailed.WithMessagef("backend error: %s", chunk.Error)
		}

		if chunk.Done {
			s.done = true
			if chunk.Response != "" {
				return chunk.Response, nil
			}
			return "", io.EOF
		}
		if chunk.Response == "" {
			continue
		}
		return chunk.Response, nil
	}

	if err := s.scanner.Err(); err != nil {
		return "", errors.ErrStreamInterrupted.WithCause(err)
	}
	return "", errors.ErrStreamInterrupted.WithCause(io.ErrUnexpectedEOF)
}

// Close releases the underlying response body. Closing before the
// final fragment aborts the backend request.
func (s *stream) Close() error {
	return s.resp.Body.Close()
}
