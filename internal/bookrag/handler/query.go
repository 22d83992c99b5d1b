package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/bookrag/internal/bookrag/biz"
	"github.com/kart-io/bookrag/internal/bookrag/metrics"
	"github.com/kart-io/bookrag/internal/model"
	bizerrors "github.com/kart-io/bookrag/pkg/errors"
	"github.com/kart-io/bookrag/pkg/id"
	"github.com/kart-io/bookrag/pkg/llm"
	"github.com/kart-io/bookrag/pkg/middleware"
)

// Query answers a question about one book, either as a single JSON
// response or as an SSE token stream when the request asks for it.
func (h *Handler) Query(c *gin.Context) {
	var req model.QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.AbortWithError(c, bizerrors.ErrInvalidRequest.WithMessage(err.Error()))
		return
	}

	eng, ok := h.registry.Get(req.Book)
	if !ok {
		middleware.AbortWithError(c, bizerrors.ErrUnknownBook.WithMessagef(
			"Unknown book '%s'. Available: %s", req.Book, strings.Join(h.registry.BookIDs(), ", ")))
		return
	}

	if req.Stream {
		h.streamQuery(c, eng, &req)
		return
	}
	h.jsonQuery(c, eng, &req)
}

func (h *Handler) jsonQuery(c *gin.Context, eng *biz.Engine, req *model.QueryRequest) {
	start := time.Now()
	m := metrics.Get()

	if cached := h.cache.Get(c.Request.Context(), req.Book, req.Question, req.TopK); cached != nil {
		m.RecordQuery(time.Since(start), true, nil)
		c.JSON(http.StatusOK, cached)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.queryTimeout)
	defer cancel()

	answer, results, err := eng.Query(ctx, req.Question, req.TopK)
	if err != nil {
		m.RecordQuery(time.Since(start), false, err)
		if ctx.Err() == context.DeadlineExceeded {
			middleware.AbortWithError(c, bizerrors.ErrQueryTimeout.WithCause(err))
			return
		}
		middleware.AbortWithError(c, err)
		return
	}

	resp := model.NewQueryResponse(answer, toSources(results), h.registry.ChatModel())
	h.cache.Set(c.Request.Context(), req.Book, req.Question, req.TopK, resp)
	m.RecordQuery(time.Since(start), false, nil)
	c.JSON(http.StatusOK, resp)
}

// streamQuery delivers the answer as server-sent events. Each token
// becomes one data frame; a final done frame and a literal [DONE]
// sentinel close the stream. Errors mid-stream become an error frame
// because the 200 status has already been written.
func (h *Handler) streamQuery(c *gin.Context, eng *biz.Engine, req *model.QueryRequest) {
	m := metrics.Get()
	m.RecordStreamQuery()

	// Streaming gets the same hard deadline as the JSON path. The
	// backend read is bounded by this context, so a silent backend
	// cannot hold the request open forever.
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.queryTimeout)
	defer cancel()

	stream, _, err := eng.QueryStream(ctx, req.Question, req.TopK)
	if err != nil {
		m.RecordStreamAbort()
		if ctx.Err() == context.DeadlineExceeded {
			middleware.AbortWithError(c, bizerrors.ErrQueryTimeout.WithCause(err))
			return
		}
		middleware.AbortWithError(c, err)
		return
	}
	defer func() { _ = stream.Close() }()

	w := c.Writer
	header := w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	responseID := id.NewResponseID()
	if err := h.pumpTokens(c, stream, responseID); err != nil {
		m.RecordStreamAbort()
		logger.Warnw("Stream aborted", "response_id", responseID, "error", err)
		// Best effort: the client may already be gone.
		writeSSEError(w, bizerrors.FromError(err).Msg)
		w.Flush()
		return
	}

	writeSSE(w, model.StreamChunk{ID: responseID, Delta: "", Done: true})
	writeSSERaw(w, "[DONE]")
	w.Flush()
}

func (h *Handler) pumpTokens(c *gin.Context, stream llm.TokenStream, responseID string) error {
	m := metrics.Get()
	w := c.Writer

	for {
		token, err := stream.Recv()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		if err := writeSSE(w, model.StreamChunk{ID: responseID, Delta: token}); err != nil {
			return fmt.Errorf("client write: %w", err)
		}
		w.Flush()
		m.RecordTokens(1)
	}
}

func writeSSE(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return writeSSERaw(w, string(data))
}

func writeSSERaw(w io.Writer, payload string) error {
	_, err := fmt.Fprintf(w, "data: %s\n\n", payload)
	return err
}

func writeSSEError(w io.Writer, msg string) {
	data, err := json.Marshal(gin.H{"error": msg})
	if err != nil {
		return
	}
	_ = writeSSERaw(w, string(data))
}
