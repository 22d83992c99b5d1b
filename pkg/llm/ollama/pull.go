package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"

	"github.com/kart-io/logger"
)

type pullRequest struct {
	Name   string `json:"name"`
	Stream bool   `json:"stream"`
}

type pullProgress struct {
	Status    string `json:"status"`
	Total     int64  `json:"total"`
	Completed int64  `json:"completed"`
	Error     string `json:"error,omitempty"`
}

// Pull downloads a model onto the backend, logging progress as status
// lines arrive.
func (p *Provider) Pull(ctx context.Context, model string) error {
	body, err := json.Marshal(pullRequest{Name: model, Stream: true})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL+"/api/pull", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.streamClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	lastStatus := ""
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var progress pullProgress
		if err := json.Unmarshal(line, &progress); err != nil {
			return fmt.Errorf("malformed progress line: %w", err)
		}
		if progress.Error != "" {
			return fmt.Errorf("pull failed: %s", progress.Error)
		}

		if progress.Status != lastStatus {
			lastStatus = progress.Status
			fields := []interface{}{"model", model, "status", progress.Status}
			if progress.Total > 0 {
				fields = append(fields, "completed", progress.Completed, "total", progress.Total)
			}
			logger.Infow("Model pull progress", fields...)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read progress: %w", err)
	}

	logger.Infow("Model pulled", "model", model)
	return nil
}

// EnsureModel pulls the model unless the backend already has it.
func (p *Provider) EnsureModel(ctx context.Context, model string) error {
	models, err := p.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	if slices.Contains(models, model) {
		return nil
	}

	logger.Infow("Model not present, pulling", "model", model)
	return p.Pull(ctx, model)
}
