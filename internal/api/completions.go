package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v5"

	"github.com/kilnserve/kiln/internal/engine"
)

// CompletionRequest is an OpenAI-compatible legacy text completion request.
type CompletionRequest struct {
	Model         string   `json:"model"`
	Prompt        any      `json:"prompt"`
	Temperature   *float64 `json:"temperature,omitempty"`
	TopP          *float64 `json:"top_p,omitempty"`
	N             *int     `json:"n,omitempty"`
	Stream        *bool    `json:"stream,omitempty"`
	Stop          any      `json:"stop,omitempty"`
	MaxTokens     *int     `json:"max_tokens,omitempty"`
	RepeatPenalty *float64 `json:"repeat_penalty,omitempty"`
	Seed          *int64   `json:"seed,omitempty"`
	Echo          *bool    `json:"echo,omitempty"`
}

type CompletionResponse struct {
	ID      string             `json:"id"`
	Object  string             `json:"object"`
	Created int64              `json:"created"`
	Model   string             `json:"model"`
	Choices []CompletionChoice `json:"choices"`
	Usage   Usage              `json:"usage"`
}

type CompletionChoice struct {
	Index        int     `json:"index"`
	Text         string  `json:"text"`
	Logprobs     any     `json:"logprobs"`
	FinishReason *string `json:"finish_reason"`
}

// CompletionChunk is one streaming SSE event for text completions.
type CompletionChunk struct {
	ID      string             `json:"id"`
	Object  string             `json:"object"`
	Created int64              `json:"created"`
	Model   string             `json:"model"`
	Choices []CompletionChoice `json:"choices"`
}

func (s *Server) handleCompletions(c *echo.Context) error {
	req, err := decodeJSON[CompletionRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}

	prompt, err := parsePrompt(req.Prompt)
	if err != nil {
		return writeInvalidParam(c, "prompt", err.Error())
	}
	if err := validateSampling(req.Temperature, req.TopP, req.MaxTokens); err != nil {
		return writeBadRequest(c, err.Error())
	}
	if req.N != nil && *req.N != 1 {
		return writeInvalidParam(c, "n", "only n=1 is supported")
	}
	stop, err := parseStop(req.Stop)
	if err != nil {
		return writeInvalidParam(c, "stop", err.Error())
	}

	card, err := s.resolveModel(req.Model)
	if err != nil {
		return writeGenerateError(c, err)
	}

	genReq := engine.Resolve(engine.Options{
		Prompt:        prompt,
		MaxTokens:     req.MaxTokens,
		Temperature:   req.Temperature,
		TopP:          req.TopP,
		Seed:          req.Seed,
		RepeatPenalty: req.RepeatPenalty,
		Stop:          stop,
	})

	completionID := "cmpl-" + uuid.NewString()
	created := s.clock().Unix()
	echoPrompt := req.Echo != nil && *req.Echo

	if req.Stream != nil && *req.Stream {
		return s.streamCompletion(c, &genReq, completionID, created, card.ID, echoPrompt)
	}

	res, err := s.generate(c.Request().Context(), &genReq, nil)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return writeGenerateError(c, err)
	}

	text := res.Text
	if echoPrompt {
		text = prompt + text
	}
	reason := string(res.FinishReason)
	return c.JSON(http.StatusOK, CompletionResponse{
		ID:      completionID,
		Object:  "text_completion",
		Created: created,
		Model:   card.ID,
		Choices: []CompletionChoice{{
			Index:        0,
			Text:         text,
			FinishReason: &reason,
		}},
		Usage: usageFrom(res),
	})
}

func (s *Server) streamCompletion(c *echo.Context, genReq *engine.Request, completionID string, created int64, model string, echoPrompt bool) error {
	res := c.Response()
	flusher, ok := res.(interface{ Flush() })
	if !ok {
		return writeBadRequest(c, "streaming unsupported")
	}

	chunk := func(choice CompletionChoice) CompletionChunk {
		return CompletionChunk{
			ID:      completionID,
			Object:  "text_completion",
			Created: created,
			Model:   model,
			Choices: []CompletionChoice{choice},
		}
	}

	// The response stays uncommitted until the first delta, so rejections
	// that happen before any token (full queue, context overflow) still get
	// their proper status envelope.
	started := false
	begin := func() {
		started = true
		res.Header().Set(echo.HeaderContentType, "text/event-stream")
		res.Header().Set("Cache-Control", "no-cache")
		res.Header().Set("Connection", "keep-alive")
		if echoPrompt {
			_ = sendSSEChunk(res, chunk(CompletionChoice{Index: 0, Text: genReq.Prompt}))
		}
		flusher.Flush()
	}

	result, err := s.generate(c.Request().Context(), genReq, func(delta string) {
		if !started {
			begin()
		}
		_ = sendSSEChunk(res, chunk(CompletionChoice{Index: 0, Text: delta}))
		flusher.Flush()
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		if !started {
			return writeGenerateError(c, err)
		}
		_ = sendSSEChunk(res, map[string]any{"error": ResponseError{
			Message: err.Error(),
			Type:    "server_error",
		}})
		flusher.Flush()
		return nil
	}
	if !started {
		begin()
	}

	reason := string(result.FinishReason)
	_ = sendSSEChunk(res, chunk(CompletionChoice{Index: 0, FinishReason: &reason}))
	_, _ = fmt.Fprint(res, "data: [DONE]\n\n")
	flusher.Flush()

	return nil
}

// parsePrompt accepts a string or a single-element string array. Batched
// prompts are rejected rather than silently truncated.
func parsePrompt(v any) (string, error) {
	switch p := v.(type) {
	case nil:
		return "", fmt.Errorf("prompt is required")
	case string:
		if p == "" {
			return "", fmt.Errorf("prompt must not be empty")
		}
		return p, nil
	case []any:
		if len(p) != 1 {
			return "", fmt.Errorf("exactly one prompt is supported, got %d", len(p))
		}
		s, ok := p[0].(string)
		if !ok {
			return "", fmt.Errorf("prompt array elements must be strings")
		}
		if s == "" {
			return "", fmt.Errorf("prompt must not be empty")
		}
		return s, nil
	default:
		return "", fmt.Errorf("expected string or array of strings")
	}
}
