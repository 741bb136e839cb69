package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v5"

	"github.com/kilnserve/kiln/internal/engine"
)

// ChatCompletionRequest is an OpenAI-compatible chat completion request.
type ChatCompletionRequest struct {
	Model         string        `json:"model"`
	Messages      []ChatMessage `json:"messages"`
	Temperature   *float64      `json:"temperature,omitempty"`
	TopP          *float64      `json:"top_p,omitempty"`
	N             *int          `json:"n,omitempty"`
	Stream        *bool         `json:"stream,omitempty"`
	Stop          any           `json:"stop,omitempty"`
	MaxTokens     *int          `json:"max_tokens,omitempty"`
	RepeatPenalty *float64      `json:"repeat_penalty,omitempty"`
	Seed          *int64        `json:"seed,omitempty"`
	User          string        `json:"user,omitempty"`
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompletionResponse is the non-streaming response body.
type ChatCompletionResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []ChatChoice `json:"choices"`
	Usage   Usage        `json:"usage"`
}

type ChatChoice struct {
	Index        int          `json:"index"`
	Message      *ChatMessage `json:"message,omitempty"`
	Delta        *ChatMessage `json:"delta,omitempty"`
	FinishReason *string      `json:"finish_reason"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatCompletionChunk is one streaming SSE event.
type ChatCompletionChunk struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []ChatChoice `json:"choices"`
}

func (s *Server) handleChatCompletions(c *echo.Context) error {
	req, err := decodeJSON[ChatCompletionRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}

	if len(req.Messages) == 0 {
		return writeInvalidParam(c, "messages", "messages is required and must not be empty")
	}
	for i, m := range req.Messages {
		if m.Role == "" {
			return writeInvalidParam(c, fmt.Sprintf("messages[%d].role", i), "role is required")
		}
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
		Prompt:        renderChatPrompt(req.Messages),
		MaxTokens:     req.MaxTokens,
		Temperature:   req.Temperature,
		TopP:          req.TopP,
		Seed:          req.Seed,
		RepeatPenalty: req.RepeatPenalty,
		Stop:          stop,
	})

	completionID := "chatcmpl-" + uuid.NewString()
	created := s.clock().Unix()

	if req.Stream != nil && *req.Stream {
		return s.streamChatCompletion(c, &genReq, completionID, created, card.ID)
	}

	res, err := s.generate(c.Request().Context(), &genReq, nil)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return writeGenerateError(c, err)
	}

	reason := string(res.FinishReason)
	return c.JSON(http.StatusOK, ChatCompletionResponse{
		ID:      completionID,
		Object:  "chat.completion",
		Created: created,
		Model:   card.ID,
		Choices: []ChatChoice{{
			Index:        0,
			Message:      &ChatMessage{Role: "assistant", Content: res.Text},
			FinishReason: &reason,
		}},
		Usage: usageFrom(res),
	})
}

func (s *Server) streamChatCompletion(c *echo.Context, genReq *engine.Request, completionID string, created int64, model string) error {
	res := c.Response()
	flusher, ok := res.(interface{ Flush() })
	if !ok {
		return writeBadRequest(c, "streaming unsupported")
	}

	chunk := func(choice ChatChoice) ChatCompletionChunk {
		return ChatCompletionChunk{
			ID:      completionID,
			Object:  "chat.completion.chunk",
			Created: created,
			Model:   model,
			Choices: []ChatChoice{choice},
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
		// Opening chunk carries the assistant role with no content.
		_ = sendSSEChunk(res, chunk(ChatChoice{Index: 0, Delta: &ChatMessage{Role: "assistant"}}))
		flusher.Flush()
	}

	result, err := s.generate(c.Request().Context(), genReq, func(delta string) {
		if !started {
			begin()
		}
		_ = sendSSEChunk(res, chunk(ChatChoice{Index: 0, Delta: &ChatMessage{Content: delta}}))
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
	_ = sendSSEChunk(res, chunk(ChatChoice{Index: 0, Delta: &ChatMessage{}, FinishReason: &reason}))
	_, _ = fmt.Fprint(res, "data: [DONE]\n\n")
	flusher.Flush()

	return nil
}

// renderChatPrompt lays the conversation out with role tags and leaves the
// assistant tag open for the model to continue.
func renderChatPrompt(msgs []ChatMessage) string {
	var b strings.Builder
	for _, m := range msgs {
		b.WriteString("<|")
		b.WriteString(m.Role)
		b.WriteString("|>\n")
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	b.WriteString("<|assistant|>\n")
	return b.String()
}

func validateSampling(temperature, topP *float64, maxTokens *int) error {
	if temperature != nil && *temperature < 0 {
		return fmt.Errorf("temperature must be non-negative, got %v", *temperature)
	}
	if topP != nil && (*topP <= 0 || *topP > 1) {
		return fmt.Errorf("top_p must be in (0, 1], got %v", *topP)
	}
	if maxTokens != nil && *maxTokens <= 0 {
		return fmt.Errorf("max_tokens must be positive, got %d", *maxTokens)
	}
	return nil
}

// parseStop accepts the OpenAI stop field: a string, an array of up to four
// strings, or null.
func parseStop(v any) ([]string, error) {
	switch stop := v.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{stop}, nil
	case []any:
		if len(stop) > 4 {
			return nil, fmt.Errorf("at most 4 stop sequences are supported")
		}
		out := make([]string, 0, len(stop))
		for _, raw := range stop {
			s, ok := raw.(string)
			if !ok {
				return nil, fmt.Errorf("stop sequences must be strings")
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected string or array of strings")
	}
}

func usageFrom(res *engine.Result) Usage {
	return Usage{
		PromptTokens:     res.PromptTokens,
		CompletionTokens: res.CompletionTokens,
		TotalTokens:      res.PromptTokens + res.CompletionTokens,
	}
}

func sendSSEChunk(w io.Writer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", string(b))
	return err
}

func decodeJSON[T any](r io.Reader) (T, error) {
	var out T
	dec := json.NewDecoder(r)
	if err := dec.Decode(&out); err != nil {
		return out, err
	}
	return out, nil
}
