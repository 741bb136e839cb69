package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/kilnserve/kiln/internal/scheduler"
)

func TestCompletionSync(t *testing.T) {
	t.Parallel()

	gen := &scriptedGen{text: " world"}
	e := newTestEcho(gen, nil)

	rec := doJSON(t, e, http.MethodPost, "/v1/completions",
		`{"model":"kiln-tiny","prompt":"hello","max_tokens":16}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}

	var resp CompletionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Object != "text_completion" {
		t.Fatalf("object = %q", resp.Object)
	}
	if !strings.HasPrefix(resp.ID, "cmpl-") {
		t.Fatalf("id = %q", resp.ID)
	}
	if len(resp.Choices) != 1 || resp.Choices[0].Text != " world" {
		t.Fatalf("choices = %+v", resp.Choices)
	}

	if gen.gotReq == nil || gen.gotReq.Prompt != "hello" {
		t.Fatalf("generator saw %+v", gen.gotReq)
	}
	if gen.gotReq.MaxTokens != 16 {
		t.Fatalf("MaxTokens = %d, want 16", gen.gotReq.MaxTokens)
	}
}

func TestCompletionEcho(t *testing.T) {
	t.Parallel()

	e := newTestEcho(&scriptedGen{text: " world"}, nil)
	rec := doJSON(t, e, http.MethodPost, "/v1/completions",
		`{"prompt":"hello","echo":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}

	var resp CompletionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Choices[0].Text != "hello world" {
		t.Fatalf("text = %q, want prompt prepended", resp.Choices[0].Text)
	}
}

func TestCompletionPromptForms(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		body string
		code int
	}{
		{"plain string", `{"prompt":"hi"}`, http.StatusOK},
		{"single element array", `{"prompt":["hi"]}`, http.StatusOK},
		{"missing", `{}`, http.StatusBadRequest},
		{"empty string", `{"prompt":""}`, http.StatusBadRequest},
		{"batched", `{"prompt":["a","b"]}`, http.StatusBadRequest},
		{"wrong type", `{"prompt":7}`, http.StatusBadRequest},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			e := newTestEcho(&scriptedGen{text: "x"}, nil)
			rec := doJSON(t, e, http.MethodPost, "/v1/completions", tc.body)
			if rec.Code != tc.code {
				t.Fatalf("status = %d, want %d body=%s", rec.Code, tc.code, rec.Body.String())
			}
		})
	}
}

func TestCompletionStreamQueueFull(t *testing.T) {
	t.Parallel()

	e := newTestEcho(&scriptedGen{text: "x"}, rejectingSched{err: scheduler.ErrQueueFull})
	rec := doJSON(t, e, http.MethodPost, "/v1/completions",
		`{"prompt":"hi","stream":true}`)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "queue_full") {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestCompletionStream(t *testing.T) {
	t.Parallel()

	e := newTestEcho(&scriptedGen{text: "ok"}, nil)
	rec := doJSON(t, e, http.MethodPost, "/v1/completions",
		`{"prompt":"hi","stream":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}

	events := parseSSE(t, rec.Body.String())
	if len(events) == 0 || events[len(events)-1] != "[DONE]" {
		t.Fatalf("stream did not end with [DONE]: %v", events)
	}

	var text strings.Builder
	for _, ev := range events {
		if ev == "[DONE]" {
			continue
		}
		var chunk CompletionChunk
		if err := json.Unmarshal([]byte(ev), &chunk); err != nil {
			t.Fatalf("decode chunk %s: %v", ev, err)
		}
		text.WriteString(chunk.Choices[0].Text)
	}
	if text.String() != "ok" {
		t.Fatalf("streamed text = %q, want %q", text.String(), "ok")
	}
}
