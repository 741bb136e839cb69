// Package engine drives the autoregressive decode loop: prefill the prompt,
// then sample one token at a time against the shared model handle until a
// stop condition fires.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kilnserve/kiln/internal/logger"
	"github.com/kilnserve/kiln/internal/model"
	"github.com/kilnserve/kiln/internal/sampling"
	"github.com/kilnserve/kiln/internal/tokenizer"
)

// ErrContextOverflow reports that the prompt plus the requested generation
// budget cannot fit the model's context window. It is returned before any
// forward pass when detectable up front, and deterministically mid-decode
// otherwise.
var ErrContextOverflow = errors.New("context window exceeded")

// State tracks a session through the decode loop.
type State int

const (
	StatePrefill State = iota
	StateDecoding
	StateCompleted
	StateCancelled
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePrefill:
		return "prefill"
	case StateDecoding:
		return "decoding"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// FinishReason classifies why generation stopped.
type FinishReason string

const (
	FinishStop      FinishReason = "stop"
	FinishLength    FinishReason = "length"
	FinishCancelled FinishReason = "cancelled"
)

// StreamFunc receives text deltas as they become final. Deltas never contain
// torn runes or text that could still become part of a stop string.
type StreamFunc func(delta string)

// Session is the mutable state of one in-flight request: token history, the
// model cache, and the sampler RNG. A session is owned exclusively by the
// worker executing its request and is destroyed when the request ends.
type Session struct {
	id      string
	tokens  []int
	cache   model.Cache
	sampler *sampling.Sampler
	decoder *tokenizer.StreamDecoder
	matcher *stopMatcher
	state   State
}

// ID returns the opaque per-request session id.
func (s *Session) ID() string { return s.id }

// State returns the session's current lifecycle state.
func (s *Session) State() State { return s.state }

// Result is the terminal outcome of a generation.
type Result struct {
	SessionID        string
	Text             string
	FinishReason     FinishReason
	PromptTokens     int
	CompletionTokens int
	Duration         time.Duration
	TokensPerSecond  float64
}

// Engine runs generation requests against one shared model handle. The
// handle's weights are read-only, so a single engine serves any number of
// concurrent sessions; all mutable state lives in the per-request Session.
type Engine struct {
	handle *model.Handle
	tok    tokenizer.Tokenizer
	log    logger.Logger
}

// New builds an engine over a loaded model.
func New(handle *model.Handle, tok tokenizer.Tokenizer, log logger.Logger) *Engine {
	return &Engine{handle: handle, tok: tok, log: log}
}

// Handle exposes the shared model handle.
func (e *Engine) Handle() *model.Handle { return e.handle }

func (e *Engine) newSession(req *Request) *Session {
	return &Session{
		id:    uuid.NewString(),
		cache: e.handle.NewCache(),
		sampler: sampling.New(sampling.Config{
			Seed:          req.Seed,
			Temperature:   req.Temperature,
			TopP:          req.TopP,
			RepeatPenalty: req.RepeatPenalty,
			RepeatLastN:   req.RepeatLastN,
		}),
		decoder: tokenizer.NewStreamDecoder(e.tok),
		matcher: newStopMatcher(req.Stop),
		state:   StatePrefill,
	}
}

// Generate runs the full decode loop for one request. Cancellation through
// ctx is honored at every step boundary and is a normal terminal state, not
// an error. Forward-pass failures are returned as errors and are never
// retried here.
func (e *Engine) Generate(ctx context.Context, req *Request, stream StreamFunc) (*Result, error) {
	ids, err := e.tok.Encode(req.Prompt)
	if err != nil {
		return nil, fmt.Errorf("encode prompt: %w", err)
	}

	window := e.handle.Info().ContextWindow
	if len(ids) >= window {
		return nil, fmt.Errorf("prompt is %d tokens, context window is %d: %w", len(ids), window, ErrContextOverflow)
	}
	if req.MaxTokens > 0 && len(ids)+req.MaxTokens > window {
		return nil, fmt.Errorf("prompt (%d tokens) plus max_tokens (%d) exceeds context window %d: %w",
			len(ids), req.MaxTokens, window, ErrContextOverflow)
	}

	sess := e.newSession(req)
	start := time.Now()

	if ctx.Err() != nil {
		sess.state = StateCancelled
		return e.finalize(sess, FinishCancelled, len(ids), 0, start), nil
	}

	// Prefill: one pass over the whole prompt to populate the cache and
	// produce the first next-token distribution.
	logits, err := e.handle.Forward(ids, sess.cache)
	if err != nil {
		sess.state = StateFailed
		return nil, fmt.Errorf("forward pass during prefill: %w", err)
	}
	sess.tokens = append(sess.tokens, ids...)
	sess.state = StateDecoding

	eos := e.handle.Info().EOSTokenID
	completion := 0

	for {
		if ctx.Err() != nil {
			sess.state = StateCancelled
			e.log.Debug("generation cancelled", "session", sess.id, "tokens", completion)
			return e.finalize(sess, FinishCancelled, len(ids), completion, start), nil
		}

		next := sess.sampler.Sample(logits, sess.tokens)

		if next == eos {
			sess.state = StateCompleted
			e.flushTail(sess, stream)
			return e.finalize(sess, FinishStop, len(ids), completion, start), nil
		}

		sess.tokens = append(sess.tokens, next)
		completion++

		delta, err := sess.decoder.Push(next)
		if err != nil {
			sess.state = StateFailed
			return nil, fmt.Errorf("decode token %d: %w", next, err)
		}
		// The token budget outranks stop strings: a match completing on the
		// same token that exhausts the budget yields "length" and the text
		// keeps the would-be match.
		if req.MaxTokens > 0 && completion >= req.MaxTokens {
			sess.state = StateCompleted
			sess.matcher.append(delta)
			e.flushAll(sess, stream)
			return e.finalize(sess, FinishLength, len(ids), completion, start), nil
		}

		out, matched := sess.matcher.feed(delta)
		if out != "" && stream != nil {
			stream(out)
		}
		if matched {
			sess.state = StateCompleted
			return e.finalize(sess, FinishStop, len(ids), completion, start), nil
		}

		if len(sess.tokens)+1 > window {
			sess.state = StateFailed
			return nil, fmt.Errorf("token history reached the context window %d: %w", window, ErrContextOverflow)
		}

		logits, err = e.handle.Forward([]int{next}, sess.cache)
		if err != nil {
			sess.state = StateFailed
			return nil, fmt.Errorf("forward pass at step %d: %w", completion, err)
		}
	}
}

// flushTail releases the decoder's withheld bytes and the stop matcher's
// holdback once no stop string can match anymore.
func (e *Engine) flushTail(sess *Session, stream StreamFunc) {
	tail, err := sess.decoder.Flush()
	if err != nil {
		return
	}
	out, matched := sess.matcher.feed(tail)
	if matched {
		if out != "" && stream != nil {
			stream(out)
		}
		return
	}
	rest := sess.matcher.finish()
	if stream != nil {
		if out != "" {
			stream(out)
		}
		if rest != "" {
			stream(rest)
		}
	}
}

// flushAll releases everything still withheld once the token budget ends
// generation. The remaining text is not scanned for stop strings.
func (e *Engine) flushAll(sess *Session, stream StreamFunc) {
	if tail, err := sess.decoder.Flush(); err == nil && tail != "" {
		sess.matcher.append(tail)
	}
	rest := sess.matcher.finish()
	if rest != "" && stream != nil {
		stream(rest)
	}
}

func (e *Engine) finalize(sess *Session, reason FinishReason, promptTokens, completion int, start time.Time) *Result {
	if reason == FinishCancelled {
		// Retain partial output: pull the held bytes into the text without
		// emitting further stream deltas.
		if tail, err := sess.decoder.Flush(); err == nil {
			if _, matched := sess.matcher.feed(tail); !matched {
				sess.matcher.finish()
			}
		}
	}

	res := &Result{
		SessionID:        sess.id,
		Text:             sess.matcher.output(),
		FinishReason:     reason,
		PromptTokens:     promptTokens,
		CompletionTokens: completion,
		Duration:         time.Since(start),
	}
	if res.Duration > 0 {
		res.TokensPerSecond = float64(completion) / res.Duration.Seconds()
	}
	e.log.Debug("generation finished",
		"session", sess.id,
		"state", sess.state.String(),
		"reason", string(reason),
		"prompt_tokens", promptTokens,
		"completion_tokens", completion,
		"tps", res.TokensPerSecond,
	)
	return res
}
