// Package api exposes the OpenAI-compatible HTTP surface: chat completions,
// text completions, and the model registry, with SSE streaming variants.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"

	"github.com/kilnserve/kiln/internal/engine"
	"github.com/kilnserve/kiln/internal/logger"
)

// Generator runs one resolved generation request. *engine.Engine satisfies
// it; tests substitute scripted doubles.
type Generator interface {
	Generate(ctx context.Context, req *engine.Request, stream engine.StreamFunc) (*engine.Result, error)
}

// Submitter admits work through the scheduler's bounded queue.
type Submitter interface {
	Submit(ctx context.Context, fn func(ctx context.Context) error) error
}

// Server holds the handlers' shared dependencies.
type Server struct {
	gen    Generator
	sched  Submitter
	models *ModelStore
	log    logger.Logger
	clock  func() time.Time
}

func NewServer(gen Generator, sched Submitter, models *ModelStore, log logger.Logger) *Server {
	if models == nil {
		models = NewModelStore()
	}
	return &Server{
		gen:    gen,
		sched:  sched,
		models: models,
		log:    log,
		clock:  time.Now,
	}
}

func (s *Server) Register(e *echo.Echo) {
	e.POST("/v1/chat/completions", s.handleChatCompletions)
	e.POST("/v1/completions", s.handleCompletions)

	e.GET("/v1/models", s.handleListModels)
	e.GET("/v1/models/:id", s.handleGetModel)
	e.DELETE("/v1/models/:id", s.handleDeleteModel)

	e.GET("/health", s.handleHealth)
	e.GET("/v1/health", s.handleHealth)
}

func (s *Server) handleHealth(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status": "ok",
		"models": s.models.Count(),
	})
}

// resolveModel validates the requested model id against the registry. An
// empty id means the default model.
func (s *Server) resolveModel(id string) (ModelCard, error) {
	if id == "" {
		card, ok := s.models.Default()
		if !ok {
			return ModelCard{}, newNotFound("no model is loaded")
		}
		return card, nil
	}
	card, ok := s.models.Get(id)
	if !ok {
		return ModelCard{}, newNotFound("model " + id + " does not exist")
	}
	return card, nil
}

// generate pushes the request through the admission queue and runs it on a
// worker. When sched is nil the request runs inline.
func (s *Server) generate(ctx context.Context, req *engine.Request, stream engine.StreamFunc) (*engine.Result, error) {
	if s.sched == nil {
		return s.gen.Generate(ctx, req, stream)
	}
	var res *engine.Result
	err := s.sched.Submit(ctx, func(ctx context.Context) error {
		var err error
		res, err = s.gen.Generate(ctx, req, stream)
		return err
	})
	return res, err
}
