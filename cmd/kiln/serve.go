package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/kilnserve/kiln/internal/api"
	"github.com/kilnserve/kiln/internal/backend"
	"github.com/kilnserve/kiln/internal/engine"
	"github.com/kilnserve/kiln/internal/logger"
	"github.com/kilnserve/kiln/internal/model"
	"github.com/kilnserve/kiln/internal/scheduler"
	"github.com/kilnserve/kiln/internal/tokenizer"
)

func serveCmd() *cli.Command {
	var (
		addr        string
		backendName string
		modelID     string
		maxContext  int64
		workers     int64
		queueSize   int64
		logLevel    string
		logFormat   string
		readTimeout time.Duration
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the OpenAI-compatible REST API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address",
				Value:       "127.0.0.1:8080",
				Destination: &addr,
			},
			&cli.StringFlag{
				Name:        "backend",
				Usage:       "compute backend (auto, cpu, optimized-cpu, cuda, metal)",
				Value:       "auto",
				Destination: &backendName,
			},
			&cli.StringFlag{
				Name:        "model-id",
				Usage:       "model id reported by the API",
				Value:       "kiln-builtin",
				Destination: &modelID,
			},
			&cli.Int64Flag{
				Name:        "max-context",
				Usage:       "context window in tokens",
				Value:       4096,
				Destination: &maxContext,
			},
			&cli.Int64Flag{
				Name:        "workers",
				Usage:       "concurrent generation workers",
				Value:       2,
				Destination: &workers,
			},
			&cli.Int64Flag{
				Name:        "queue-size",
				Usage:       "admission queue depth",
				Value:       16,
				Destination: &queueSize,
			},
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug, info, warn, error)",
				Value:       "info",
				Destination: &logLevel,
			},
			&cli.StringFlag{
				Name:        "log-format",
				Usage:       "log format (text, json, pretty)",
				Value:       "text",
				Destination: &logFormat,
			},
			&cli.DurationFlag{
				Name:        "read-timeout",
				Usage:       "read header timeout",
				Value:       30 * time.Second,
				Destination: &readTimeout,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := LoadConfig()
			applyServeConfig(cmd, cfg,
				&addr, &backendName, &modelID, &maxContext, &workers, &queueSize,
				&logLevel, &logFormat)

			log := logger.ForFormat(logFormat, os.Stderr, logger.ParseLevel(logLevel))
			ctx = logger.WithContext(ctx, log)
			if cfg.ModelToken != "" {
				log.Debug("model token configured")
			}

			device, err := backend.Select(log, backendName)
			if err != nil {
				return err
			}

			tok := tokenizer.NewByteLevel()
			tokCfg := tokenizer.ByteLevelConfig()
			info := model.Info{
				ID:            modelID,
				VocabSize:     tokCfg.VocabSize,
				EOSTokenID:    tokCfg.EOSTokenID,
				ContextWindow: int(maxContext),
			}
			rt := model.NewBuiltin(tokCfg.VocabSize, 256, engine.DefaultSeed)
			handle := model.NewHandle(rt, info, device)
			log.Info("model loaded",
				"model", modelID,
				"device", string(device),
				"context_window", info.ContextWindow,
			)

			eng := engine.New(handle, tok, log)
			sched := scheduler.New(log, scheduler.Config{
				Workers:   int(workers),
				QueueSize: int(queueSize),
			})

			models := api.NewModelStore()
			models.Add(api.ModelCard{
				ID:            modelID,
				Created:       time.Now().Unix(),
				ContextWindow: info.ContextWindow,
			})

			server := api.NewServer(eng, sched, models, log)
			e := echo.New()
			e.Use(middleware.RequestLogger())
			e.Use(middleware.Recover())
			server.Register(e)

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return sched.Run(ctx)
			})
			g.Go(func() error {
				log.Info("starting server", "address", addr)
				sc := echo.StartConfig{
					Address: addr,
					BeforeServeFunc: func(srv *http.Server) error {
						srv.ReadHeaderTimeout = readTimeout
						return nil
					},
				}
				return sc.Start(ctx, e)
			})
			return g.Wait()
		},
	}
}
