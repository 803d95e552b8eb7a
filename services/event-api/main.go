package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"eventscout/common/cache"
	"eventscout/common/config"
	"eventscout/common/extractor"
	"eventscout/common/fetcher"
	"eventscout/common/llm"
	"eventscout/common/logging"
	"eventscout/common/metaphor"
	"eventscout/common/metrics"
	"eventscout/common/models"
	"eventscout/common/search"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:           "event-api",
		Short:         "Serve recent events and structured event extraction over HTTP",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "config.yml", "Path to YAML config file (optional)")
	return cmd
}

func run(ctx context.Context, cfg *config.Config) error {
	logger := logging.New(os.Stdout, logging.LevelFromString(cfg.LogLevel))
	slog.SetDefault(logger)
	gin.SetMode(cfg.Server.GinMode)

	m := metrics.New()

	mc := metaphor.New(cfg.Metaphor.BaseURL, cfg.Metaphor.APIKey, cfg.Metaphor.Timeout,
		metaphor.WithUserAgent(cfg.Metaphor.UserAgent),
		metaphor.WithObserver(func(op string, err error) { m.Upstream("metaphor", op, err) }),
	)
	provider := llm.New(
		llm.WithAPIKey(cfg.OpenAI.APIKey),
		llm.WithEndpoint(cfg.OpenAI.BaseURL),
		llm.WithModel(cfg.OpenAI.Model),
		llm.WithEmbeddingModel(cfg.OpenAI.EmbeddingModel),
		llm.WithTimeout(cfg.OpenAI.Timeout),
		llm.WithMaxRetries(*cfg.OpenAI.MaxRetries),
	)
	observed := &observedProvider{provider: provider, metrics: m}

	responses := cache.New[models.Event](cfg.Cache.DefaultTTL)
	sweeper, err := cache.StartSweeper(responses, cfg.Cache.SweepSchedule, logger)
	if err != nil {
		return err
	}
	defer sweeper.Stop()

	srv := &Server{
		Search: search.New(mc, search.Options{
			Query:      cfg.Search.Query,
			NumResults: cfg.Search.NumResults,
			Autoprompt: *cfg.Search.Autoprompt,
		}),
		Fetcher: fetcher.New(mc),
		Extractor: extractor.New(observed, observed, extractor.Options{
			ChunkSize:    cfg.Extractor.ChunkSize,
			ChunkOverlap: *cfg.Extractor.ChunkOverlap,
			TopK:         cfg.Extractor.TopK,
			ContextChars: cfg.Extractor.ContextChars,
			Logger:       logger,
		}),
		Cache:        responses,
		EventTTL:     cfg.Cache.EventTTL,
		Metrics:      m,
		Logger:       logger,
		AllowOrigins: cfg.Server.AllowOrigins,
	}

	// Create HTTP server
	httpSrv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      srv.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting event API server", "addr", cfg.Server.Addr, "model", provider.ModelName())
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}
	logger.Info("shutting down event API server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("event API server exited")
	return nil
}

// observedProvider counts OpenAI calls in the upstream metrics.
type observedProvider struct {
	provider *llm.Provider
	metrics  *metrics.Metrics
}

func (o *observedProvider) Complete(ctx context.Context, prompt string) (string, error) {
	out, err := o.provider.Complete(ctx, prompt)
	o.metrics.Upstream("openai", "complete", err)
	return out, err
}

func (o *observedProvider) CompleteJSON(ctx context.Context, prompt string, schema llm.Schema) (string, error) {
	out, err := o.provider.CompleteJSON(ctx, prompt, schema)
	o.metrics.Upstream("openai", "complete_json", err)
	return out, err
}

func (o *observedProvider) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	out, err := o.provider.Embed(ctx, texts)
	o.metrics.Upstream("openai", "embed", err)
	return out, err
}
