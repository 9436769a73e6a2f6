package main

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kestrelworks/steptrace/internal/answer"
	"github.com/kestrelworks/steptrace/internal/clean"
	"github.com/kestrelworks/steptrace/internal/config"
	"github.com/kestrelworks/steptrace/internal/engine"
	"github.com/kestrelworks/steptrace/internal/feed"
	"github.com/kestrelworks/steptrace/internal/match"
	"github.com/kestrelworks/steptrace/internal/provenance"
)

// #region main
func main() {
	cfgPath := envOr("STEPTRACE_CONFIG", "")

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := buildLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng, cleanup, err := buildEngine(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("startup failed", zap.Error(err))
	}
	defer cleanup()

	// Metrics endpoint
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
			logger.Warn("metrics server stopped", zap.Error(err))
		}
	}()

	// Optional NATS observation feed
	if cfg.Feed.Enabled {
		f, err := feed.Start(ctx, cfg.FeedConfig(), eng, logger)
		if err != nil {
			logger.Fatal("start observation feed", zap.Error(err))
		}
		defer f.Close()
	}

	fmt.Println("Step tracker ready.")
	fmt.Println("Lines are observations; prefix a question with '?'.")
	fmt.Println("Commands: state, history, status, quit")

	runREPL(ctx, eng, logger)
}

// #endregion main

// #region setup

func buildLogger(level string) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if level != "" {
		lvl, err := zap.ParseAtomicLevel(level)
		if err != nil {
			return nil, fmt.Errorf("parse log level %q: %w", level, err)
		}
		zcfg.Level = lvl
	}
	return zcfg.Build()
}

// buildEngine assembles the collaborators and the engine. The returned cleanup
// releases the matcher and the decision log.
func buildEngine(ctx context.Context, cfg config.Config, logger *zap.Logger) (*engine.Engine, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	embedder, err := match.NewFastEmbedder(cfg.Matcher.EmbeddingModel, cfg.Matcher.ModelCacheDir)
	if err != nil {
		return nil, nil, fmt.Errorf("init embedder: %w", err)
	}
	closers = append(closers, func() { embedder.Close() })

	matcher, err := match.New(cfg.MatchConfig(), embedder)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("init matcher: %w", err)
	}
	closers = append(closers, func() { matcher.Close() })

	if cfg.TaskFile != "" {
		task, err := match.LoadTaskDefinition(cfg.TaskFile)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		if err := matcher.EnsureCollection(ctx); err != nil {
			cleanup()
			return nil, nil, err
		}
		if err := matcher.IndexTask(ctx, task); err != nil {
			cleanup()
			return nil, nil, err
		}
		logger.Info("indexed task definition",
			zap.String("task_id", task.TaskID), zap.Int("steps", len(task.Steps)))
	}

	deps := engine.Deps{
		Cleaner: clean.New(clean.DefaultConfig()),
		Matcher: matcher,
		Logger:  logger,
	}

	if cfg.Answerer.Enabled {
		answerer, err := answer.New(cfg.AnswerConfig())
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("init answerer: %w", err)
		}
		deps.Answerer = answerer
	} else {
		logger.Info("external answerer disabled, fallback degrades to fixed message")
	}

	if cfg.ProvenanceDB != "" {
		plog, err := provenance.Open(cfg.ProvenanceDB)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		closers = append(closers, func() { plog.Close() })
		deps.Recorder = plog
	}

	eng, err := engine.New(cfg.EngineOptions(), deps)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return eng, cleanup, nil
}

// #endregion setup

// #region repl

// runREPL reads stdin: '?'-prefixed lines are queries, bare commands inspect
// the store, everything else is an observation.
func runREPL(ctx context.Context, eng *engine.Engine, logger *zap.Logger) {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if ctx.Err() != nil {
			return
		}

		switch line {
		case "quit", "exit":
			return
		case "state":
			printState(eng)
			continue
		case "history":
			printHistory(eng)
			continue
		case "status":
			printStatus(eng)
			continue
		}

		if strings.HasPrefix(line, "?") {
			q := strings.TrimSpace(strings.TrimPrefix(line, "?"))
			result := eng.ProcessQuery(ctx, uuid.New().String(), q)
			route := "template"
			if result.UsedFallback {
				route = "fallback"
			}
			fmt.Printf("\n%s\n[%s, %s]\n\n", result.ResponseText, route, result.Latency.Round(time.Millisecond))
			continue
		}

		if err := eng.ProcessObservation(ctx, uuid.New().String(), line); err != nil {
			logger.Warn("observation aborted", zap.Error(err))
		}
	}
}

func printState(eng *engine.Engine) {
	rec, ok := eng.CurrentState()
	if !ok {
		fmt.Println("no belief yet")
		return
	}
	fmt.Printf("task=%s step=%d title=%q level=%s similarity=%.3f at=%s\n",
		rec.TaskID, rec.StepIndex, rec.Title, rec.Level, rec.Similarity,
		rec.CreatedAt.Format("15:04:05"))
}

func printHistory(eng *engine.Engine) {
	history := eng.History()
	if len(history) == 0 {
		fmt.Println("history empty")
		return
	}
	for i, rec := range history {
		fmt.Printf("%2d. task=%s step=%d level=%s at=%s\n",
			i+1, rec.TaskID, rec.StepIndex, rec.Level, rec.CreatedAt.Format("15:04:05"))
	}
}

func printStatus(eng *engine.Engine) {
	st := eng.RecentObservationStatus(0)
	fmt.Printf("fallback_recommended=%v consecutive_low=%d\n", st.FallbackRecommended, st.ConsecutiveLow)
	if st.SecondsSinceLastUpdate != nil {
		fmt.Printf("seconds_since_last_update=%.1f\n", *st.SecondsSinceLastUpdate)
	}
	if st.SecondsSinceLastObservation != nil {
		fmt.Printf("seconds_since_last_observation=%.1f\n", *st.SecondsSinceLastObservation)
	}
	for _, r := range st.Reasons {
		fmt.Printf("reason: %s\n", r)
	}
	stats := eng.MemoryStats()
	fmt.Printf("window=%d entries (%d bytes), history=%d records\n",
		stats.WindowSize, stats.WindowBytes, stats.HistorySize)
}

// #endregion repl

// #region helpers
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion helpers
