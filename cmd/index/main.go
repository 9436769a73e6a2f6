package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/kestrelworks/steptrace/internal/config"
	"github.com/kestrelworks/steptrace/internal/match"
)

// #region main

// index seeds the reference-step collection from task definition files, so
// the tracker can start against an already populated store.
func main() {
	cfgPath := flag.String("config", "", "path to tracker config YAML")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: index [--config path] task.json [task.json ...]")
		os.Exit(2)
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg, flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region index

func run(cfg config.Config, taskFiles []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	embedder, err := match.NewFastEmbedder(cfg.Matcher.EmbeddingModel, cfg.Matcher.ModelCacheDir)
	if err != nil {
		return err
	}
	defer embedder.Close()

	matcher, err := match.New(cfg.MatchConfig(), embedder)
	if err != nil {
		return err
	}
	defer matcher.Close()

	if err := matcher.EnsureCollection(ctx); err != nil {
		return err
	}

	for _, path := range taskFiles {
		task, err := match.LoadTaskDefinition(path)
		if err != nil {
			return err
		}
		if err := matcher.IndexTask(ctx, task); err != nil {
			return err
		}
		fmt.Printf("indexed %s: task %s, %d steps\n", path, task.TaskID, len(task.Steps))
	}
	return nil
}

// #endregion index
