package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/kestrelworks/steptrace/internal/provenance"
	"github.com/kestrelworks/steptrace/internal/replay"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to the decision log")
	last := flag.Int("last", 20, "number of most recent decisions to export")
	outPath := flag.String("out", "", "output fixture JSON path")
	flag.Parse()

	if *dbPath == "" || *outPath == "" {
		fmt.Fprintln(os.Stderr, "usage: fixture-export --db path/to/steptrace.db --out path/to/fixture.json [--last N]")
		os.Exit(2)
	}

	if err := run(*dbPath, *last, *outPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region extract

func run(dbPath string, last int, outPath string) error {
	plog, err := provenance.Open(dbPath)
	if err != nil {
		return err
	}
	defer plog.Close()

	decisions, err := plog.RecentDecisions(last)
	if err != nil {
		return err
	}
	if len(decisions) == 0 {
		return fmt.Errorf("no decisions found in %s", dbPath)
	}

	// RecentDecisions returns newest first; reverse for chronological order.
	for i, j := 0, len(decisions)-1; i < j; i, j = i+1, j-1 {
		decisions[i], decisions[j] = decisions[j], decisions[i]
	}

	start := decisions[0].CreatedAt
	observations := make([]replay.FixtureObservation, len(decisions))
	for i, d := range decisions {
		obs := replay.FixtureObservation{
			ID:             d.ObservationID,
			OffsetSeconds:  d.CreatedAt.Sub(start).Seconds(),
			ExpectedAction: d.Action,
		}
		if d.TaskID != "" {
			obs.Candidate = &replay.FixtureCandidate{
				TaskID:     d.TaskID,
				StepIndex:  d.StepIndex,
				Similarity: d.Similarity,
			}
		}
		observations[i] = obs
	}

	fixture := replay.Fixture{
		Description:  fmt.Sprintf("Real session export: %d decisions from the tracker decision log", len(decisions)),
		Observations: observations,
	}
	return writeFixture(fixture, outPath)
}

// #endregion extract

// #region output

func writeFixture(fixture replay.Fixture, outPath string) error {
	data, err := json.MarshalIndent(fixture, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}
	if err := os.WriteFile(outPath, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", outPath, err)
	}
	fmt.Printf("Wrote fixture to %s (%d bytes, %d observations)\n", outPath, len(data), len(fixture.Observations))
	return nil
}

// #endregion output
