package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/kestrelworks/steptrace/internal/provenance"
	"github.com/kestrelworks/steptrace/internal/replay"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to the decision log (DB mode)")
	fixturePath := flag.String("fixture", "", "path to fixture JSON (fixture mode)")
	last := flag.Int("last", 200, "DB mode: replay the N most recent decisions")
	flag.Parse()

	if (*dbPath == "" && *fixturePath == "") || (*dbPath != "" && *fixturePath != "") {
		fmt.Fprintln(os.Stderr, "usage: replay --db path/to/steptrace.db [--last N]")
		fmt.Fprintln(os.Stderr, "       replay --fixture path/to/fixture.json")
		os.Exit(2)
	}

	var fix *replay.Fixture
	var err error
	if *fixturePath != "" {
		fix, err = replay.LoadFixture(*fixturePath)
	} else {
		fix, err = fixtureFromDB(*dbPath, *last)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}

	results, summary, err := replay.Replay(fix, time.Now().UTC())
	if err != nil {
		fmt.Fprintf(os.Stderr, "replay: %v\n", err)
		os.Exit(2)
	}
	os.Exit(printComparison(results, summary))
}

// #endregion main

// #region db-extract

// fixtureFromDB rebuilds a replay fixture from the recorded decisions. The
// recorded actions become the expected actions, so a replay against the same
// policy config must reproduce them.
func fixtureFromDB(dbPath string, last int) (*replay.Fixture, error) {
	plog, err := provenance.Open(dbPath)
	if err != nil {
		return nil, err
	}
	defer plog.Close()

	decisions, err := plog.RecentDecisions(last)
	if err != nil {
		return nil, err
	}
	if len(decisions) == 0 {
		return nil, fmt.Errorf("no decisions found in %s", dbPath)
	}

	// RecentDecisions returns newest first; reverse for chronological replay.
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

	return &replay.Fixture{
		Description:  fmt.Sprintf("rebuilt from %d recorded decisions in %s", len(decisions), dbPath),
		Observations: observations,
	}, nil
}

// #endregion db-extract

// #region output

// printComparison outputs a per-observation table and returns the exit code:
// non-zero when any replayed action diverged from the expectation.
func printComparison(results []replay.Result, summary replay.Summary) int {
	fmt.Printf("%-14s| %-8s| %-10s| %-18s| %s\n", "Observation", "Level", "Action", "Jump", "Match")
	fmt.Printf("%-14s+%-9s+%-11s+%-19s+%s\n",
		"--------------", "---------", "-----------", "-------------------", "------")

	for _, r := range results {
		match := "OK"
		if !r.Matched {
			match = "DIFF"
		}
		if r.ExpectedAction == "" {
			match = "—"
		}
		fmt.Printf("%-14s| %-8s| %-10s| %-18s| %s\n",
			shortID(r.ObservationID), r.Level, r.Action, r.Jump, match)
	}

	fmt.Printf("\nSummary: %d observations, %d updates, %d observes, %d ignores, %d diverge\n",
		summary.TotalObservations, summary.Updates, summary.Observes,
		summary.Ignores, summary.Mismatches)
	if summary.FinalBelief != nil {
		fmt.Printf("Final belief: task=%s step=%d level=%s\n",
			summary.FinalBelief.TaskID, summary.FinalBelief.StepIndex, summary.FinalBelief.Level)
	} else {
		fmt.Println("Final belief: none")
	}

	if summary.Mismatches > 0 {
		return 1
	}
	return 0
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

// #endregion output
