package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/kestrelworks/steptrace/internal/provenance"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to the decision log")
	last := flag.Int("last", 20, "show N most recent decisions")
	counts := flag.Bool("counts", false, "show per-action totals instead of rows")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/steptrace.db [--last N] [--counts] [--json]")
		os.Exit(2)
	}

	plog, err := provenance.Open(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer plog.Close()

	if *counts {
		err = runCountsMode(plog, *jsonOut)
	} else {
		err = runListMode(plog, *last, *jsonOut)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region list-mode

type listRow struct {
	ObservationID string  `json:"observation_id"`
	TaskID        string  `json:"task_id,omitempty"`
	StepIndex     int     `json:"step_index"`
	Level         string  `json:"level"`
	Similarity    float32 `json:"similarity"`
	Action        string  `json:"action"`
	Reason        string  `json:"reason,omitempty"`
	CreatedAt     string  `json:"created_at"`
}

func runListMode(plog *provenance.Log, last int, jsonOut bool) error {
	decisions, err := plog.RecentDecisions(last)
	if err != nil {
		return err
	}
	if len(decisions) == 0 {
		fmt.Fprintln(os.Stderr, "no decisions found")
		return nil
	}

	// Store returns newest first; reverse for chronological display.
	rows := make([]listRow, len(decisions))
	for i, d := range decisions {
		rows[len(decisions)-1-i] = listRow{
			ObservationID: d.ObservationID,
			TaskID:        d.TaskID,
			StepIndex:     d.StepIndex,
			Level:         d.Level,
			Similarity:    d.Similarity,
			Action:        d.Action,
			Reason:        d.Reason,
			CreatedAt:     d.CreatedAt.Format("2006-01-02T15:04:05Z"),
		}
	}

	if jsonOut {
		return printJSON(rows)
	}

	fmt.Printf("%-14s  %-10s  %4s  %-7s  %5s  %-8s  %s\n",
		"Observation", "Task", "Step", "Level", "Sim", "Action", "Time")
	fmt.Printf("%-14s+-%-10s+-%4s+-%-7s+-%5s+-%-8s+-%s\n",
		"--------------", "----------", "----", "-------", "-----", "--------", "--------------------")
	for _, r := range rows {
		task := r.TaskID
		if task == "" {
			task = "—"
		}
		fmt.Printf("%-14s  %-10s  %4d  %-7s  %5.3f  %-8s  %s\n",
			shortID(r.ObservationID), task, r.StepIndex, r.Level, r.Similarity, r.Action, r.CreatedAt)
	}
	return nil
}

// #endregion list-mode

// #region counts-mode

func runCountsMode(plog *provenance.Log, jsonOut bool) error {
	counts, err := plog.ActionCounts()
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(counts)
	}

	total := 0
	order := []string{"update", "observe", "ignore"}
	for _, action := range order {
		fmt.Printf("  %-8s %d\n", action, counts[action])
		total += counts[action]
	}
	for action, n := range counts {
		known := false
		for _, o := range order {
			if action == o {
				known = true
			}
		}
		if !known {
			fmt.Printf("  %-8s %d\n", action, n)
			total += n
		}
	}
	fmt.Printf("  %-8s %d\n", "total", total)
	return nil
}

// #endregion counts-mode

// #region output

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

// #endregion output
