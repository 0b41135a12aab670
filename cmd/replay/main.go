package main

import (
	"flag"
	"fmt"
	"os"

	"stepassist/internal/journal"
	"stepassist/internal/observe"
	"stepassist/internal/replay"
	"stepassist/internal/route"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to stepassist.db (DB mode)")
	fixturePath := flag.String("fixture", "", "path to fixture JSON (fixture mode)")
	flag.Parse()

	if (*dbPath == "" && *fixturePath == "") || (*dbPath != "" && *fixturePath != "") {
		fmt.Fprintln(os.Stderr, "usage: replay --db path/to/stepassist.db")
		fmt.Fprintln(os.Stderr, "       replay --fixture path/to/fixture.json")
		os.Exit(2)
	}

	var exitCode int
	if *fixturePath != "" {
		exitCode = runFixtureMode(*fixturePath)
	} else {
		exitCode = runDBMode(*dbPath)
	}
	os.Exit(exitCode)
}

// #endregion main

// #region fixture-mode

func runFixtureMode(path string) int {
	f, err := replay.LoadFixture(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load fixture: %v\n", err)
		return 2
	}

	events, err := f.DomainEvents()
	if err != nil {
		fmt.Fprintf(os.Stderr, "convert events: %v\n", err)
		return 2
	}

	results, err := replay.Replay(events, f.Config.ToReplayConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "replay: %v\n", err)
		return 2
	}

	return printComparison(results, f.Expected)
}

// #endregion fixture-mode

// #region db-mode

// runDBMode rebuilds the event stream from the journal and replays it
// against the recorded outcomes with the current default thresholds, so
// parameter drift shows up as DIFF rows.
func runDBMode(dbPath string) int {
	store, err := journal.NewStore(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		return 2
	}
	defer store.Close()

	guardRows, err := store.GuardHistory()
	if err != nil {
		fmt.Fprintf(os.Stderr, "guard history: %v\n", err)
		return 2
	}
	routeRows, err := store.RouteHistory()
	if err != nil {
		fmt.Fprintf(os.Stderr, "route history: %v\n", err)
		return 2
	}
	if len(guardRows) == 0 && len(routeRows) == 0 {
		fmt.Fprintln(os.Stderr, "journal is empty")
		return 2
	}

	events, expected := mergeJournal(guardRows, routeRows)

	results, err := replay.Replay(events, replay.DefaultReplayConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "replay: %v\n", err)
		return 2
	}

	return printComparison(results, expected)
}

// mergeJournal interleaves guard and route rows by creation time into one
// event stream plus the recorded outcomes. Creation order approximates the
// live interleaving; queries answered concurrently may replay against a
// slightly different snapshot than they saw live.
func mergeJournal(guardRows []journal.GuardEntry, routeRows []journal.RouteEntry) ([]replay.Event, []replay.Expected) {
	events := make([]replay.Event, 0, len(guardRows)+len(routeRows))
	expected := make([]replay.Expected, 0, len(guardRows)+len(routeRows))

	i, j := 0, 0
	for i < len(guardRows) || j < len(routeRows) {
		takeGuard := j >= len(routeRows) ||
			(i < len(guardRows) && !guardRows[i].CreatedAt.After(routeRows[j].CreatedAt))
		if takeGuard {
			g := guardRows[i]
			id := fmt.Sprintf("guard-%d", g.ID)
			events = append(events, replay.Event{
				Kind: replay.KindObservation,
				ID:   id,
				Obs: observe.Observation{
					ActivityID: g.ActivityID,
					StepIndex:  g.StepIndex,
					Confidence: g.Confidence,
					ObservedAt: g.ObservedAt,
				},
			})
			expected = append(expected, replay.Expected{ID: id, Action: g.Action})
			i++
			continue
		}
		r := routeRows[j]
		id := fmt.Sprintf("route-%d", r.ID)
		events = append(events, replay.Event{
			Kind:  replay.KindQuery,
			ID:    id,
			Query: route.Query{ID: r.QueryID, Text: r.QueryText},
		})
		expected = append(expected, replay.Expected{ID: id, Mode: r.Mode})
		j++
	}

	return events, expected
}

// #endregion db-mode

// #region output

// printComparison outputs a comparison table and returns the exit code:
// 0 all match, 1 divergence.
func printComparison(results []replay.ReplayResult, expected []replay.Expected) int {
	fmt.Printf("%-12s| %-10s| %-10s| %s\n", "Event", "Expected", "Replayed", "Match")
	fmt.Printf("%-12s+%-11s+%-11s+%s\n", "------------", "-----------", "-----------", "------")

	matches := 0
	total := len(results)
	if len(expected) < total {
		total = len(expected)
	}

	for i := 0; i < total; i++ {
		r, e := results[i], expected[i]
		want, got := e.Action, r.Action
		if e.Mode != "" {
			want, got = e.Mode, r.Mode
		}
		match := "DIFF"
		if want == got {
			match = "OK"
			matches++
		}
		fmt.Printf("%-12s| %-10s| %-10s| %s\n", r.ID, want, got, match)
	}

	diverge := total - matches
	if len(results) != len(expected) {
		fmt.Printf("\nWARNING: %d results vs %d expected\n", len(results), len(expected))
		diverge++
	}
	fmt.Printf("\nSummary: %d compared, %d match, %d diverge\n", total, matches, diverge)

	if diverge > 0 {
		return 1
	}
	return 0
}

// #endregion output
