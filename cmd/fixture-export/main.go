package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"slices"
	"time"

	"stepassist/internal/journal"
	"stepassist/internal/replay"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to stepassist.db")
	outPath := flag.String("out", "", "output fixture JSON path")
	last := flag.Int("last", 20, "number of most recent rows to export per table")
	description := flag.String("description", "", "fixture description (default derived from row counts)")
	flag.Parse()

	if *dbPath == "" || *outPath == "" {
		fmt.Fprintln(os.Stderr, "usage: fixture-export --db path/to/db --out path/to/fixture.json [--last N] [--description text]")
		os.Exit(2)
	}

	if err := run(*dbPath, *outPath, *last, *description); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region export

func run(dbPath, outPath string, last int, description string) error {
	store, err := journal.NewStore(dbPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer store.Close()

	guardRows, err := store.ListGuard(last)
	if err != nil {
		return fmt.Errorf("guard rows: %w", err)
	}
	routeRows, err := store.ListRoute(last)
	if err != nil {
		return fmt.Errorf("route rows: %w", err)
	}
	if len(guardRows) == 0 && len(routeRows) == 0 {
		return fmt.Errorf("journal is empty, nothing to export")
	}

	// List queries return newest first; flip to chronological order.
	slices.Reverse(guardRows)
	slices.Reverse(routeRows)

	fixture := buildFixture(guardRows, routeRows, description)
	return writeFixture(fixture, outPath)
}

// buildFixture merges guard and route rows chronologically into fixture
// events, with the recorded outcomes as the expectations.
func buildFixture(guardRows []journal.GuardEntry, routeRows []journal.RouteEntry, description string) replay.Fixture {
	events := make([]replay.FixtureEvent, 0, len(guardRows)+len(routeRows))
	expected := make([]replay.Expected, 0, len(guardRows)+len(routeRows))

	i, j := 0, 0
	for i < len(guardRows) || j < len(routeRows) {
		takeGuard := j >= len(routeRows) ||
			(i < len(guardRows) && !guardRows[i].CreatedAt.After(routeRows[j].CreatedAt))
		if takeGuard {
			g := guardRows[i]
			id := fmt.Sprintf("guard-%d", g.ID)
			events = append(events, replay.FixtureEvent{
				Kind:       string(replay.KindObservation),
				ID:         id,
				ActivityID: g.ActivityID,
				StepIndex:  g.StepIndex,
				Confidence: g.Confidence,
				Timestamp:  g.ObservedAt.UTC().Format(time.RFC3339Nano),
			})
			expected = append(expected, replay.Expected{ID: id, Action: g.Action})
			i++
			continue
		}
		r := routeRows[j]
		id := fmt.Sprintf("route-%d", r.ID)
		events = append(events, replay.FixtureEvent{
			Kind: string(replay.KindQuery),
			ID:   id,
			Text: r.QueryText,
		})
		expected = append(expected, replay.Expected{ID: id, Mode: r.Mode})
		j++
	}

	if description == "" {
		description = fmt.Sprintf("Journal export: %d observations, %d queries", len(guardRows), len(routeRows))
	}

	// Config left zero so the fixture replays with the shipped defaults.
	return replay.Fixture{
		Description: description,
		Events:      events,
		Expected:    expected,
	}
}

func writeFixture(fixture replay.Fixture, outPath string) error {
	data, err := json.MarshalIndent(fixture, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}

	if err := os.WriteFile(outPath, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", outPath, err)
	}

	fmt.Printf("Wrote fixture to %s (%d bytes, %d events)\n", outPath, len(data), len(fixture.Events))
	return nil
}

// #endregion export
