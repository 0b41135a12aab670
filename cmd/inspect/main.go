package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"stepassist/internal/journal"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to stepassist.db")
	last := flag.Int("last", 20, "show N most recent rows per table")
	jsonOut := flag.Bool("json", false, "output as JSON instead of tables")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/stepassist.db [--last N] [--json]")
		os.Exit(2)
	}

	store, err := journal.NewStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	if err := run(store, *last, *jsonOut); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region report

type report struct {
	GuardCounts    map[string]int       `json:"guard_counts"`
	RouteCounts    map[string]int       `json:"route_counts"`
	LatestAccepted *journal.GuardEntry  `json:"latest_accepted,omitempty"`
	RecentGuard    []journal.GuardEntry `json:"recent_guard"`
	RecentRoute    []journal.RouteEntry `json:"recent_route"`
}

func run(store *journal.Store, last int, jsonOut bool) error {
	guardCounts, err := store.CountByAction()
	if err != nil {
		return err
	}
	routeCounts, err := store.CountByMode()
	if err != nil {
		return err
	}
	latest, err := store.LatestAccepted()
	if err != nil {
		return err
	}
	recentGuard, err := store.ListGuard(last)
	if err != nil {
		return err
	}
	recentRoute, err := store.ListRoute(last)
	if err != nil {
		return err
	}

	rep := report{
		GuardCounts:    guardCounts,
		RouteCounts:    routeCounts,
		LatestAccepted: latest,
		RecentGuard:    recentGuard,
		RecentRoute:    recentRoute,
	}

	if jsonOut {
		return printJSON(rep)
	}
	return printTables(rep)
}

func printTables(rep report) error {
	fmt.Printf("Guard decisions: accept=%d defer=%d reject=%d\n",
		rep.GuardCounts["accept"], rep.GuardCounts["defer"], rep.GuardCounts["reject"])
	fmt.Printf("Route decisions: direct=%d template=%d\n",
		rep.RouteCounts["direct"], rep.RouteCounts["template"])

	if rep.LatestAccepted != nil {
		la := rep.LatestAccepted
		fmt.Printf("\nLatest accepted: %s step %d (conf %.2f) observed %s\n",
			la.ActivityID, la.StepIndex, la.Confidence, la.ObservedAt.Format("2006-01-02T15:04:05Z"))
	} else {
		fmt.Printf("\nLatest accepted: none\n")
	}

	fmt.Printf("\nRecent observations (newest first):\n")
	fmt.Printf("%-16s %4s  %5s  %-7s %-7s %5s  %s\n",
		"Activity", "Step", "Conf", "Action", "Band", "Count", "Observed")
	for _, e := range rep.RecentGuard {
		fmt.Printf("%-16s %4d  %5.2f  %-7s %-7s %5d  %s\n",
			e.ActivityID, e.StepIndex, e.Confidence, e.Action, e.Band, e.MatchCount,
			e.ObservedAt.Format("15:04:05"))
	}
	if len(rep.RecentGuard) == 0 {
		fmt.Println("  (none)")
	}

	fmt.Printf("\nRecent queries (newest first):\n")
	fmt.Printf("%-10s %-32s %-9s %5s  %-14s %6s\n",
		"Query", "Text", "Mode", "Score", "Class", "ms")
	for _, e := range rep.RecentRoute {
		fmt.Printf("%-10s %-32s %-9s %5.2f  %-14s %6d\n",
			shortID(e.QueryID), truncate(e.QueryText, 32), e.Mode, e.Score, e.Class, e.ElapsedMs)
	}
	if len(rep.RecentRoute) == 0 {
		fmt.Println("  (none)")
	}

	return nil
}

// #endregion report

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
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

// #endregion output
