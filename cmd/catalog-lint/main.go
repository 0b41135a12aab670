package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"stepassist/internal/render"
)

// #region main

func main() {
	catalogPath := flag.String("catalog", "catalog.yaml", "path to step catalog YAML")
	jsonOut := flag.Bool("json", false, "output summary as JSON")
	flag.Parse()

	catalog, err := render.LoadCatalog(*catalogPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "catalog invalid: %v\n", err)
		os.Exit(1)
	}

	if *jsonOut {
		if err := printJSON(*catalogPath, catalog); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}
	printSummary(*catalogPath, catalog)
}

// #endregion main

// #region output

type activitySummary struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Steps        int    `json:"steps"`
	TimedSeconds int    `json:"timed_seconds"`
}

type lintSummary struct {
	Path       string            `json:"path"`
	Activities []activitySummary `json:"activities"`
}

func summarize(path string, catalog *render.Catalog) lintSummary {
	out := lintSummary{Path: path}
	for _, a := range catalog.Activities {
		total := 0
		for _, s := range a.Steps {
			total += s.DurationSeconds
		}
		out.Activities = append(out.Activities, activitySummary{
			ID:           a.ID,
			Title:        a.Title,
			Steps:        len(a.Steps),
			TimedSeconds: total,
		})
	}
	return out
}

func printSummary(path string, catalog *render.Catalog) {
	summary := summarize(path, catalog)
	fmt.Printf("%s: valid, %d activities\n", path, len(summary.Activities))
	for _, a := range summary.Activities {
		fmt.Printf("  %-18s %-28s %2d steps", a.ID, a.Title, a.Steps)
		if a.TimedSeconds > 0 {
			fmt.Printf("  ~%dm recorded", (a.TimedSeconds+59)/60)
		}
		fmt.Println()
	}
}

func printJSON(path string, catalog *render.Catalog) error {
	data, err := json.MarshalIndent(summarize(path, catalog), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

// #endregion output
