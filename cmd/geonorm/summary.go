package main

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/terratensor/geonorm/internal/app/services"
)

// printSummary итог запуска в консоль
func printSummary(w io.Writer, result *services.RunResult, minRate float64, took time.Duration) {
	r := result.Report
	title := color.New(color.FgWhite, color.Bold)
	good := color.New(color.FgGreen)
	warn := color.New(color.FgYellow)
	bad := color.New(color.FgRed)

	fmt.Fprintln(w)
	title.Fprintln(w, "NORMALIZATION COMPLETE")
	fmt.Fprintf(w, "Run:      %s (%v)\n", r.RunID, took.Round(time.Millisecond))
	fmt.Fprintf(w, "Total:    %d\n", r.Total)
	good.Fprintf(w, "Matched:  %d (%.2f%%)\n", r.Matched, r.MatchedRate*100)
	warn.Fprintf(w, "Adjusted: %d (%.2f%%)\n", r.Adjusted, r.AdjustedRate*100)
	bad.Fprintf(w, "Failed:   %d (%.2f%%)\n", r.Failed, r.FailedRate*100)

	rate := good
	if minRate > 0 && r.SuccessRate < minRate {
		rate = bad
	}
	rate.Fprintf(w, "Success:  %.2f%%\n", r.SuccessRate*100)

	fmt.Fprintln(w)
	for _, out := range result.Outputs {
		fmt.Fprintf(w, "Output: %s\n", out)
	}
	if result.ReportPaths.Markdown != "" {
		fmt.Fprintf(w, "Report: %s\n", result.ReportPaths.Markdown)
	}
}

// printIndex размеры индекса границ
func printIndex(w io.Writer, ix services.IndexResult) {
	title := color.New(color.FgWhite, color.Bold)

	title.Fprintln(w, "BOUNDARY INDEX")
	fmt.Fprintf(w, "Features:   %d\n", ix.Load.Features)
	fmt.Fprintf(w, "Indexed:    %d\n", ix.Load.Indexed)
	fmt.Fprintf(w, "Malformed:  %d\n", ix.Load.Malformed)
	fmt.Fprintf(w, "Not target: %d\n", ix.Load.NotTarget)
	fmt.Fprintf(w, "Null geom:  %d\n", ix.Load.NoGeometry)
	fmt.Fprintf(w, "Provinces:  %d\n", ix.Stats.Provinces)
	fmt.Fprintf(w, "Districts:  %d\n", ix.Stats.Districts)
	fmt.Fprintf(w, "Wards:      %d\n", ix.Stats.Wards)
	fmt.Fprintf(w, "Polygons:   %d\n", ix.Stats.Polygons)
}
