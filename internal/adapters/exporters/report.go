package exporters

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/terratensor/geonorm/internal/app/qc"
)

const (
	// TargetSuccessRate порог успешности, который проверяется в отчёте
	TargetSuccessRate = 0.99
	// TargetFailedRate допустимая доля failed
	TargetFailedRate = 0.01

	reportProblemDistricts = 15
	reportSamples          = 20
)

// ReportPaths пути к сохранённым отчётам
type ReportPaths struct {
	JSON     string
	Markdown string
}

// WriteReport сохраняет отчёт QC в JSON и Markdown в каталоге dir
func WriteReport(dir string, r *qc.Report) (ReportPaths, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return ReportPaths{}, fmt.Errorf("failed to create report dir: %w", err)
	}

	paths := ReportPaths{
		JSON:     filepath.Join(dir, "geo_qc_report.json"),
		Markdown: filepath.Join(dir, "geo_qc_report.md"),
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return ReportPaths{}, fmt.Errorf("failed to encode report: %w", err)
	}
	if err := os.WriteFile(paths.JSON, data, 0644); err != nil {
		return ReportPaths{}, fmt.Errorf("failed to write json report: %w", err)
	}

	if err := os.WriteFile(paths.Markdown, []byte(RenderMarkdown(r)), 0644); err != nil {
		return ReportPaths{}, fmt.Errorf("failed to write markdown report: %w", err)
	}

	return paths, nil
}

// RenderMarkdown отчёт QC для чтения человеком
func RenderMarkdown(r *qc.Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Geo QC Report - Admin Level Verification\n\n")
	fmt.Fprintf(&b, "**Run:** %s\n", r.RunID)
	fmt.Fprintf(&b, "**Generated:** %s\n", r.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "**Method:** Offline point-in-polygon against administrative boundaries\n\n")

	b.WriteString("## Summary\n\n")
	b.WriteString("| Metric | Value |\n|--------|-------|\n")
	fmt.Fprintf(&b, "| Total Records | %d |\n", r.Total)
	fmt.Fprintf(&b, "| Matched (point in correct polygon) | %d (%s) |\n", r.Matched, percent(r.MatchedRate))
	fmt.Fprintf(&b, "| Adjusted (moved to correct polygon) | %d (%s) |\n", r.Adjusted, percent(r.AdjustedRate))
	fmt.Fprintf(&b, "| Failed (no polygon found) | %d (%s) |\n", r.Failed, percent(r.FailedRate))
	fmt.Fprintf(&b, "| **Success Rate** | **%s** |\n\n", percent(r.SuccessRate))

	b.WriteString("## By Match Level\n\n")
	b.WriteString("| Level | Count |\n|-------|-------|\n")
	for _, level := range []string{"ward", "district", "province", "none"} {
		fmt.Fprintf(&b, "| %s | %d |\n", level, r.ByLevel[level])
	}
	b.WriteString("\n")

	b.WriteString("## By Method\n\n")
	b.WriteString("| Method | Count |\n|--------|-------|\n")
	for _, method := range sortedKeys(r.ByMethod) {
		fmt.Fprintf(&b, "| %s | %d |\n", method, r.ByMethod[method])
	}
	b.WriteString("\n")

	b.WriteString("## By Province\n\n")
	b.WriteString("| Province | Total | Matched | Adjusted | Failed | Success Rate |\n")
	b.WriteString("|----------|-------|---------|----------|--------|--------------|\n")
	for _, g := range r.ByProvince {
		fmt.Fprintf(&b, "| %s | %d | %d | %d | %d | %s |\n",
			cell(g.Province), g.Total, g.Matched, g.Adjusted, g.Failed, percent(g.SuccessRate))
	}
	b.WriteString("\n")

	b.WriteString("## Top Districts with Adjustments\n\n")
	b.WriteString("| Province | District | Total | Matched | Adjusted | Failed |\n")
	b.WriteString("|----------|----------|-------|---------|----------|--------|\n")
	for _, g := range problemDistricts(r.ByDistrict, reportProblemDistricts) {
		fmt.Fprintf(&b, "| %s | %s | %d | %d | %d | %d |\n",
			cell(g.Province), cell(g.District), g.Total, g.Matched, g.Adjusted, g.Failed)
	}
	b.WriteString("\n")

	if len(r.SampleAdjusted) > 0 {
		b.WriteString("## Sample Adjusted Records\n\n")
		b.WriteString("| ID | District | Ward | Old Lat/Lon | New Lat/Lon | Level | Method |\n")
		b.WriteString("|----|----------|------|-------------|-------------|-------|--------|\n")
		for _, s := range limit(r.SampleAdjusted, reportSamples) {
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s | %s |\n",
				field(s, "id"), field(s, "district"), field(s, "ward"),
				latLon(s["original_latitude"], s["original_longitude"]),
				latLon(s["latitude"], s["longitude"]),
				field(s, "admin_match_level"), field(s, "geo_method"))
		}
		b.WriteString("\n")
	}

	if len(r.SampleFailed) > 0 {
		b.WriteString("## Sample Failed Records\n\n")
		b.WriteString("| ID | Province | District | Ward | Reason |\n")
		b.WriteString("|----|----------|----------|------|--------|\n")
		for _, s := range limit(r.SampleFailed, reportSamples) {
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n",
				field(s, "id"), field(s, "province"), field(s, "district"), field(s, "ward"),
				field(s, "mismatch_reason"))
		}
		b.WriteString("\n")
	}

	if len(r.MissingPolygons) > 0 {
		b.WriteString("## Missing Ward Polygons\n\n")
		for _, k := range r.MissingPolygons {
			fmt.Fprintf(&b, "- %s\n", cell(k))
		}
		b.WriteString("\n")
	}

	b.WriteString("## Verification Target\n\n")
	b.WriteString("| Target | Required | Actual | Status |\n|--------|----------|--------|--------|\n")
	fmt.Fprintf(&b, "| Success Rate | >= %s | %s | %s |\n",
		percent(TargetSuccessRate), percent(r.SuccessRate), mark(r.SuccessRate >= TargetSuccessRate))
	fmt.Fprintf(&b, "| Failed Records | <= %s | %s | %s |\n",
		percent(TargetFailedRate), percent(r.FailedRate), mark(r.FailedRate <= TargetFailedRate))

	return b.String()
}

// problemDistricts районы с наибольшим числом adjusted и failed
func problemDistricts(groups []qc.GroupStats, n int) []qc.GroupStats {
	var out []qc.GroupStats
	for _, g := range groups {
		if g.Adjusted+g.Failed > 0 {
			out = append(out, g)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Adjusted+out[i].Failed > out[j].Adjusted+out[j].Failed
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func percent(rate float64) string {
	return fmt.Sprintf("%.2f%%", rate*100)
}

func mark(ok bool) string {
	if ok {
		return "PASS"
	}
	return "FAIL"
}

// cell экранирует текст для ячейки таблицы
func cell(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "|", "\\|"), "\n", " ")
}

func field(m map[string]interface{}, key string) string {
	return cell(formatValue(m[key]))
}

func latLon(lat, lon interface{}) string {
	la, ok1 := lat.(float64)
	lo, ok2 := lon.(float64)
	if !ok1 || !ok2 {
		return "-"
	}
	return fmt.Sprintf("(%.4f, %.4f)", la, lo)
}

func limit(s []map[string]interface{}, n int) []map[string]interface{} {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
