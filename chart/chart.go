// Package chart renders pass/fail summaries of reported runs as PNG charts.
package chart

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"sort"

	"github.com/pkg/errors"
	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Column names read from each entry
const (
	SuiteColumn  = "SuiteTitle"
	StatusColumn = "Status"
	TestColumn   = "TestName"
)

const (
	passed = "passed"
	failed = "failed"

	barChartHeight = 700
	minBarWidth    = 1200
	barWidth       = 50
	barSpacing     = 30
	pieSize        = 800
)

// ErrInvalidData is returned when entries lack the columns needed to group them
var ErrInvalidData = errors.New("Invalid data")

var (
	colors = map[string]drawing.Color{
		passed: drawing.ColorFromHex("198754"),
		failed: drawing.ColorFromHex("dc3545"),
	}
	otherColor = drawing.ColorFromHex("999999")
)

// Entry is one reported run, keyed by column name
type Entry map[string]interface{}

func (e Entry) field(column string) (string, bool) {
	value, ok := e[column]
	if !ok || value == nil {
		return "", false
	}
	if s, isString := value.(string); isString {
		return s, true
	}
	return fmt.Sprint(value), true
}

// Summary counts runs by status
type Summary struct {
	TotalPassed int `json:"total_passed"`
	TotalFailed int `json:"total_failed"`
	TotalTests  int `json:"total_tests"`
}

// Graphs holds base64 encoded PNG charts
type Graphs struct {
	SuiteBar string  `json:"graph1_base64"`
	SuitePie string  `json:"graph2_base64"`
	TestBar  string  `json:"graph3_base64"`
	TestPie  string  `json:"graph4_base64"`
	Summary  Summary `json:"summary"`
}

func hasColumn(entries []Entry, column string) bool {
	for _, entry := range entries {
		if _, ok := entry.field(column); ok {
			return true
		}
	}
	return false
}

// Generate renders per-suite and per-test charts for entries
func Generate(entries []Entry) (Graphs, error) {
	if len(entries) == 0 || !hasColumn(entries, SuiteColumn) || !hasColumn(entries, StatusColumn) {
		return Graphs{}, errors.Wrap(ErrInvalidData, "SuiteTitle and Status are required")
	}
	if !hasColumn(entries, TestColumn) {
		return Graphs{}, errors.Wrap(ErrInvalidData, "TestName is also required")
	}

	suites := groupStatuses(entries, SuiteColumn)
	tests := groupStatuses(entries, TestColumn)
	var graphs Graphs
	var err error
	if graphs.SuiteBar, err = renderBar("Test results per SuiteTitle", suites); err != nil {
		return Graphs{}, err
	}
	if graphs.SuitePie, err = renderPie("Overview per SuiteTitle", suites.outcomes()); err != nil {
		return Graphs{}, err
	}
	if graphs.TestBar, err = renderBar("Test results per TestName", tests); err != nil {
		return Graphs{}, err
	}
	if graphs.TestPie, err = renderPie("Overview per TestName", tests.outcomes()); err != nil {
		return Graphs{}, err
	}

	graphs.Summary.TotalTests = len(entries)
	for _, entry := range entries {
		switch status, _ := entry.field(StatusColumn); status {
		case passed:
			graphs.Summary.TotalPassed++
		case failed:
			graphs.Summary.TotalFailed++
		}
	}
	return graphs, nil
}

// statusCounts counts passed and failed runs for one group
type statusCounts struct {
	Name           string
	Passed, Failed int
}

type groups []statusCounts

// groupStatuses counts statuses per value of column, sorted by value. Entries missing column or status are skipped.
func groupStatuses(entries []Entry, column string) groups {
	index := make(map[string]int)
	var result groups
	for _, entry := range entries {
		name, ok := entry.field(column)
		if !ok {
			continue
		}
		status, ok := entry.field(StatusColumn)
		if !ok {
			continue
		}
		i, exists := index[name]
		if !exists {
			i = len(result)
			index[name] = i
			result = append(result, statusCounts{Name: name})
		}
		switch status {
		case passed:
			result[i].Passed++
		case failed:
			result[i].Failed++
		}
	}
	sort.Slice(result, func(a, b int) bool {
		return result[a].Name < result[b].Name
	})
	return result
}

// outcomes counts groups by overall status. A group failed if any of its runs failed.
func (g groups) outcomes() map[string]int {
	counts := make(map[string]int)
	for _, group := range g {
		if group.Failed > 0 {
			counts[failed]++
		} else {
			counts[passed]++
		}
	}
	return counts
}

func colorOf(status string) drawing.Color {
	if color, ok := colors[status]; ok {
		return color
	}
	return otherColor
}

func percent(part, total int) string {
	if total == 0 {
		return ""
	}
	return fmt.Sprintf("%.0f%%", float64(part)/float64(total)*100)
}

func renderBar(title string, g groups) (string, error) {
	bars := make([]gochart.StackedBar, 0, len(g))
	for _, group := range g {
		total := group.Failed + group.Passed
		bars = append(bars, gochart.StackedBar{
			Name: group.Name,
			Values: []gochart.Value{
				{Label: percent(group.Failed, total), Value: float64(group.Failed), Style: segmentStyle(failed)},
				{Label: percent(group.Passed, total), Value: float64(group.Passed), Style: segmentStyle(passed)},
			},
		})
	}
	width := len(bars)*(barWidth+barSpacing) + 200
	if width < minBarWidth {
		width = minBarWidth
	}
	c := gochart.StackedBarChart{
		Title:      title,
		Width:      width,
		Height:     barChartHeight,
		BarSpacing: barSpacing,
		Background: gochart.Style{Padding: gochart.Box{Top: 60, Bottom: 40, Left: 20, Right: 20}},
		XAxis:      gochart.Style{TextRotationDegrees: 45},
		Bars:       bars,
	}
	return encode(c.Render)
}

func segmentStyle(status string) gochart.Style {
	return gochart.Style{
		FillColor:   colorOf(status),
		StrokeColor: drawing.ColorBlack,
		StrokeWidth: 0.8,
	}
}

func renderPie(title string, counts map[string]int) (string, error) {
	var values []gochart.Value
	for _, status := range []string{failed, passed} {
		count := counts[status]
		if count == 0 {
			continue
		}
		values = append(values, gochart.Value{
			Label: fmt.Sprintf("%s (%d)", cases.Title(language.English).String(status), count),
			Value: float64(count),
			Style: gochart.Style{
				FillColor:   colorOf(status),
				FontColor:   drawing.ColorWhite,
				StrokeColor: drawing.ColorWhite,
			},
		})
	}
	c := gochart.PieChart{
		Title:  title,
		Width:  pieSize,
		Height: pieSize,
		Values: values,
	}
	return encode(c.Render)
}

func encode(render func(gochart.RendererProvider, io.Writer) error) (string, error) {
	var buf bytes.Buffer
	if err := render(gochart.PNG, &buf); err != nil {
		return "", errors.Wrap(err, "Failed to render chart")
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
