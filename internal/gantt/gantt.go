package gantt

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rendis/mindflow/internal/logging"
	"github.com/rendis/mindflow/internal/source"
	"github.com/rendis/mindflow/pkg/schema"
)

// Validate runs the strict checks over text. The message is empty on success
// and otherwise names the first problem and its row.
func Validate(text string, logger *slog.Logger) (bool, string) {
	table, err := source.ReadTable(text)
	if err != nil {
		return false, err.Error()
	}
	res := Check(table)
	for _, w := range res.Warnings {
		logging.OrDiscard(logger).Warn("gantt check warning", "path", w.Path, "message", w.Message)
	}
	if err := res.FirstError(); err != nil {
		return false, err.Error()
	}
	return true, ""
}

// SampleCSV is an example release plan with chained dependencies.
const SampleCSV = `task,start,end,category,progress,dependencies
Planning & Requirements,2024-01-01,2024-01-15,Phase1,1.0,
UI/UX Design,2024-01-10,2024-01-25,Phase1,0.9,Planning & Requirements
System Design,2024-01-20,2024-02-05,Phase2,0.7,Planning & Requirements
Frontend Development,2024-02-01,2024-02-28,Phase2,0.4,UI/UX Design
Backend Development,2024-02-01,2024-02-28,Phase2,0.4,System Design
Integration Testing,2024-02-25,2024-03-10,Phase3,0.1,Frontend Development;Backend Development
Release Prep,2024-03-05,2024-03-15,Phase3,0.0,Integration Testing`

type templatePhase struct {
	name               string
	startWeek, endWeek int
	category           string
}

var templatePhases = []templatePhase{
	{"Kickoff", 0, 2, "Phase1"},
	{"Requirements", 0, 3, "Phase1"},
	{"Design", 2, 4, "Phase2"},
	{"Development", 4, 8, "Phase2"},
	{"Testing", 8, 10, "Phase3"},
	{"Release Prep", 10, 12, "Phase3"},
}

// Template returns a twelve-week starter plan beginning on start. Every
// second phase depends on the one before it.
func Template(start time.Time) string {
	var b strings.Builder
	b.WriteString("task,start,end,category,progress,dependencies")
	for i, p := range templatePhases {
		dep := ""
		if i%2 == 1 {
			dep = templatePhases[i-1].name
		}
		fmt.Fprintf(&b, "\n%s,%s,%s,%s,0,%s", p.name,
			start.AddDate(0, 0, 7*p.startWeek).Format(schema.DateLayout),
			start.AddDate(0, 0, 7*p.endWeek).Format(schema.DateLayout),
			p.category, dep)
	}
	return b.String()
}
