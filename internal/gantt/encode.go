package gantt

import (
	"encoding/csv"
	"strconv"
	"strings"

	"github.com/rendis/mindflow/pkg/schema"
)

var encodeHeader = []string{ColTask, ColStart, ColEnd, ColCategory, ColProgress, ColDependencies, ColResource}

// EncodeCSV writes tasks back out as a task table that Parse reads into the
// same list.
func EncodeCSV(tasks []schema.GanttTask) (string, error) {
	var b strings.Builder
	w := csv.NewWriter(&b)
	if err := w.Write(encodeHeader); err != nil {
		return "", err
	}
	for _, t := range tasks {
		rec := []string{
			t.Task,
			t.Start.String(),
			t.End.String(),
			t.Category,
			strconv.FormatFloat(t.Progress, 'f', -1, 64),
			strings.Join(t.Dependencies, ";"),
			t.Resource,
		}
		if err := w.Write(rec); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return b.String(), nil
}
