package gantt

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/mindflow/internal/source"
	"github.com/rendis/mindflow/pkg/schema"
)

func newTestLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

const twoTasks = "task,start,end,category,progress,dependencies\n" +
	"T1,2024-01-01,2024-01-05,P1,0.5,\n" +
	"T2,2024-01-03,2024-01-10,P1,1.0,T1"

func findTask(t *testing.T, tasks []schema.GanttTask, name string) schema.GanttTask {
	t.Helper()
	for _, task := range tasks {
		if task.Task == name {
			return task
		}
	}
	t.Fatalf("task %q not found", name)
	return schema.GanttTask{}
}

func TestParse_TwoTasks(t *testing.T) {
	tasks, err := Parse(twoTasks, nil)
	require.NoError(t, err)
	require.Len(t, tasks, 2)

	t1 := findTask(t, tasks, "T1")
	assert.Equal(t, 5, t1.Duration)
	assert.Equal(t, "2024-01-01", t1.Start.String())
	assert.Equal(t, "2024-01-05", t1.End.String())
	assert.InDelta(t, 0.5, t1.Progress, 1e-9)
	assert.Equal(t, "P1", t1.Category)
	assert.Equal(t, DefaultResource, t1.Resource)
	assert.Empty(t, t1.Dependencies)

	t2 := findTask(t, tasks, "T2")
	assert.Equal(t, []string{"T1"}, t2.Dependencies)
	assert.Equal(t, 8, t2.Duration)
}

func TestParse_DurationInvariant(t *testing.T) {
	tasks, err := Parse(SampleCSV, nil)
	require.NoError(t, err)
	require.Len(t, tasks, 7)
	for _, task := range tasks {
		assert.False(t, task.End.Before(task.Start.Time), task.Task)
		assert.Equal(t, task.Start.DaysUntil(task.End)+1, task.Duration, task.Task)
	}
	assert.Equal(t, []string{"Frontend Development", "Backend Development"},
		findTask(t, tasks, "Integration Testing").Dependencies)
}

func TestParse_DurationSpansCenturies(t *testing.T) {
	tasks, err := Parse("task,start,end\nAncient,1500-01-01,2024-01-01\nTypo,1024-01-05,2024-01-05", nil)
	require.NoError(t, err)
	assert.Equal(t, 191387+1, findTask(t, tasks, "Ancient").Duration)
	assert.Equal(t, 365243+1, findTask(t, tasks, "Typo").Duration)
}

func TestParse_WarningsCarryTextLine(t *testing.T) {
	logger, buf := newTestLogger()
	now := func() time.Time { return time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC) }
	table, err := source.ReadTable("task,start,end,progress\n\n,,,\nLate,someday,never,lots\n")
	require.NoError(t, err)

	_, err = NewBuilder(logger, WithClock(now)).BuildTable(table)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "start date unusable")
	assert.Contains(t, out, "end date unusable")
	assert.Contains(t, out, "progress unusable")
	for _, l := range strings.Split(strings.TrimSpace(out), "\n") {
		if strings.Contains(l, "unusable") {
			assert.Contains(t, l, "line=4", l)
			assert.Contains(t, l, "task=Late", l)
		}
	}
}

func TestParse_CaseInsensitiveHeaders(t *testing.T) {
	tasks, err := Parse("Task,START,End,Category,Progress,Dependencies,Resource\nA,2024-01-01,2024-01-02,Ops,50%,,Kim\n", nil)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Ops", tasks[0].Category)
	assert.Equal(t, "Kim", tasks[0].Resource)
	assert.InDelta(t, 0.5, tasks[0].Progress, 1e-9)
}

func TestParse_SelfDependencyDropped(t *testing.T) {
	logger, buf := newTestLogger()
	tasks, err := Parse("task,start,end,dependencies\nA,2024-01-01,2024-01-02,A\n", logger)
	require.NoError(t, err)
	assert.Empty(t, tasks[0].Dependencies)
	assert.Contains(t, buf.String(), "depends on itself")
}

func TestParse_UnknownDependencyDropped(t *testing.T) {
	logger, buf := newTestLogger()
	tasks, err := Parse("task,start,end,dependencies\nA,2024-01-01,2024-01-02,Ghost; ;B\nB,2024-01-01,2024-01-02,\n", logger)
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, findTask(t, tasks, "A").Dependencies)
	assert.Contains(t, buf.String(), "unknown dependency dropped")
}

func TestParse_DatesSwapped(t *testing.T) {
	logger, buf := newTestLogger()
	tasks, err := Parse("task,start,end\nA,2024-02-01,2024-01-01\n", logger)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01", tasks[0].Start.String())
	assert.Equal(t, "2024-02-01", tasks[0].End.String())
	assert.Equal(t, 32, tasks[0].Duration)
	assert.Contains(t, buf.String(), "swapped")
}

func TestBuilder_DateFallbacks(t *testing.T) {
	now := func() time.Time { return time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC) }
	b := NewBuilder(nil, WithClock(now))

	tasks, err := b.Build([]map[string]string{{"task": "A", "start": "soon", "end": ""}})
	require.NoError(t, err)
	assert.Equal(t, "2024-05-10", tasks[0].Start.String())
	assert.Equal(t, "2024-05-11", tasks[0].End.String())
	assert.Equal(t, 2, tasks[0].Duration)
	assert.Equal(t, DefaultCategory, tasks[0].Category)
}

func TestBuilder_ProgressNormalization(t *testing.T) {
	rows := []map[string]string{
		{"task": "a", "start": "2024-01-01", "end": "2024-01-01", "progress": "50%"},
		{"task": "b", "start": "2024-01-01", "end": "2024-01-01", "progress": "0.5"},
		{"task": "c", "start": "2024-01-01", "end": "2024-01-01", "progress": "150"},
		{"task": "d", "start": "2024-01-01", "end": "2024-01-01", "progress": ""},
	}
	tasks, err := NewBuilder(nil).Build(rows)
	require.NoError(t, err)
	want := []float64{0.5, 0.5, 1.0, 0.0}
	for i, task := range tasks {
		assert.InDelta(t, want[i], task.Progress, 1e-9, task.Task)
	}
}

func TestBuilder_SkipsUnnamedAndDuplicateRows(t *testing.T) {
	logger, buf := newTestLogger()
	tasks, err := NewBuilder(logger).Build([]map[string]string{
		{"task": "", "start": "2024-01-01"},
		{"task": "A", "start": "2024-01-01", "end": "2024-01-03"},
		{"task": "A", "start": "2024-03-01", "end": "2024-03-03"},
	})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "2024-01-01", tasks[0].Start.String())
	assert.Contains(t, buf.String(), "row without task name")
	assert.Contains(t, buf.String(), "duplicate task name")
}

func TestBuilder_Empty(t *testing.T) {
	_, err := NewBuilder(nil).Build(nil)
	assert.True(t, schema.HasCode(err, schema.ErrCodeEmptyGanttInput))

	_, err = NewBuilder(nil).Build([]map[string]string{{"task": ""}})
	assert.True(t, schema.HasCode(err, schema.ErrCodeEmptyGanttInput))

	_, err = Parse("task,start,end\n", nil)
	assert.True(t, schema.HasCode(err, schema.ErrCodeEmptyGanttInput))
}

func TestBuilder_CycleOnlyWarns(t *testing.T) {
	logger, buf := newTestLogger()
	tasks, err := Parse("task,start,end,dependencies\nA,2024-01-01,2024-01-02,B\nB,2024-01-01,2024-01-02,A\n", logger)
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, findTask(t, tasks, "A").Dependencies)
	assert.Contains(t, buf.String(), "cycle")
}

func TestEncodeCSV_RoundTrip(t *testing.T) {
	for name, in := range map[string]string{"two": twoTasks, "sample": SampleCSV} {
		t.Run(name, func(t *testing.T) {
			first, err := Parse(in, nil)
			require.NoError(t, err)

			out, err := EncodeCSV(first)
			require.NoError(t, err)
			second, err := Parse(out, nil)
			require.NoError(t, err)

			assert.Equal(t, first, second)
		})
	}
}

func TestEncodeCSV_QuotesCommas(t *testing.T) {
	tasks := []schema.GanttTask{{
		Task:         "Design, phase 1",
		Start:        schema.NewDate(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
		End:          schema.NewDate(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)),
		Duration:     2,
		Progress:     0.25,
		Category:     DefaultCategory,
		Dependencies: []string{},
		Resource:     DefaultResource,
	}}
	out, err := EncodeCSV(tasks)
	require.NoError(t, err)
	assert.Contains(t, out, `"Design, phase 1",2024-01-01,2024-01-02,General,0.25,,Unassigned`)

	back, err := Parse(out, nil)
	require.NoError(t, err)
	assert.Equal(t, tasks, back)
}

func TestSummarize(t *testing.T) {
	tasks, err := Parse(SampleCSV, nil)
	require.NoError(t, err)

	s := Summarize(tasks)
	assert.Equal(t, 7, s.TotalTasks)
	assert.Equal(t, "2024-01-01", s.StartDate.String())
	assert.Equal(t, "2024-03-15", s.EndDate.String())
	assert.Equal(t, []string{"Phase1", "Phase2", "Phase3"}, s.Categories)
}

func TestChart(t *testing.T) {
	tasks, err := Parse(SampleCSV, nil)
	require.NoError(t, err)

	chart := Chart(tasks)
	assert.Len(t, chart.Tasks, 7)
	assert.Equal(t, 7, chart.Summary.TotalTasks)
}

func TestOrder(t *testing.T) {
	tasks, err := Parse(SampleCSV, nil)
	require.NoError(t, err)

	order, err := Order(tasks)
	require.NoError(t, err)
	require.Len(t, order, 7)

	pos := make(map[string]int)
	for i, name := range order {
		pos[name] = i
	}
	for _, task := range tasks {
		for _, dep := range task.Dependencies {
			assert.Less(t, pos[dep], pos[task.Task], "%s before %s", dep, task.Task)
		}
	}
}

func TestOrder_UnlinkedTasksLast(t *testing.T) {
	order, err := Order([]schema.GanttTask{
		{Task: "solo"},
		{Task: "b", Dependencies: []string{"a"}},
		{Task: "a"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "solo"}, order)
}

func TestOrder_Cycle(t *testing.T) {
	_, err := Order([]schema.GanttTask{
		{Task: "a", Dependencies: []string{"c"}},
		{Task: "b", Dependencies: []string{"a"}},
		{Task: "c", Dependencies: []string{"b"}},
		{Task: "free"},
	})
	require.Error(t, err)
	assert.True(t, schema.HasCode(err, schema.ErrCodeCycleDetected))
	assert.Contains(t, err.Error(), `"a"`)
	assert.NotContains(t, err.Error(), "free")
}

func TestResolveDependencies(t *testing.T) {
	assert.Equal(t, []string{"A", "B", "C"}, ResolveDependencies(" A ;B,, C;A;self", "self", nil))
	assert.Equal(t, []string{}, ResolveDependencies("", "x", nil))
}

func checkText(t *testing.T, text string) *schema.ValidationResult {
	t.Helper()
	table, err := source.ReadTable(text)
	require.NoError(t, err)
	return Check(table)
}

func TestCheck_Valid(t *testing.T) {
	res := checkText(t, SampleCSV)
	assert.True(t, res.Valid())
	assert.Empty(t, res.Warnings)
}

func TestCheck_InvertedRange(t *testing.T) {
	res := checkText(t, "task,start,end\nA,2024-01-01,2024-01-02\nB,2024-02-01,2024-01-01\n")
	require.Len(t, res.Errors, 1)
	assert.Equal(t, schema.ErrCodeInvalidDateRange, res.Errors[0].Code)
	assert.Equal(t, 3, res.Errors[0].Line)
}

func TestCheck_Errors(t *testing.T) {
	tests := []struct {
		name string
		text string
		code string
		line int
	}{
		{"missing columns", "task,start\nA,2024-01-01\n", schema.ErrCodeMissingValue, 0},
		{"empty", "task,start,end\n", schema.ErrCodeEmptyGanttInput, 0},
		{"bad date", "task,start,end\nA,2024-01-01,soon\n", schema.ErrCodeInvalidDateFormat, 2},
		{"missing date", "task,start,end\nA,,2024-01-01\n", schema.ErrCodeMissingValue, 2},
		{"bad progress", "task,start,end,progress\nA,2024-01-01,2024-01-02,150\n", schema.ErrCodeInvalidProgress, 2},
		{"nan progress", "task,start,end,progress\nA,2024-01-01,2024-01-02,NaN\n", schema.ErrCodeInvalidProgress, 2},
		{"missing name", "task,start,end\nA,2024-01-01,2024-01-02\n,2024-01-01,2024-01-02\n", schema.ErrCodeMissingValue, 3},
		{"line after blank rows", "task,start,end\n\n,,\nA,2024-01-01,2024-01-02\n\nB,2024-01-01,later\n", schema.ErrCodeInvalidDateFormat, 6},
		{"cycle", "task,start,end,dependencies\nA,2024-01-01,2024-01-02,B\nB,2024-01-01,2024-01-02,A\n", schema.ErrCodeCycleDetected, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := checkText(t, tt.text)
			require.False(t, res.Valid())
			assert.Equal(t, tt.code, res.Errors[0].Code)
			assert.Equal(t, tt.line, res.Errors[0].Line)
		})
	}
}

func TestCheck_Warnings(t *testing.T) {
	res := checkText(t, "task,start,end,dependencies\nA,2024-01-01,2024-01-02,A;Ghost\nA,2024-01-01,2024-01-02,\n")
	assert.True(t, res.Valid())
	assert.Len(t, res.Warnings, 3)
}

func TestValidate(t *testing.T) {
	ok, msg := Validate(twoTasks, nil)
	assert.True(t, ok)
	assert.Empty(t, msg)

	ok, msg = Validate("task,start,end\nA,2024-02-01,2024-01-01\n", nil)
	assert.False(t, ok)
	assert.Contains(t, msg, "INVALID_DATE_RANGE")
	assert.Contains(t, msg, "line 2")

	ok, msg = Validate("task,start,end,progress\nA,2024-01-01,2024-01-02,NaN", nil)
	assert.False(t, ok)
	assert.Contains(t, msg, "INVALID_PROGRESS_VALUE")
}

func TestTemplate(t *testing.T) {
	text := Template(time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC))
	ok, msg := Validate(text, nil)
	require.True(t, ok, msg)

	tasks, err := Parse(text, nil)
	require.NoError(t, err)
	require.Len(t, tasks, 6)
	assert.Equal(t, "2024-06-24", tasks[5].End.String())
	assert.Equal(t, []string{"Kickoff"}, tasks[1].Dependencies)
}
