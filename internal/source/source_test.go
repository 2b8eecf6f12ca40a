package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bom", "\ufeffa,b\n", "a,b"},
		{"crlf", "a\r\nb\r\n", "a\nb"},
		{"lone cr", "a\rb", "a\nb"},
		{"whitespace", "  \n a \n  ", "a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestLines_Empty(t *testing.T) {
	assert.Nil(t, Lines("  \r\n "))
	assert.Equal(t, []string{"graph TD", "A-->B"}, Lines("graph TD\r\nA-->B"))
}

func TestReadRecords_VariableWidthAndQuotes(t *testing.T) {
	rows, err := ReadRecords("\ufeffroot,,\r\n,\"child, quoted\"\n,,leaf")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"root", "", ""}, rows[0])
	assert.Equal(t, []string{"", "child, quoted"}, rows[1])
	assert.Equal(t, []string{"", "", "leaf"}, rows[2])
}

func TestReadRecords_BareQuoteTolerated(t *testing.T) {
	rows, err := ReadRecords("name,size\nmonitor,27\" wide")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "27\" wide", rows[1][1])
}

func TestReadNumbered_TracksTextLines(t *testing.T) {
	rows, lines, err := ReadNumbered("\n\nroot,,\r\n\n,child\n\n\n,,\"multi\nline\"\n,,leaf\n")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []int{3, 5, 8, 10}, lines)
	assert.Equal(t, "multi\nline", rows[2][2])
}

func TestReadTable_LinesSkipBlankRows(t *testing.T) {
	tbl, err := ReadTable("task,start,end\n\n,,\nA,2024-01-01,2024-01-02\n,,\nB,2024-01-03,2024-01-04")
	require.NoError(t, err)
	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, []int{4, 6}, tbl.Lines)
	assert.Equal(t, 6, tbl.Line(1))

	manual := &Table{Rows: []map[string]string{{}, {}}}
	assert.Equal(t, 3, manual.Line(1), "header assumed on line 1")
}

func TestReadTable_CaseInsensitiveHeader(t *testing.T) {
	tbl, err := ReadTable("Task,START,end\nT1, 2024-01-01 ,2024-01-02\n,,\nT2,2024-01-03")
	require.NoError(t, err)

	assert.Equal(t, []string{"task", "start", "end"}, tbl.Header)
	assert.True(t, tbl.Has("Start"))
	assert.False(t, tbl.Has("progress"))
	require.Len(t, tbl.Rows, 2, "blank rows are dropped")
	assert.Equal(t, "2024-01-01", tbl.Rows[0]["start"])
	assert.Equal(t, "", tbl.Rows[1]["end"], "missing trailing cell reads as empty")
}
