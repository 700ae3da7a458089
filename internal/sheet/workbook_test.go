package sheet

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMergeHeaders(t *testing.T) {
	tests := []struct {
		name string
		raw  [][]string
		want []string
	}{
		{
			name: "single row",
			raw:  [][]string{{"Name", "Cluster", "SPV"}},
			want: []string{"Name", "Cluster", "SPV"},
		},
		{
			name: "stacked rows join parent to child",
			raw: [][]string{
				{"Project", "Project", ""},
				{"Name", "Type", "Notes"},
			},
			want: []string{"Project > Name", "Project > Type", "Notes"},
		},
		{
			name: "blank cells skipped in the stack",
			raw: [][]string{
				{"", "Location", ""},
				{"", "", ""},
				{"ID", "Name", "Country"},
			},
			want: []string{"ID", "Location > Name", "Country"},
		},
		{
			name: "trailing blank columns dropped",
			raw:  [][]string{{"Name", "", ""}},
			want: []string{"Name"},
		},
		{
			name: "interior blank columns kept",
			raw:  [][]string{{"A", "", "C"}},
			want: []string{"A", "", "C"},
		},
		{
			name: "ragged rows",
			raw: [][]string{
				{"Group"},
				{"A", "B"},
			},
			want: []string{"Group > A", "B"},
		},
		{
			name: "empty input",
			raw:  nil,
			want: []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MergeHeaders(tt.raw))
		})
	}
}

func TestCleanCell(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"  plain  ", "plain"},
		{`="550e8400-e29b-41d4-a716-446655440000"`, "550e8400-e29b-41d4-a716-446655440000"},
		{`"quoted"`, "quoted"},
		{"'single'", "single"},
		{"=A1+B1", "A1+B1"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CleanCell(tt.input), "input %q", tt.input)
	}
}

func TestIsBlank(t *testing.T) {
	assert.True(t, IsBlank([]string{"", "  ", "\t"}))
	assert.True(t, IsBlank(nil))
	assert.False(t, IsBlank([]string{"", "x"}))
}
