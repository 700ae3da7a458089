package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDependencies(t *testing.T) {
	def, err := Parse(sampleSchema)
	require.NoError(t, err)

	deps := BuildDependencies(def)
	assert.Empty(t, deps["CLUSTERS"])
	assert.Equal(t, []string{"CLUSTERS"}, deps["LOCATIONS"])
	assert.Equal(t, []string{"SPVS"}, deps["PROJECTS"])
	assert.Empty(t, deps["SPVS"])
}

func TestBuildDependenciesSkipsUnknownAndSelf(t *testing.T) {
	def, err := Parse(`
entity ORDERS {
    key ID: UUID;
    PARENT_ID: UUID;
    PARENT: Association to ORDERS;
    EXTERNAL: Association to BILLING_SYSTEM;
}
`)
	require.NoError(t, err)

	deps := BuildDependencies(def)
	assert.Empty(t, deps["ORDERS"])
}

func TestTopoSort(t *testing.T) {
	tests := []struct {
		name string
		deps map[string][]string
		want []string
	}{
		{
			name: "chain",
			deps: map[string][]string{
				"C": {"B"},
				"B": {"A"},
				"A": nil,
			},
			want: []string{"A", "B", "C"},
		},
		{
			name: "lexical tie break among roots",
			deps: map[string][]string{
				"ZEBRA":  nil,
				"ALPHA":  nil,
				"MIDDLE": nil,
			},
			want: []string{"ALPHA", "MIDDLE", "ZEBRA"},
		},
		{
			name: "diamond",
			deps: map[string][]string{
				"D": {"B", "C"},
				"B": {"A"},
				"C": {"A"},
			},
			want: []string{"A", "B", "C", "D"},
		},
		{
			name: "cycle members appended lexically",
			deps: map[string][]string{
				"X": {"Y"},
				"Y": {"X"},
				"A": nil,
			},
			want: []string{"A", "X", "Y"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TopoSort(tt.deps))
		})
	}
}

// The order must be identical across runs regardless of map iteration order.
func TestTopoSortDeterministic(t *testing.T) {
	deps := map[string][]string{
		"SERVICEORDERS": {"PROJECTS", "VENDORS"},
		"PROJECTS":      {"SPVS", "CLUSTERS"},
		"LOCATIONS":     {"CLUSTERS"},
		"PLOTS":         {"LOCATIONS"},
		"VENDORS":       nil,
		"SPVS":          nil,
		"CLUSTERS":      nil,
	}
	first := TopoSort(deps)
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, TopoSort(deps))
	}

	// Soundness: every dependency precedes its dependent.
	pos := make(map[string]int, len(first))
	for i, n := range first {
		pos[n] = i
	}
	for n, targets := range deps {
		for _, target := range targets {
			assert.Less(t, pos[target], pos[n], "%s must precede %s", target, n)
		}
	}
}

func TestCycleMembers(t *testing.T) {
	assert.Nil(t, CycleMembers(map[string][]string{
		"B": {"A"},
		"A": nil,
	}))

	members := CycleMembers(map[string][]string{
		"X": {"Y"},
		"Y": {"X"},
		"A": {"X"},
	})
	assert.Equal(t, []string{"A", "X", "Y"}, members)
}
