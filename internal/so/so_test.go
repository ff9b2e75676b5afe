package so

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMostSevere(t *testing.T) {
	tests := []struct {
		name  string
		terms []string
		want  string
	}{
		{"empty", nil, ""},
		{"single", []string{MissenseVariant}, MissenseVariant},
		{"stop beats missense", []string{MissenseVariant, StopGained}, StopGained},
		{"order independent", []string{StopGained, MissenseVariant}, StopGained},
		{"splice acceptor first", []string{IntronVariant, SpliceAcceptorVariant, SynonymousVariant}, SpliceAcceptorVariant},
		{"known beats unknown", []string{"made_up_term", IntergenicVariant}, IntergenicVariant},
		{"unknown lexicographic", []string{"zzz", "aaa"}, "aaa"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MostSevere(tt.terms))
		})
	}
}

func TestMostSevere_Stable(t *testing.T) {
	terms := []string{StopGained, MissenseVariant}
	for range 100 {
		assert.Equal(t, StopGained, MostSevere(terms))
	}
	// Reversed input yields the same answer.
	assert.Equal(t, StopGained, MostSevere([]string{MissenseVariant, StopGained}))
}

func TestRank_NoTies(t *testing.T) {
	seen := map[int]string{}
	for _, term := range Terms() {
		r := Rank(term)
		if prev, ok := seen[r]; ok {
			t.Fatalf("rank %d shared by %s and %s", r, prev, term)
		}
		seen[r] = term
	}
	assert.Equal(t, len(Terms()), Rank("not_a_term"))
}

func TestSplit(t *testing.T) {
	assert.Nil(t, Split(""))
	assert.Equal(t, []string{SpliceRegionVariant, IntronVariant}, Split("splice_region_variant, intron_variant"))
	assert.Equal(t, []string{StopGained}, Split("stop_gained,"))
}

func TestSort(t *testing.T) {
	terms := []string{IntronVariant, "novel", StopGained, MissenseVariant}
	Sort(terms)
	assert.Equal(t, []string{StopGained, MissenseVariant, IntronVariant, "novel"}, terms)
}

func TestImpact(t *testing.T) {
	tests := []struct {
		consequence string
		want        string
	}{
		{"missense_variant", ImpactModerate},
		{"stop_gained", ImpactHigh},
		{"synonymous_variant", ImpactLow},
		{"intron_variant", ImpactModifier},
		{"frameshift_variant,splice_region_variant", ImpactHigh},
		{"splice_region_variant,intron_variant", ImpactLow},
		{"missense_variant,splice_region_variant", ImpactModerate},
	}
	for _, tt := range tests {
		t.Run(tt.consequence, func(t *testing.T) {
			if got := Impact(tt.consequence); got != tt.want {
				t.Errorf("Impact(%q) = %q, want %q", tt.consequence, got, tt.want)
			}
		})
	}
}

// TestAllocRegression_Impact verifies zero allocations for Impact.
func TestAllocRegression_Impact(t *testing.T) {
	allocs := testing.AllocsPerRun(100, func() {
		Impact("frameshift_variant,splice_region_variant")
	})
	if allocs > 0 {
		t.Errorf("Impact(compound) allocs: %.0f, want 0", allocs)
	}
}

func TestImpact_FollowsSeverityOrder(t *testing.T) {
	prev := ImpactRank(ImpactHigh)
	for _, term := range Terms() {
		r := ImpactRank(Impact(term))
		assert.LessOrEqual(t, r, prev, "%s ranks above a more severe term", term)
		prev = r
	}
	assert.Equal(t, ImpactModifier, Impact("novel_variant"))
	assert.Equal(t, ImpactModifier, Impact(""))
	assert.Greater(t, ImpactRank(ImpactLow), ImpactRank(ImpactModifier))
	assert.Equal(t, 0, ImpactRank("bogus"))
}
