package loans

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func contextWith(pairs map[Dimension][]string) MatchContext {
	mc := NewMatchContext()
	for dim, ids := range pairs {
		for _, id := range ids {
			mc.Add(dim, id)
		}
	}
	return mc
}

func TestPolicyMatchesOr(t *testing.T) {
	ctx := contextWith(map[Dimension][]string{
		DimUsers:  {"7"},
		DimBooks:  {"12"},
		DimGroups: {"3"},
	})

	tests := []struct {
		name       string
		conditions map[Dimension][]string
		want       bool
	}{
		{"single dimension hit", map[Dimension][]string{DimUsers: {"7"}}, true},
		{"one of several hits", map[Dimension][]string{DimCollections: {"99"}, DimGroups: {"3"}}, true},
		{"no dimension hits", map[Dimension][]string{DimUsers: {"8"}, DimBooks: {"13"}}, false},
		{"no conditions never matches", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Policy{LogicalOperator: OperatorOr, Conditions: tt.conditions}
			assert.Equal(t, tt.want, p.Matches(ctx))
		})
	}
}

func TestPolicyMatchesAnd(t *testing.T) {
	ctx := contextWith(map[Dimension][]string{
		DimUsers:  {"7"},
		DimBooks:  {"12"},
		DimGroups: {"3"},
	})

	tests := []struct {
		name       string
		conditions map[Dimension][]string
		want       bool
	}{
		{"all dimensions hit", map[Dimension][]string{DimUsers: {"7"}, DimBooks: {"12"}}, true},
		{"one dimension misses", map[Dimension][]string{DimUsers: {"7"}, DimBooks: {"13"}}, false},
		{"empty dimensions skipped", map[Dimension][]string{DimGroups: {"3"}}, true},
		{"no conditions never matches", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Policy{LogicalOperator: OperatorAnd, Conditions: tt.conditions}
			assert.Equal(t, tt.want, p.Matches(ctx))
		})
	}
}

func TestSelectPolicyPriority(t *testing.T) {
	ctx := contextWith(map[Dimension][]string{DimUsers: {"7"}})

	policies := []Policy{
		{ID: 1, Priority: 20, LogicalOperator: OperatorOr, Conditions: map[Dimension][]string{DimUsers: {"7"}}},
		{ID: 2, Priority: 10, LogicalOperator: OperatorOr, Conditions: map[Dimension][]string{DimUsers: {"7"}}},
		{ID: 3, Priority: 5, LogicalOperator: OperatorOr, Conditions: map[Dimension][]string{DimUsers: {"99"}}},
	}

	selected, err := SelectPolicy(policies, ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), selected.ID, "lowest priority value among matches wins")
}

func TestSelectPolicyDefaultFallback(t *testing.T) {
	ctx := contextWith(map[Dimension][]string{DimUsers: {"7"}})

	policies := []Policy{
		{ID: 1, Priority: 10, LogicalOperator: OperatorOr, Conditions: map[Dimension][]string{DimUsers: {"99"}}},
		{ID: 2, Priority: 20, IsDefault: true, LogicalOperator: OperatorOr},
	}

	selected, err := SelectPolicy(policies, ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), selected.ID)
}

func TestSelectPolicyNoDefault(t *testing.T) {
	ctx := NewMatchContext()
	policies := []Policy{
		{ID: 1, Priority: 10, LogicalOperator: OperatorOr, Conditions: map[Dimension][]string{DimUsers: {"99"}}},
	}

	_, err := SelectPolicy(policies, ctx)
	require.ErrorIs(t, err, ErrNoDefaultPolicy)
}

func TestSelectPolicyTieBreaksOnID(t *testing.T) {
	ctx := contextWith(map[Dimension][]string{DimUsers: {"7"}})
	policies := []Policy{
		{ID: 9, Priority: 10, LogicalOperator: OperatorOr, Conditions: map[Dimension][]string{DimUsers: {"7"}}},
		{ID: 4, Priority: 10, LogicalOperator: OperatorOr, Conditions: map[Dimension][]string{DimUsers: {"7"}}},
	}

	selected, err := SelectPolicy(policies, ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), selected.ID)
}
