package loans

import "sort"

// MatchContext carries, per dimension, the identifiers describing the
// specimen and the borrower at loan time: the specimen itself, its book, the
// book's collection, classification and location, the user and the user's
// groups.
type MatchContext struct {
	Candidates map[Dimension][]string
}

// NewMatchContext builds an empty context.
func NewMatchContext() MatchContext {
	return MatchContext{Candidates: make(map[Dimension][]string)}
}

// Add records a candidate identifier under the given dimension.
func (m MatchContext) Add(dim Dimension, id string) {
	m.Candidates[dim] = append(m.Candidates[dim], id)
}

func intersects(conditions, candidates []string) bool {
	for _, c := range conditions {
		for _, have := range candidates {
			if c == have {
				return true
			}
		}
	}
	return false
}

// Matches evaluates the policy's conditions against the context. Empty
// dimensions are skipped. Under OR the policy matches when any remaining
// dimension intersects; under AND every remaining dimension must intersect,
// and a policy with no conditions at all never matches.
func (p Policy) Matches(ctx MatchContext) bool {
	if p.LogicalOperator == OperatorAnd {
		checked := 0
		for _, dim := range Dimensions {
			conditions := p.Conditions[dim]
			if len(conditions) == 0 {
				continue
			}
			checked++
			if !intersects(conditions, ctx.Candidates[dim]) {
				return false
			}
		}
		return checked > 0
	}
	for _, dim := range Dimensions {
		conditions := p.Conditions[dim]
		if len(conditions) == 0 {
			continue
		}
		if intersects(conditions, ctx.Candidates[dim]) {
			return true
		}
	}
	return false
}

// SelectPolicy picks the matching policy with the lowest priority value,
// falling back to the default policy when nothing matches. Ties on priority
// resolve by lower id.
func SelectPolicy(policies []Policy, ctx MatchContext) (Policy, error) {
	ordered := make([]Policy, len(policies))
	copy(ordered, policies)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Priority != ordered[j].Priority {
			return ordered[i].Priority < ordered[j].Priority
		}
		return ordered[i].ID < ordered[j].ID
	})
	for _, p := range ordered {
		if p.Matches(ctx) {
			return p, nil
		}
	}
	for _, p := range ordered {
		if p.IsDefault {
			return p, nil
		}
	}
	return Policy{}, ErrNoDefaultPolicy
}
