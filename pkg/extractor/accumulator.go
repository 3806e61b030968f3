package extractor

// selectionState tracks a checkbox family across one document.
type selectionState int

const (
	selectionUnset selectionState = iota
	selectionSet
	selectionConflict
)

// conflictPolicy decides what a second, different selection does.
type conflictPolicy int

const (
	// keepFirst ignores later selections.
	keepFirst conflictPolicy = iota
	// resolveTo replaces the value with a fixed fallback once two labels disagree.
	resolveTo
)

type accumulator struct {
	policy   conflictPolicy
	fallback string
	state    selectionState
	value    string
}

func firstWins() *accumulator {
	return &accumulator{policy: keepFirst}
}

func conflictResolvesTo(fallback string) *accumulator {
	return &accumulator{policy: resolveTo, fallback: fallback}
}

// observe records a selected checkbox carrying value.
func (a *accumulator) observe(value string) {
	switch a.state {
	case selectionUnset:
		a.state = selectionSet
		a.value = value
	case selectionSet:
		if a.policy == keepFirst || value == a.value {
			return
		}
		a.state = selectionConflict
		a.value = a.fallback
	}
}

func (a *accumulator) result() (string, bool) {
	if a.state == selectionUnset {
		return "", false
	}
	return a.value, true
}
