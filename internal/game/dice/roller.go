package dice

import (
	"fmt"
	"sort"
)

// Evaluate rolls every dice term of f using src and returns the resulting Roll.
//
// Precondition: f must come from ParseFormula; src must be non-nil.
// Postcondition: each dice term carries exactly Count results, of which
// KeepHighest (or all when KeepHighest == 0) are active;
// result.Total == sum of the term totals.
func Evaluate(f Formula, src Source) (*Roll, error) {
	terms := make([]Term, len(f.Terms))
	total := 0
	for i, t := range f.Terms {
		if t.Kind == TermDice {
			if t.Count < 1 || t.Count > MaxDice {
				return nil, fmt.Errorf("dice: term %s: count must be within 1..%d", t, MaxDice)
			}
			if t.Sides < 1 {
				return nil, fmt.Errorf("dice: term %s: sides must be positive", t)
			}
			t.Results = rollTerm(t, src)
		}
		terms[i] = t
		total += t.Total()
	}
	return &Roll{
		Formula: f.String(),
		Terms:   terms,
		Total:   total,
	}, nil
}

// EvaluateExpr parses expr and rolls it using src in a single call.
//
// Precondition: expr must be a valid dice formula; src must be non-nil.
// Postcondition: Returns a Roll or a parse error.
func EvaluateExpr(expr string, src Source) (*Roll, error) {
	f, err := ParseFormula(expr)
	if err != nil {
		return nil, err
	}
	return Evaluate(f, src)
}

// Zero returns an evaluated roll of the constant 0.
func Zero() *Roll {
	return &Roll{
		Formula: "0",
		Terms:   []Term{{Kind: TermNumber, Sign: 1}},
	}
}

func rollTerm(t Term, src Source) []DieResult {
	results := make([]DieResult, t.Count)
	for i := range results {
		results[i] = DieResult{Result: src.Intn(t.Sides) + 1, Active: true}
	}
	if t.KeepHighest <= 0 {
		return results
	}

	order := make([]int, len(results))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return results[order[a]].Result > results[order[b]].Result
	})
	for _, idx := range order[t.KeepHighest:] {
		results[idx].Active = false
	}
	return results
}
