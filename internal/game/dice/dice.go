// Package dice provides dice formulas, their evaluation into rolls, and the
// randomness abstraction shared by every roll primitive.
package dice

import (
	"encoding/json"
	"fmt"
	"strings"
)

// TermKind distinguishes dice terms from flat numeric terms.
type TermKind string

const (
	// TermDice is an NdS term.
	TermDice TermKind = "dice"
	// TermNumber is a flat constant.
	TermNumber TermKind = "number"
)

// DieResult is the face shown by one physical die.
type DieResult struct {
	Result int  `json:"result"`
	Active bool `json:"active"`
}

// Term is one additive component of a formula. After evaluation Results holds
// every die rolled for a dice term, in roll order.
//
// Invariant: Sign is +1 or -1.
type Term struct {
	Kind        TermKind    `json:"kind"`
	Sign        int         `json:"sign"`
	Count       int         `json:"count,omitempty"`
	Sides       int         `json:"sides,omitempty"`
	KeepHighest int         `json:"keepHighest,omitempty"`
	Critical    int         `json:"critical,omitempty"` // 0 means Sides
	Value       int         `json:"value,omitempty"`
	Results     []DieResult `json:"results,omitempty"`
}

// CriticalThreshold returns the lowest face that counts as a critical for a
// dice term.
func (t Term) CriticalThreshold() int {
	if t.Critical > 0 {
		return t.Critical
	}
	return t.Sides
}

// Total returns the signed contribution of the term. Only active dice count.
func (t Term) Total() int {
	if t.Kind == TermNumber {
		return t.Sign * t.Value
	}
	sum := 0
	for _, r := range t.Results {
		if r.Active {
			sum += r.Result
		}
	}
	return t.Sign * sum
}

// String renders the term without its sign.
func (t Term) String() string {
	if t.Kind == TermNumber {
		return fmt.Sprintf("%d", t.Value)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%dd%d", t.Count, t.Sides)
	if t.KeepHighest > 0 {
		fmt.Fprintf(&b, "kh%d", t.KeepHighest)
	}
	if t.Critical > 0 {
		fmt.Fprintf(&b, "cs>=%d", t.Critical)
	}
	return b.String()
}

// Roll is an evaluated formula with the full audit trail of every die.
//
// Postcondition: Total == sum of Terms[i].Total().
type Roll struct {
	Formula string `json:"formula"`
	Terms   []Term `json:"terms"`
	Total   int    `json:"total"`
}

// Dice returns the dice terms of the roll in formula order.
func (r *Roll) Dice() []Term {
	var out []Term
	for _, t := range r.Terms {
		if t.Kind == TermDice {
			out = append(out, t)
		}
	}
	return out
}

// FirstDie returns the first raw face rolled and the critical threshold of
// the die that produced it. ok is false when the roll holds no dice.
func (r *Roll) FirstDie() (face, threshold int, ok bool) {
	for _, t := range r.Terms {
		if t.Kind == TermDice && len(t.Results) > 0 {
			return t.Results[0].Result, t.CriticalThreshold(), true
		}
	}
	return 0, 0, false
}

// IsCritical reports whether the first raw die face reaches its critical
// threshold.
func (r *Roll) IsCritical() bool {
	face, threshold, ok := r.FirstDie()
	return ok && face >= threshold
}

// JSON returns the serialized form of the roll.
func (r *Roll) JSON() (json.RawMessage, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("dice: marshalling roll %q: %w", r.Formula, err)
	}
	return data, nil
}

// String returns a human-readable audit string in the format:
//
//	"2d6 + 3 → [4 5] +3 = 12"
func (r *Roll) String() string {
	var faces []int
	flat := 0
	for _, t := range r.Terms {
		if t.Kind == TermNumber {
			flat += t.Sign * t.Value
			continue
		}
		for _, d := range t.Results {
			if d.Active {
				faces = append(faces, d.Result)
			}
		}
	}
	return fmt.Sprintf("%s → %v %+d = %d", r.Formula, faces, flat, r.Total)
}

// Source is the randomness provider for dice rolls.
//
// Implementations MUST be safe for concurrent use.
type Source interface {
	// Intn returns a non-negative random int in [0, n).
	//
	// Precondition: n > 0.
	Intn(n int) int
}
