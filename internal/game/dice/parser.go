package dice

import (
	"fmt"
	"strconv"
	"strings"
)

// Formula is a parsed dice formula ready to be rolled.
//
// Invariant: len(Terms) >= 1 after a successful ParseFormula.
type Formula struct {
	Raw   string
	Terms []Term
}

// String renders the formula in canonical form, e.g. "2d6 + 1d4 - 1".
func (f Formula) String() string {
	var b strings.Builder
	for i, t := range f.Terms {
		switch {
		case i == 0 && t.Sign < 0:
			b.WriteString("-")
		case i > 0 && t.Sign < 0:
			b.WriteString(" - ")
		case i > 0:
			b.WriteString(" + ")
		}
		b.WriteString(t.String())
	}
	return b.String()
}

// MaxDice is the largest die count a single term may roll.
const MaxDice = 1000

// Alter multiplies the die count of the first dice term by multiply and then
// adds add. Every other term is left untouched. The receiver is not modified.
//
// Precondition: multiply >= 1; add >= 0.
// Postcondition: the returned formula differs from f only in its first dice
// term, or an error is returned when that term would exceed MaxDice.
func (f Formula) Alter(multiply, add int) (Formula, error) {
	out := Formula{Terms: make([]Term, len(f.Terms))}
	copy(out.Terms, f.Terms)
	for i, t := range out.Terms {
		if t.Kind != TermDice {
			continue
		}
		count, err := scaleCount(t.Count, multiply, add)
		if err != nil {
			return Formula{}, err
		}
		t.Count = count
		if t.KeepHighest > 0 {
			t.KeepHighest = t.KeepHighest*multiply + add
		}
		out.Terms[i] = t
		break
	}
	out.Raw = out.String()
	return out, nil
}

// DoubleDice returns f with the die count of every dice term doubled, the
// way a critical hit rolls its damage dice twice.
//
// Postcondition: returns an error when a doubled term exceeds MaxDice.
func (f Formula) DoubleDice() (Formula, error) {
	out := Formula{Terms: make([]Term, len(f.Terms))}
	copy(out.Terms, f.Terms)
	for i, t := range out.Terms {
		if t.Kind != TermDice {
			continue
		}
		count, err := scaleCount(t.Count, 2, 0)
		if err != nil {
			return Formula{}, err
		}
		t.Count = count
		t.KeepHighest *= 2
		out.Terms[i] = t
	}
	out.Raw = out.String()
	return out, nil
}

func scaleCount(count, multiply, add int) (int, error) {
	if multiply < 1 || add < 0 {
		return 0, fmt.Errorf("dice: invalid scale %d+%d", multiply, add)
	}
	if count > (MaxDice-add)/multiply {
		return 0, fmt.Errorf("dice: %dd scaled by %d+%d exceeds %d dice", count, multiply, add, MaxDice)
	}
	return count*multiply + add, nil
}

// ParseFormula parses a sum of dice and constant terms.
// Supported term forms: "d20", "2d6", "4d6kh3", "1d20cs>=19", "3".
//
// Precondition: expr must be non-empty.
// Postcondition: Returns a Formula with at least one term or a descriptive error.
func ParseFormula(expr string) (Formula, error) {
	s := strings.ToLower(strings.Join(strings.Fields(expr), ""))
	if s == "" {
		return Formula{}, fmt.Errorf("dice: empty expression")
	}

	var terms []Term
	sign := 1
	start := 0
	if s[0] == '+' || s[0] == '-' {
		if s[0] == '-' {
			sign = -1
		}
		start = 1
	}
	for i := start; i <= len(s); i++ {
		if i < len(s) && s[i] != '+' && s[i] != '-' {
			continue
		}
		chunk := s[start:i]
		if chunk == "" {
			return Formula{}, fmt.Errorf("dice: dangling operator in %q", expr)
		}
		t, err := parseTerm(chunk)
		if err != nil {
			return Formula{}, fmt.Errorf("dice: invalid term %q in %q: %w", chunk, expr, err)
		}
		t.Sign = sign
		terms = append(terms, t)
		if i < len(s) {
			sign = 1
			if s[i] == '-' {
				sign = -1
			}
		}
		start = i + 1
	}
	return Formula{Raw: expr, Terms: terms}, nil
}

func parseTerm(s string) (Term, error) {
	dIdx := strings.Index(s, "d")
	if dIdx < 0 {
		v, err := strconv.Atoi(s)
		if err != nil {
			return Term{}, fmt.Errorf("not a number: %w", err)
		}
		if v < 0 {
			return Term{}, fmt.Errorf("constant must not be negative")
		}
		return Term{Kind: TermNumber, Value: v}, nil
	}

	// Parse count (the part before 'd'); defaults to 1 when omitted.
	count := 1
	if countStr := s[:dIdx]; countStr != "" {
		var err error
		count, err = strconv.Atoi(countStr)
		if err != nil {
			return Term{}, fmt.Errorf("invalid die count: %w", err)
		}
		if count <= 0 {
			return Term{}, fmt.Errorf("invalid die count: must be >= 1")
		}
		if count > MaxDice {
			return Term{}, fmt.Errorf("invalid die count: %d exceeds %d", count, MaxDice)
		}
	}

	rest := s[dIdx+1:]

	critical := 0
	if csIdx := strings.Index(rest, "cs"); csIdx >= 0 {
		csStr := strings.TrimPrefix(rest[csIdx+2:], ">=")
		rest = rest[:csIdx]
		cs, err := strconv.Atoi(csStr)
		if err != nil {
			return Term{}, fmt.Errorf("invalid cs value: %w", err)
		}
		critical = cs
	}

	keepHighest := 0
	if khIdx := strings.Index(rest, "kh"); khIdx >= 0 {
		khStr := rest[khIdx+2:]
		rest = rest[:khIdx]
		kh, err := strconv.Atoi(khStr)
		if err != nil {
			return Term{}, fmt.Errorf("invalid kh value: %w", err)
		}
		if kh <= 0 || kh >= count {
			return Term{}, fmt.Errorf("kh value %d must be > 0 and < count %d", kh, count)
		}
		keepHighest = kh
	}

	sides, err := strconv.Atoi(rest)
	if err != nil {
		return Term{}, fmt.Errorf("invalid die sides: %w", err)
	}
	if sides < 2 {
		return Term{}, fmt.Errorf("invalid die sides: must be >= 2")
	}
	if critical < 0 || critical > sides {
		return Term{}, fmt.Errorf("cs value %d must be within 1..%d", critical, sides)
	}

	return Term{
		Kind:        TermDice,
		Count:       count,
		Sides:       sides,
		KeepHighest: keepHighest,
		Critical:    critical,
	}, nil
}
