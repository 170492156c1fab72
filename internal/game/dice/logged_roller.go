package dice

import "go.uber.org/zap"

// Roller wraps a Source and logger to provide logged dice rolling.
// All rolls are logged at debug level with formula, faces, and total.
type Roller struct {
	src    Source
	logger *zap.Logger
}

// NewLoggedRoller creates a Roller that rolls with src and logs each roll to logger.
//
// Precondition: src and logger must be non-nil.
func NewLoggedRoller(src Source, logger *zap.Logger) *Roller {
	return &Roller{src: src, logger: logger}
}

// Roll evaluates f and logs the result at debug level.
//
// Precondition: f must come from ParseFormula.
// Postcondition: result logged; returns the Roll or an error.
func (r *Roller) Roll(f Formula) (*Roll, error) {
	result, err := Evaluate(f, r.src)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("dice roll",
		zap.String("formula", result.Formula),
		zap.Ints("faces", faces(result)),
		zap.Int("total", result.Total),
	)
	return result, nil
}

// RollExpr parses expr and rolls it, logging the result.
//
// Precondition: expr must be a valid dice formula string.
// Postcondition: Returns a Roll or a parse/roll error.
func (r *Roller) RollExpr(expr string) (*Roll, error) {
	f, err := ParseFormula(expr)
	if err != nil {
		return nil, err
	}
	return r.Roll(f)
}

func faces(r *Roll) []int {
	var out []int
	for _, t := range r.Dice() {
		for _, d := range t.Results {
			out = append(out, d.Result)
		}
	}
	return out
}
