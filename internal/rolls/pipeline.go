// Package rolls chains the follow-up rolls of an item use and aggregates an
// item's independent damage formulas into one combined damage message.
//
// Both behaviors are middleware over a caller-supplied base operation: the
// host keeps ownership of its roll primitives and the Patcher installs the
// decorated operations exactly once.
package rolls

import (
	"context"

	"github.com/cory-johannsen/multiroll/internal/game/item"
)

// Operation is a roll operation performed on an item.
type Operation[Req, Res any] func(ctx context.Context, it *item.Item, req Req) (Res, error)

// Middleware decorates an Operation.
type Middleware[Req, Res any] func(next Operation[Req, Res]) Operation[Req, Res]

// Stages splits a middleware into the hooks run around the wrapped operation.
// Pre may rewrite the request, Core replaces the call to next (nil calls next
// once), and Post sees the request and result after Core. Any error aborts
// the remaining stages.
type Stages[Req, Res any] struct {
	Pre  func(ctx context.Context, it *item.Item, req Req) (Req, error)
	Core func(ctx context.Context, it *item.Item, req Req, next Operation[Req, Res]) (Res, error)
	Post func(ctx context.Context, it *item.Item, req Req, res Res) (Res, error)
}

// Middleware builds the middleware running s.
func (s Stages[Req, Res]) Middleware() Middleware[Req, Res] {
	return func(next Operation[Req, Res]) Operation[Req, Res] {
		return func(ctx context.Context, it *item.Item, req Req) (Res, error) {
			var zero Res
			if s.Pre != nil {
				var err error
				if req, err = s.Pre(ctx, it, req); err != nil {
					return zero, err
				}
			}

			var res Res
			var err error
			if s.Core != nil {
				res, err = s.Core(ctx, it, req, next)
			} else {
				res, err = next(ctx, it, req)
			}
			if err != nil {
				return zero, err
			}

			if s.Post != nil {
				return s.Post(ctx, it, req, res)
			}
			return res, nil
		}
	}
}

// Chain wraps base in mws. The first middleware is the outermost.
//
// Precondition: base must be non-nil.
func Chain[Req, Res any](base Operation[Req, Res], mws ...Middleware[Req, Res]) Operation[Req, Res] {
	op := base
	for i := len(mws) - 1; i >= 0; i-- {
		op = mws[i](op)
	}
	return op
}
