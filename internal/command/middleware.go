package command

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Middleware wraps a handler (logging, tracing).
type Middleware func(Handler) Handler

// Apply wraps d's handler. The first middleware in the list is the outermost.
func Apply(d Descriptor, mws ...Middleware) Descriptor {
	for i := len(mws) - 1; i >= 0; i-- {
		d.Handler = mws[i](d.Handler)
	}
	return d
}

// WithCommandLogger logs every handler run with its outcome.
func WithCommandLogger() Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, inv *Invocation) (Result, error) {
			start := time.Now()
			res, err := next(ctx, inv)

			ev := log.Debug()
			if err != nil {
				ev = log.Error().Err(err)
			}
			ev.Str("invocation", inv.ID).
				Str("command", inv.Name).
				Stringer("actor", inv.Actor).
				Int("args", len(inv.Args)).
				Bool("reply", inv.Reply != nil).
				Stringer("status", res.Status).
				Dur("took", time.Since(start)).
				Msg("Command handler finished")
			return res, err
		}
	}
}
