package academy

import (
	"context"

	"github.com/goliatone/go-academy/middleware/jwtware"
)

// ValidationListener aliases the jwtware listener so consumers can use
// academy helpers directly.
type ValidationListener = jwtware.ValidationListener

// ContextEnricherAdapter stores the authorized identity in the standard
// context for code that only sees a context.Context.
func ContextEnricherAdapter(c context.Context, principal jwtware.Principal) context.Context {
	user, ok := principal.(*User)
	if !ok || user == nil {
		return c
	}
	return WithContext(c, user)
}

// RegisterValidationListeners appends listeners to a jwtware.Config,
// skipping nils.
func RegisterValidationListeners(cfg *jwtware.Config, listeners ...ValidationListener) {
	if cfg == nil || len(listeners) == 0 {
		return
	}
	for _, l := range listeners {
		if l != nil {
			cfg.ValidationListeners = append(cfg.ValidationListeners, l)
		}
	}
}
