package academy

// ClaimsDecorator can add extension claims before a token is signed.
// Only Metadata may change. Identity, kind, role and registered claims are
// checked after every decorator and a mutation fails the issue.
type ClaimsDecorator interface {
	Decorate(kind TokenKind, claims *JWTClaims) error
}

// ClaimsDecoratorFunc adapts a function into a ClaimsDecorator.
type ClaimsDecoratorFunc func(kind TokenKind, claims *JWTClaims) error

func (f ClaimsDecoratorFunc) Decorate(kind TokenKind, claims *JWTClaims) error {
	if f == nil {
		return nil
	}
	return f(kind, claims)
}

// WithClaimsDecorator registers decorators, run in order on every Issue.
func WithClaimsDecorator(decorators ...ClaimsDecorator) TokenServiceOption {
	return func(ts *TokenServiceImpl) {
		for _, d := range decorators {
			if d != nil {
				ts.decorators = append(ts.decorators, d)
			}
		}
	}
}

func (ts *TokenServiceImpl) decorate(kind TokenKind, claims *JWTClaims) error {
	if len(ts.decorators) == 0 {
		return nil
	}

	snap := captureImmutableClaims(claims)
	for _, d := range ts.decorators {
		if err := d.Decorate(kind, claims); err != nil {
			return wrapError(ErrInternal, err, map[string]any{"kind": kind})
		}
		if err := snap.validate(claims); err != nil {
			return err
		}
	}
	return nil
}
