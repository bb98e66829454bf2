package academy

// TokenKind tells which flow a signed token belongs to. Each kind is signed
// with its own key.
type TokenKind string

const (
	TokenKindAccess        TokenKind = "access"
	TokenKindRefresh       TokenKind = "refresh"
	TokenKindPasswordSetup TokenKind = "passwordSetup"
	TokenKindPasswordReset TokenKind = "passwordReset"
)

func (k TokenKind) IsValid() bool {
	switch k {
	case TokenKindAccess, TokenKindRefresh, TokenKindPasswordSetup, TokenKindPasswordReset:
		return true
	default:
		return false
	}
}

// IsSingleUse reports whether tokens of this kind are backed by a
// credential token row and may be consumed once.
func (k TokenKind) IsSingleUse() bool {
	switch k {
	case TokenKindPasswordSetup, TokenKindPasswordReset:
		return true
	default:
		return false
	}
}

func (k TokenKind) String() string {
	return string(k)
}
