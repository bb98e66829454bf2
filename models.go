package academy

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UserStatus is the lifecycle state of an identity
type UserStatus string

const (
	// UserStatusPending was created by an admin and has no password yet
	UserStatusPending UserStatus = "pending"
	// UserStatusActive can log in
	UserStatusActive UserStatus = "active"
	// UserStatusInProgress is active and has completed at least one task
	UserStatusInProgress UserStatus = "in-progress"
	// UserStatusBlocked can not log in nor refresh
	UserStatusBlocked UserStatus = "blocked"
)

func (s UserStatus) IsValid() bool {
	switch s {
	case UserStatusPending, UserStatusActive, UserStatusInProgress, UserStatusBlocked:
		return true
	default:
		return false
	}
}

// User is the user model
type User struct {
	bun.BaseModel  `bun:"table:users,alias:usr"`
	ID             uuid.UUID      `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Role           Role           `bun:"user_role,notnull" json:"role,omitempty"`
	Status         UserStatus     `bun:"status,notnull" json:"status,omitempty"`
	FirstName      string         `bun:"first_name,notnull" json:"firstName,omitempty"`
	LastName       string         `bun:"last_name,notnull" json:"lastName,omitempty"`
	Email          string         `bun:"email,notnull,unique" json:"email,omitempty"`
	Phone          string         `bun:"phone_number" json:"phoneNumber,omitempty"`
	PasswordHash   string         `bun:"password_hash" json:"-"`
	LoginAttempts  int            `bun:"login_attempts" json:"-"`
	LoginAttemptAt *time.Time     `bun:"login_attempt_at" json:"-"`
	LoggedInAt     *time.Time     `bun:"loggedin_at" json:"loggedInAt,omitempty"`
	BlockedAt      *time.Time     `bun:"blocked_at,nullzero" json:"blockedAt,omitempty"`
	Metadata       map[string]any `bun:"metadata" json:"metadata,omitempty"`
	ResetedAt      *time.Time     `bun:"reseted_at,nullzero" json:"resetedAt,omitempty"`
	CreatedAt      *time.Time     `bun:"created_at,nullzero,default:current_timestamp" json:"createdAt,omitempty"`
	UpdatedAt      *time.Time     `bun:"updated_at,nullzero,default:current_timestamp" json:"updatedAt,omitempty"`
	DeletedAt      *time.Time     `bun:"deleted_at,soft_delete,nullzero" json:"deletedAt,omitempty"`

	// CompletedTasks is loaded from user_completed_tasks, never stored inline.
	CompletedTasks []string `bun:"-" json:"completedTasks"`
}

// GetID returns the identity id as a string
func (u *User) GetID() string {
	return u.ID.String()
}

// GetRole returns the identity role as a string
func (u *User) GetRole() string {
	return string(u.Role)
}

// FullName joins first and last name
func (u *User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	default:
		return u.FirstName + " " + u.LastName
	}
}

// IsDeleted reports whether the identity was soft deleted
func (u *User) IsDeleted() bool {
	return u.DeletedAt != nil
}

// EnsureStatus defaults an empty status to pending
func (u *User) EnsureStatus() {
	if u.Status == "" {
		u.Status = UserStatusPending
	}
}

// AddMetadata will append information to a metadata attribute
func (u *User) AddMetadata(key string, val any) *User {
	if u.Metadata == nil {
		u.Metadata = make(map[string]any)
	}
	u.Metadata[key] = val
	return u
}

// UserCompletedTask is one entry of a learner's completed task set. The
// composite primary key makes inserts idempotent.
type UserCompletedTask struct {
	bun.BaseModel `bun:"table:user_completed_tasks,alias:uct"`
	UserID        uuid.UUID  `bun:"user_id,pk,type:uuid" json:"userId"`
	ContentID     string     `bun:"content_id,pk" json:"contentId"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"createdAt,omitempty"`
}

const (
	// CredentialTokenIssued can still be consumed
	CredentialTokenIssued = "issued"
	// CredentialTokenConsumed was used or superseded
	CredentialTokenConsumed = "consumed"
)

// CredentialToken backs a single use setup or reset token. Its id is the
// jti of the signed token.
type CredentialToken struct {
	bun.BaseModel `bun:"table:credential_tokens,alias:ctk"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID        uuid.UUID  `bun:"user_id,notnull,type:uuid" json:"userId,omitempty"`
	User          *User      `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
	Email         string     `bun:"email,notnull" json:"email,omitempty"`
	Kind          TokenKind  `bun:"kind,notnull" json:"kind,omitempty"`
	Status        string     `bun:"status,notnull" json:"status,omitempty"`
	ExpiresAt     time.Time  `bun:"expires_at,notnull" json:"expiresAt"`
	ConsumedAt    *time.Time `bun:"consumed_at,nullzero" json:"consumedAt,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"createdAt,omitempty"`
}
