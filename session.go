package academy

import (
	"time"

	"github.com/google/uuid"
)

// Session is the outcome of a successful login
type Session struct {
	AccessToken  IssuedToken
	RefreshToken IssuedToken
	User         *User
}

// IdentitySummary is the public shape of an identity
type IdentitySummary struct {
	ID             uuid.UUID  `json:"id"`
	Email          string     `json:"email"`
	FirstName      string     `json:"firstName"`
	LastName       string     `json:"lastName"`
	Phone          string     `json:"phoneNumber,omitempty"`
	Role           Role       `json:"role"`
	Status         UserStatus `json:"status"`
	CompletedTasks []string   `json:"completedTasks"`
	LoggedInAt     *time.Time `json:"loggedInAt,omitempty"`
}

func SummaryFromUser(u *User) IdentitySummary {
	if u == nil {
		return IdentitySummary{CompletedTasks: []string{}}
	}
	tasks := u.CompletedTasks
	if tasks == nil {
		tasks = []string{}
	}
	return IdentitySummary{
		ID:             u.ID,
		Email:          u.Email,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		Phone:          u.Phone,
		Role:           u.Role,
		Status:         u.Status,
		CompletedTasks: tasks,
		LoggedInAt:     u.LoggedInAt,
	}
}

// LoginResponse is returned by the login endpoint
type LoginResponse struct {
	AccessToken      string          `json:"accessToken"`
	AccessExpiresAt  time.Time       `json:"accessExpiresAt"`
	RefreshToken     string          `json:"refreshToken"`
	RefreshExpiresAt time.Time       `json:"refreshExpiresAt"`
	User             IdentitySummary `json:"user"`
}

func (s *Session) Response() LoginResponse {
	return LoginResponse{
		AccessToken:      s.AccessToken.Token,
		AccessExpiresAt:  s.AccessToken.ExpiresAt,
		RefreshToken:     s.RefreshToken.Token,
		RefreshExpiresAt: s.RefreshToken.ExpiresAt,
		User:             SummaryFromUser(s.User),
	}
}
