package models

import (
	"time"

	"github.com/google/uuid"
)

// FacebookPage is a publish destination linked by a user.
type FacebookPage struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	PageID      string    `json:"page_id"`
	PageName    string    `json:"page_name"`
	AccessToken *string   `json:"-"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

// HasToken reports whether the page carries its own access token.
func (p *FacebookPage) HasToken() bool {
	return p.AccessToken != nil && *p.AccessToken != ""
}

// Token returns the page token, or fallback when the page has none.
func (p *FacebookPage) Token(fallback string) string {
	if p.HasToken() {
		return *p.AccessToken
	}
	return fallback
}
