package models

import (
	"time"

	"github.com/google/uuid"
)

// Platform identifies the network a social account lives on.
type Platform string

const (
	PlatformFacebook  Platform = "facebook"
	PlatformTikTok    Platform = "tiktok"
	PlatformLinkedIn  Platform = "linkedin"
	PlatformInstagram Platform = "instagram"
	PlatformX         Platform = "x"
)

// AccountStatus is the health of an account's stored credential.
type AccountStatus string

const (
	AccountValid   AccountStatus = "valid"
	AccountExpired AccountStatus = "expired"
	AccountRevoked AccountStatus = "revoked"
)

// SocialAccount is a linked profile on a social platform.
type SocialAccount struct {
	ID             uuid.UUID     `json:"id"`
	UserID         uuid.UUID     `json:"user_id"`
	Platform       Platform      `json:"platform"`
	PlatformUserID *string       `json:"platform_user_id"`
	DisplayName    string        `json:"display_name"`
	IsActive       bool          `json:"is_active"`
	AccessToken    *string       `json:"-"`
	Status         AccountStatus `json:"status"`
	GroupName      string        `json:"group_name"`
	CreatedAt      time.Time     `json:"created_at"`
}

// Group returns the account's group, defaulting to its platform.
func (a *SocialAccount) Group() string {
	if a.GroupName != "" {
		return a.GroupName
	}
	return string(a.Platform)
}

// ValidPlatform reports whether p names a supported platform.
func ValidPlatform(p string) bool {
	switch Platform(p) {
	case PlatformFacebook, PlatformTikTok, PlatformLinkedIn, PlatformInstagram, PlatformX:
		return true
	}
	return false
}
