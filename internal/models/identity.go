package models

import (
	"fmt"
	"strings"
)

// Identity is the remote profile returned by the identity provider, or the
// synthetic identity built for an email/password attempt.
type Identity struct {
	ProviderID string
	Email      string
	Username   string
	GlobalName string
	Avatar     string // provider avatar hash
	Verified   bool
}

// EmailIdentity builds the identity used by the email/password path. The
// username is the local part of the address.
func EmailIdentity(email string) Identity {
	username := email
	if at := strings.Index(email, "@"); at >= 0 {
		username = email[:at]
	}
	return Identity{
		Email:    email,
		Username: username,
	}
}

// DisplayName is the global name, falling back to the username.
func (i Identity) DisplayName() string {
	if i.GlobalName != "" {
		return i.GlobalName
	}
	return i.Username
}

// AvatarURL derives the CDN URL for the avatar hash, empty when there is none.
func (i Identity) AvatarURL(cdnBaseURL string) string {
	if i.Avatar == "" || i.ProviderID == "" {
		return ""
	}
	return fmt.Sprintf("%s/avatars/%s/%s.png", strings.TrimRight(cdnBaseURL, "/"), i.ProviderID, i.Avatar)
}

// Identifier is what login attempts are logged under: the provider id when
// present, otherwise the email.
func (i Identity) Identifier() string {
	if i.ProviderID != "" {
		return i.ProviderID
	}
	return i.Email
}
