// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"net/mail"
	"strings"
	"unicode/utf8"
)

// Validation limits for request fields.
const (
	maxEmailLen       = 254
	minPasswordLen    = 8
	maxPasswordBytes  = 72 // bcrypt ignores anything longer
	maxMessageLen     = 63_206
	maxDisplayNameLen = 200
	maxPageNameLen    = 300
	maxTitleLen       = 300
	maxBodyLen        = 500_000
)

// normalizeEmail trims and lower-cases an address, returning "" with a
// message when it is unusable.
func normalizeEmail(raw string) (string, string) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", "Email is required"
	}
	if len(email) > maxEmailLen {
		return "", "Email is too long"
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", "Email is invalid"
	}
	return email, ""
}

// validatePassword checks a new password and returns the first error found.
func validatePassword(password string) string {
	if utf8.RuneCountInString(password) < minPasswordLen {
		return "Password must be at least 8 characters"
	}
	if len(password) > maxPasswordBytes {
		return "Password is too long (max 72 bytes)"
	}
	return ""
}

// validateMessage checks a post message.
func validateMessage(message string) string {
	if strings.TrimSpace(message) == "" {
		return "Message is required"
	}
	if utf8.RuneCountInString(message) > maxMessageLen {
		return "Message is too long (max 63,206 characters)"
	}
	return ""
}

// validateContent checks CMS content supplied through the API.
func validateContent(title, body string) string {
	if strings.TrimSpace(title) == "" || strings.TrimSpace(body) == "" {
		return "Missing required content fields: title and body are required"
	}
	if utf8.RuneCountInString(title) > maxTitleLen {
		return "Title is too long (max 300 characters)"
	}
	if len(body) > maxBodyLen {
		return "Body is too long (max 500,000 bytes)"
	}
	return ""
}
