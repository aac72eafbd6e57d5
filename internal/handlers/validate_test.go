package handlers

import (
	"strings"
	"testing"
)

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"plain", "user@example.com", "user@example.com", false},
		{"trimmed and lowered", "  User@Example.COM ", "user@example.com", false},
		{"empty", "", "", true},
		{"no at sign", "user.example.com", "", true},
		{"display name form", "Bob <bob@example.com>", "", true},
		{"too long", strings.Repeat("a", 250) + "@x.io", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, msg := normalizeEmail(tt.in)
			if (msg != "") != tt.wantErr {
				t.Fatalf("msg = %q, wantErr %v", msg, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name      string
		password  string
		wantError bool
	}{
		{"valid", "correct horse", false},
		{"too short", "short", true},
		{"exactly 8", "12345678", false},
		{"too long for bcrypt", strings.Repeat("a", 73), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := validatePassword(tt.password); (got != "") != tt.wantError {
				t.Errorf("validatePassword = %q, wantError %v", got, tt.wantError)
			}
		})
	}
}

func TestValidateMessage(t *testing.T) {
	if validateMessage("hello") != "" {
		t.Error("plain message should pass")
	}
	if validateMessage("  \n ") != "Message is required" {
		t.Error("blank message should fail")
	}
	if validateMessage(strings.Repeat("a", maxMessageLen+1)) == "" {
		t.Error("oversized message should fail")
	}
}

func TestValidateContent(t *testing.T) {
	tests := []struct {
		name      string
		title     string
		body      string
		wantError bool
	}{
		{"valid", "My Title", "<p>Body</p>", false},
		{"empty title", "", "body", true},
		{"whitespace title", "   ", "body", true},
		{"empty body", "title", "", true},
		{"title too long", strings.Repeat("a", 301), "body", true},
		{"body too long", "title", strings.Repeat("a", maxBodyLen+1), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := validateContent(tt.title, tt.body)
			if tt.wantError && result == "" {
				t.Error("expected an error, got none")
			}
			if !tt.wantError && result != "" {
				t.Errorf("unexpected error: %s", result)
			}
		})
	}
}
