// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package slug provides URL-friendly slug generation from arbitrary strings.
package slug

import (
	"regexp"
	"strings"
)

// MaxLen is the longest slug Generate returns.
const MaxLen = 100

// nonAlphanumeric matches every run of characters outside [a-z0-9].
var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)

// Generate creates a URL-friendly slug from the given string.
// Example: "Hello, World! 2026" → "hello-world-2026"
//
// The result only ever contains [a-z0-9-], never starts or ends with a
// hyphen and is at most MaxLen bytes, so Generate(Generate(s)) == Generate(s).
func Generate(s string) string {
	result := strings.ToLower(s)
	result = nonAlphanumeric.ReplaceAllString(result, "-")
	result = strings.Trim(result, "-")
	if len(result) > MaxLen {
		// Output is ASCII here, so a byte cut never splits a rune.
		result = strings.TrimRight(result[:MaxLen], "-")
	}
	return result
}
