// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package optimizely maps parsed CMS pages into Optimizely SaaS CMS content
// items and talks to the CMS management and Graph APIs.
package optimizely

import (
	"broadcaster/internal/cmsparse"
	"broadcaster/internal/slug"
)

// DefaultContentType is used when the caller does not name one.
const DefaultContentType = "OpalPage"

// DefaultLocale is applied by the API publish route when none is supplied.
const DefaultLocale = "en-US"

// Content item statuses accepted by the CMS.
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
	StatusScheduled = "scheduled"
)

// ValidStatus reports whether s is one of the recognised statuses.
func ValidStatus(s string) bool {
	switch s {
	case StatusDraft, StatusPublished, StatusScheduled:
		return true
	}
	return false
}

// Properties are the content type fields sent to the CMS.
type Properties struct {
	Title           string `json:"title"`
	Body            string `json:"body"`
	Author          string `json:"author"`
	MetaTitle       string `json:"metaTitle"`
	MetaDescription string `json:"metaDescription"`
	URLSlug         string `json:"urlSlug,omitempty"`
}

// ContentItem is the create-content payload. Optional keys are omitted
// from the JSON entirely when unset.
type ContentItem struct {
	ContentType       string     `json:"contentType"`
	DisplayName       string     `json:"displayName"`
	Status            string     `json:"status"`
	Properties        Properties `json:"properties"`
	RouteSegment      string     `json:"routeSegment,omitempty"`
	Container         string     `json:"container,omitempty"`
	Locale            string     `json:"locale,omitempty"`
	DelayPublishUntil string     `json:"delayPublishUntil,omitempty"`
}

// MapOptions carries the optional publishing settings. Empty strings mean
// "not supplied".
type MapOptions struct {
	DelayPublishUntil string
	Container         string
	Locale            string
	IsRoutable        bool
}

// MapToContentItem builds the CMS payload for parsed content. It performs
// no validation; callers check status and scheduling beforehand.
func MapToContentItem(parsed *cmsparse.ParsedContent, contentType, status string, opts MapOptions) ContentItem {
	item := ContentItem{
		ContentType: contentType,
		DisplayName: parsed.Title,
		Status:      status,
		Properties: Properties{
			Title:           parsed.Title,
			Body:            parsed.Body,
			Author:          parsed.Author,
			MetaTitle:       parsed.MetaTitle,
			MetaDescription: parsed.MetaDescription,
		},
		Container: opts.Container,
		Locale:    opts.Locale,
	}

	if opts.IsRoutable {
		item.RouteSegment = parsed.URLSlug
		if item.RouteSegment == "" {
			item.RouteSegment = slug.Generate(parsed.Title)
		}
		item.Properties.URLSlug = parsed.URLSlug
	}

	if status == StatusScheduled {
		item.DelayPublishUntil = opts.DelayPublishUntil
	}

	return item
}
