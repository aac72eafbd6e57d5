// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package cmsparse extracts structured content fields from HTML pages
// exported by the Optimizely CMS editor. Fields are located by the
// attribute that names them (data-testid="/title" and similar) and read
// from the inline value container the editor renders around each value.
package cmsparse

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Field identifiers as they appear in the exported markup.
const (
	FieldTitle           = "/title"
	FieldBody            = "/body"
	FieldAuthor          = "/author"
	FieldMetaTitle       = "/metaTitle"
	FieldMetaDescription = "/metaDescription"
	FieldURLSlug         = "/urlSlug"
	FieldFeaturedMedia   = "/featuredMedia"
)

const (
	valueSelector       = ".stc-OccInlineField-value"
	placeholderSelector = ".placeholder-text"
	paragraphSelector   = valueSelector + " p:not(" + placeholderSelector + ")"

	contentTypeLabel = "Content Type:"
	titleLabel       = "Title:"

	// UnknownContentType is reported when the page carries no content type heading.
	UnknownContentType = "Unknown"
)

// ParsedContent is the flat record extracted from an exported page.
// Every field is best effort: missing markup yields "" (or nil for
// FeaturedMedia), never an error.
type ParsedContent struct {
	Title           string  `json:"title"`
	Body            string  `json:"body"`
	Author          string  `json:"author"`
	MetaTitle       string  `json:"metaTitle"`
	MetaDescription string  `json:"metaDescription"`
	URLSlug         string  `json:"urlSlug"`
	FeaturedMedia   *string `json:"featuredMedia"`
	ContentTypeName string  `json:"contentTypeName"`
}

// ParseError reports input that could not be read into a DOM at all.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cmsparse: cannot parse html: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parse extracts the content fields from an exported CMS page.
func Parse(html string) (*ParsedContent, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, &ParseError{Err: err}
	}
	return fromDocument(doc), nil
}

func fromDocument(doc *goquery.Document) *ParsedContent {
	p := &page{doc: doc}

	parsed := &ParsedContent{
		Title:           p.text(FieldTitle),
		Body:            p.html(FieldBody),
		Author:          p.text(FieldAuthor),
		MetaTitle:       p.text(FieldMetaTitle),
		MetaDescription: p.text(FieldMetaDescription),
		ContentTypeName: labelled(doc.Find("h5"), contentTypeLabel),
	}

	if parsed.Title == "" {
		parsed.Title = labelled(doc.Find("h3"), titleLabel)
	}
	if p.hasContent(FieldURLSlug) {
		parsed.URLSlug = p.text(FieldURLSlug)
	}
	if p.hasContent(FieldFeaturedMedia) {
		media := p.text(FieldFeaturedMedia)
		parsed.FeaturedMedia = &media
	}
	if parsed.ContentTypeName == "" {
		parsed.ContentTypeName = UnknownContentType
	}

	return parsed
}

// page wraps the document with the field lookup rules.
type page struct {
	doc *goquery.Document
}

// field returns the element tagged with the given identifier. Both the
// editor's data-testid attribute and a plain data-field attribute are accepted.
func (p *page) field(id string) *goquery.Selection {
	return p.doc.Find(fmt.Sprintf(`[data-testid=%q], [data-field=%q]`, id, id)).First()
}

// container returns the value container of a field, or the field itself
// when the export omitted the wrapper.
func container(field *goquery.Selection) *goquery.Selection {
	if c := field.Find(valueSelector); c.Length() > 0 {
		return c.First()
	}
	return field
}

// paragraphs returns the non-placeholder paragraphs inside the field value.
func paragraphs(field *goquery.Selection) *goquery.Selection {
	if field.Find(valueSelector).Length() > 0 {
		return field.Find(paragraphSelector)
	}
	return field.Find("p").Not(placeholderSelector)
}

// text reads the first real paragraph of a field, falling back to the raw
// text of the value container, placeholder text included.
func (p *page) text(id string) string {
	field := p.field(id)
	if field.Length() == 0 {
		return ""
	}
	if t := strings.TrimSpace(paragraphs(field).First().Text()); t != "" {
		return t
	}
	return strings.TrimSpace(container(field).Text())
}

// html serializes the first div inside the value container verbatim.
func (p *page) html(id string) string {
	field := p.field(id)
	if field.Length() == 0 {
		return ""
	}
	inner := container(field).ChildrenFiltered("div").First()
	if inner.Length() == 0 {
		return ""
	}
	h, err := inner.Html()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(h)
}

// hasContent reports whether a field carries a value rather than the
// editor's placeholder.
func (p *page) hasContent(id string) bool {
	field := p.field(id)
	if field.Length() == 0 {
		return false
	}
	return field.Find(placeholderSelector).Length() == 0 || paragraphs(field).Length() > 0
}

// labelled returns the text of sel with the given label removed.
func labelled(sel *goquery.Selection, label string) string {
	return strings.TrimSpace(strings.Replace(sel.Text(), label, "", 1))
}
