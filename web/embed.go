// Package web embeds the page templates and static assets served by the
// expenso binary.
package web

import "embed"

// TemplatesFS holds the layout, the shared partials and one file per page.
//
//go:embed templates/*.html templates/partials/*.html templates/pages/*.html
var TemplatesFS embed.FS

// StaticFS embeds static assets (css/js).
//
//go:embed static/*
var StaticFS embed.FS
