// Package web embeds the HTML templates and static assets served by the
// HTTP layer so the binary ships self-contained.
package web

import "embed"

// TemplatesFS holds the page and partial templates.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS holds stylesheets and other static files.
//
//go:embed static/*
var StaticFS embed.FS
