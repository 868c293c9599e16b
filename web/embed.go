package web

import "embed"

// Content holds the HTML templates served by the application
//
//go:embed templates
var Content embed.FS
