// Package web provides the embedded admin console pages.
package web

import "embed"

// Pages holds setup.html and admin.html.
//
//go:embed setup.html admin.html
var Pages embed.FS
