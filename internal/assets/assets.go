// Package assets embeds the single-page shell served for non-API routes.
package assets

import _ "embed"

//go:embed index.html
var IndexHTML []byte
