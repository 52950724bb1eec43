// Package assets bundles the default character document into the binary
package assets

import (
	_ "embed"
)

//go:embed velsirion.json
var defaultDocument []byte

// DefaultDocumentName is the file name offered for exports of the bundled document
const DefaultDocumentName = "velsirion.json"

// DefaultDocument returns a copy of the bundled character document
func DefaultDocument() []byte {
	return append([]byte(nil), defaultDocument...)
}
