package badger

import (
	"fmt"

	"github.com/citable/quotefind/core"
)

// Key prefixes for different data types
const (
	documentPrefix     = "docrec"
	documentPathPrefix = "docpath"
)

// makeDocumentKey generates a key for a document by ID.
func makeDocumentKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", documentPrefix, id))
}

// makeDocumentPathKey generates a key for the path index.
// Format: prefix:path
func makeDocumentPathKey(path string) []byte {
	return []byte(documentPathPrefix + ":" + path)
}
