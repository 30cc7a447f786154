package recognition

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// CanonicalIdentity trims id and puts it in Unicode NFC so the same name typed
// on different systems maps to one gallery entry.
func CanonicalIdentity(id string) string {
	return norm.NFC.String(strings.TrimSpace(id))
}
