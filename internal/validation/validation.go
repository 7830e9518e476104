package validation

import (
	"regexp"
	"strings"
)

var (
	attachmentRefRe = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._\-/]{0,511}$`)
	externalRefRe   = regexp.MustCompile(`^[\x21-\x7e]{1,191}$`)
)

// ValidateAttachmentRef checks the shape of an opaque blob-storage key.
func ValidateAttachmentRef(ref string) bool {
	if !attachmentRefRe.MatchString(ref) {
		return false
	}
	return !strings.Contains(ref, "..") && !strings.Contains(ref, "//")
}

// ValidateExternalRef accepts printable ASCII without spaces, up to the column width.
func ValidateExternalRef(ref string) bool {
	return externalRefRe.MatchString(ref)
}
