package rag

import (
	"regexp"
	"strings"
)

// Id prefixes used by the classroom sync when indexing derived documents.
const (
	PrefixAnnAtt    = "ann_att_"
	PrefixAnn       = "ann_"
	PrefixDriveFile = "drive_file_"
)

// KnownPrefixes in strip order. ann_att_ must come before ann_.
var KnownPrefixes = []string{PrefixAnnAtt, PrefixAnn, PrefixDriveFile}

var longTokenPattern = regexp.MustCompile(`[A-Za-z0-9_-]{25,}`)

// ExtractLongToken pulls the longest run that looks like a platform file
// identifier (25+ alphanumeric characters) out of an id. Returns "" when
// nothing qualifies.
func ExtractLongToken(id string) string {
	matches := longTokenPattern.FindAllString(id, -1)
	longest := ""
	for _, m := range matches {
		if len(m) > len(longest) {
			longest = m
		}
	}
	return longest
}

// StripKnownPrefixes removes the first matching sync prefix from an id.
func StripKnownPrefixes(id string) string {
	for _, p := range KnownPrefixes {
		if strings.HasPrefix(id, p) {
			return strings.TrimPrefix(id, p)
		}
	}
	return id
}

// IsAnnouncementDerived reports whether an id was minted from an
// announcement or one of its attachments.
func IsAnnouncementDerived(id string) bool {
	return strings.HasPrefix(id, PrefixAnn)
}
