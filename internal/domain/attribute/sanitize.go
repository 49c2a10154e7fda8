package attribute

import (
	"regexp"
	"strings"
)

// IDField is the synthetic external name carrying the engine-native record identifier.
// It has no storage mapping.
const IDField = "id"

// digitPrefix is prepended to names that would otherwise start with a digit.
const digitPrefix = "x_"

var (
	parenthetical = regexp.MustCompile(`\([^)]*\)`)
	disallowed    = regexp.MustCompile(`[^A-Za-z0-9_]`)
)

// Sanitize derives the API-safe external name from a storage name.
// The transform is pure: parenthetical groups and everything from the first slash are removed,
// '+' is dropped, any other character outside [A-Za-z0-9_] becomes '_', and a leading digit
// gets the "x_" marker.
func Sanitize(storage string) string {
	name := parenthetical.ReplaceAllString(storage, "")
	if i := strings.IndexByte(name, '/'); i >= 0 {
		name = name[:i]
	}
	name = strings.ReplaceAll(name, "+", "")
	name = disallowed.ReplaceAllString(name, "_")
	if name != "" && name[0] >= '0' && name[0] <= '9' {
		name = digitPrefix + name
	}
	return name
}
