package request

import "strings"

// SplitPath splits a URL path on '/' and drops empty segments, so leading,
// trailing and repeated slashes collapse. It never returns nil.
func SplitPath(path string) []string {
	pieces := strings.FieldsFunc(path, func(r rune) bool { return r == '/' })
	if pieces == nil {
		return []string{}
	}
	return pieces
}
