// Package pathenc maps project paths to storage namespace keys.
//
// The encoding replaces every '/' and '.' with '-', so two paths that
// differ only in a '.' vs '/' at the same position collapse to the same
// key. That collision is a documented limitation of the scheme, kept
// for compatibility with existing project namespaces.
package pathenc

import "strings"

// Encode maps an absolute project path to a storage-safe namespace key.
// Deterministic and total; contains no path separators.
//
//	/Users/foo/.claude -> -Users-foo--claude
func Encode(path string) string {
	return strings.NewReplacer("/", "-", ".", "-").Replace(path)
}

// Decode is a best-effort inverse of Encode, for diagnostics only.
// It is lossy: every '-' is assumed to have been a '/', so any '.' in
// the original path comes back wrong. Never use the result for routing.
func Decode(key string) string {
	if strings.HasPrefix(key, "-") {
		return "/" + strings.ReplaceAll(key[1:], "-", "/")
	}
	return strings.ReplaceAll(key, "-", "/")
}
