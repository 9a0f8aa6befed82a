// Package pathutil provides path manipulation for slash-separated entry names.
package pathutil

import (
	"io/fs"
	"strings"
)

// Base returns the last element of a slash-separated path.
// If path is empty or ".", it returns ".".
func Base(path string) string {
	if path == "" || path == "." {
		return "."
	}
	// Remove trailing slash if present
	path = strings.TrimSuffix(path, "/")
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}

// DirPrefix converts a path to its directory prefix form.
// For "" and ".", returns "" (empty prefix matches all).
// For other paths, appends "/" to match children.
func DirPrefix(name string) string {
	if name == "" || name == "." {
		return ""
	}
	return strings.TrimSuffix(name, "/") + "/"
}

// IsDir reports whether an entry name denotes a directory.
func IsDir(name string) bool {
	return strings.HasSuffix(name, "/")
}

// Clean validates an entry name for extraction below a directory and
// returns it without the trailing slash of directory entries. Absolute
// names, backslashes and "." or ".." elements are rejected.
func Clean(name string) (string, bool) {
	name = strings.TrimSuffix(name, "/")
	if strings.Contains(name, `\`) || !fs.ValidPath(name) || name == "." {
		return "", false
	}
	return name, true
}
