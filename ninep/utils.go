package ninep

import "strings"

// Returns the parent path of the given path, including the trailing slash,
// or . if can't go up another directory
func Dirname(path string) string {
	i := strings.LastIndex(path, "/")
	if i == -1 {
		return "."
	}
	return path[:i+1]
}

// Returns the file of the given path
func Basename(path string) string {
	i := strings.LastIndex(path, "/")
	if i == -1 {
		return path
	}
	return path[i+1:]
}

// Clean trims redundant separators and the leading slash, leaving a path
// relative to the attach root. The root itself is "".
func Clean(path string) string {
	parts := strings.Split(path, "/")
	out := parts[:0]
	for _, p := range parts {
		switch p {
		case "", ".":
		case "..":
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
		default:
			out = append(out, p)
		}
	}
	return strings.Join(out, "/")
}
