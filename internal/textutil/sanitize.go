package textutil

import "strings"

// fileNameReplacer replaces filesystem-unsafe characters with safe alternatives.
var fileNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
	"\x00", "",
)

// SanitizeFileName replaces filesystem-unsafe characters in a single path
// segment. Slashes, backslashes, colons, and asterisks become dashes; other
// unsafe characters are removed. Names made only of dots become "_" so the
// result never walks out of its parent directory.
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(fileNameReplacer.Replace(strings.TrimSpace(name)))
	if name != "" && strings.Trim(name, ".") == "" {
		return "_"
	}
	return name
}

// SanitizePath sanitizes every slash-separated segment of p and drops empty
// ones.
func SanitizePath(p string) string {
	segments := strings.Split(p, "/")
	out := segments[:0]
	for _, segment := range segments {
		if clean := SanitizeFileName(segment); clean != "" {
			out = append(out, clean)
		}
	}
	return strings.Join(out, "/")
}
