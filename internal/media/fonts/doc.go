// Package fonts reads TrueType and OpenType fonts (including the first face
// of a collection) for the font activities: name-table metadata in a
// requested language, coverage checks and a rendered specimen image.
package fonts
