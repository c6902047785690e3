// Package textutil provides filename sanitization for artifact object names.
package textutil
