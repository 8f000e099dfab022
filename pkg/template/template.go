// Package template substitutes {{path.to.value}} tokens in authored
// subject and body strings. Rendering is pure: no side effects, no I/O.
package template

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	tokenPattern = regexp.MustCompile(`{{([\w.]+)}}`)
	htmlTag      = regexp.MustCompile(`<[^>]*>?`)
)

// Render replaces each {{a.b.c}} token with the stringified value found by
// resolving the dotted path against vars. A token whose path resolves to a
// missing or nil value at any segment is left verbatim in the output, so
// malformed templates stay visible instead of being silently blanked.
func Render(text string, vars map[string]any) string {
	return tokenPattern.ReplaceAllStringFunc(text, func(token string) string {
		path := token[2 : len(token)-2]

		value, ok := resolve(vars, path)
		if !ok {
			return token
		}

		return stringify(value)
	})
}

// StripHTML derives a plain-text body by removing all markup tags.
func StripHTML(html string) string {
	return htmlTag.ReplaceAllString(html, "")
}

func resolve(vars map[string]any, path string) (any, bool) {
	var current any = vars

	for _, segment := range strings.Split(path, ".") {
		node, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}

		current, ok = node[segment]
		if !ok || current == nil {
			return nil, false
		}
	}

	return current, true
}

func stringify(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		// JSON numbers decode as float64; render integers without the
		// trailing ".0".
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
