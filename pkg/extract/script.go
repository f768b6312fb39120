package extract

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"

	errs "igcrawler/pkg/errors"
)

// SharedDataMarker prefixes the script that carries the profile bootstrap JSON.
const SharedDataMarker = "window._sharedData"

// ScriptJSON finds the first <script> whose text starts with marker and
// returns the JSON object assigned in it.
func ScriptJSON(htmlBody []byte, marker string) ([]byte, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(htmlBody))
	if err != nil {
		return nil, errs.NewParseError("html", "failed to parse page", err)
	}

	var script string
	found := false
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.TrimSpace(s.Text())
		if strings.HasPrefix(text, marker) {
			script = text
			found = true
			return false
		}
		return true
	})
	if !found {
		return nil, errs.NewParseError("script["+marker+"]", "bootstrap script not found", nil)
	}

	obj, ok := balancedObject(script)
	if !ok {
		return nil, errs.NewParseError(marker, "no complete JSON object in bootstrap script", nil)
	}
	return []byte(obj), nil
}

// balancedObject returns s from its first '{' up to the matching '}'.
// Braces inside JSON strings are ignored.
func balancedObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
