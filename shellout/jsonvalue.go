// Copyright © NGRSoftlab 2020-2025

package shellout

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
)

// hexEscapeRE matches the literal \xHH escapes HBase shell prints inside
// cell values; plain JSON decoding does not understand them
var hexEscapeRE = regexp.MustCompile(`\\x([0-9A-Fa-f]{2})`)

// DecodeHexEscapes replaces each \xHH sequence with the character it encodes.
// A string without such sequences is returned unchanged
func DecodeHexEscapes(s string) string {
	return hexEscapeRE.ReplaceAllStringFunc(s, func(m string) string {
		code, err := strconv.ParseUint(m[2:], 16, 16)
		if err != nil {
			return m
		}
		return string(rune(code))
	})
}

// ParseJSONValue normalizes \xHH escapes in a cell value and decodes it as
// a JSON object. Best effort: callers apply it to values they know carry
// JSON payloads, it is never applied during row parsing
func ParseJSONValue(value string) (map[string]any, error) {
	decoded := DecodeHexEscapes(value)
	var out map[string]any
	if err := json.Unmarshal([]byte(decoded), &out); err != nil {
		return nil, fmt.Errorf("decode cell value as JSON: %w", err)
	}
	return out, nil
}
