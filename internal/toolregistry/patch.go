package toolregistry

import (
	"fmt"
	"strings"
)

// SingleOccurrencePatch replaces the single occurrence of old in content
// with new. It fails if old occurs zero times (ambiguous: nothing to
// target) or more than once (ambiguous: no unique target), guaranteeing
// every successful patch has an unambiguous target.
func SingleOccurrencePatch(content, old, new string) (string, error) {
	n := strings.Count(content, old)
	switch {
	case n == 0:
		return "", fmt.Errorf("old_string not found")
	case n > 1:
		return "", fmt.Errorf("%d matches for old_string, expected 1", n)
	default:
		return strings.Replace(content, old, new, 1), nil
	}
}
