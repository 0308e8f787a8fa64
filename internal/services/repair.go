package services

import (
	"errors"
	"regexp"
	"strings"
)

// ErrNoJSONFound is returned when provider output contains nothing JSON shaped.
var ErrNoJSONFound = errors.New("no json found in provider output")

var jsonBlockPattern = regexp.MustCompile(`\{[\s\S]*\}`)

// ExtractJSON returns the best-effort JSON substring of raw model output.
// It only looks at bracket shape; the result may still fail to parse.
func ExtractJSON(raw string) (string, error) {
	content := strings.TrimSpace(raw)
	if content == "" {
		return "", ErrNoJSONFound
	}

	if strings.HasPrefix(content, "{") || strings.HasPrefix(content, "[") {
		return content, nil
	}

	if startIdx := strings.Index(content, "{"); startIdx != -1 {
		if endIdx := strings.LastIndex(content, "}"); endIdx != -1 && endIdx > startIdx {
			return content[startIdx : endIdx+1], nil
		}
	}

	if match := jsonBlockPattern.FindString(content); match != "" {
		return match, nil
	}
	return "", ErrNoJSONFound
}
