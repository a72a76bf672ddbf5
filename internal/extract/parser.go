package extract

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

// Language models wrap JSON in code fences, leave trailing commas, and
// editorialize around the payload even when told not to. parseJSON
// works through progressively more forgiving strategies instead of
// failing on the first quirk.
//
// Regexes are pre-compiled; compiling per parse is an order of
// magnitude slower.
var (
	codeFenceRegex     = regexp.MustCompile("(?s)`{3}(?:json)?\\s*\\n?([\\s\\S]*?)\\n?`{3}")
	trailingCommaRegex = regexp.MustCompile(`,(\s*[}\]])`)
	lineCommentRegex   = regexp.MustCompile(`(?m)//.*$`)
	blockCommentRegex  = regexp.MustCompile(`(?s)/\*.*?\*/`)
	objectRegex        = regexp.MustCompile(`(?s)\{[\s\S]*\}`)
	arrayRegex         = regexp.MustCompile(`(?s)\[[\s\S]*\]`)
)

// parseJSON parses text into T, trying in order:
//
//  1. direct parse
//  2. strip markdown code fences, retry
//  3. remove trailing commas and comments, retry
//  4. extract the JSON object/array from surrounding prose, retry
func parseJSON[T any](text, context string) (T, error) {
	var zero T

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return zero, fmt.Errorf("%s: empty response", context)
	}

	result, err := tryParse[T](trimmed)
	if err == nil {
		return result, nil
	}
	slog.Debug("direct JSON parse failed, trying cleanup strategies",
		"error", err.Error(),
		"context", context)

	unfenced := removeCodeFences(trimmed)
	if unfenced != trimmed {
		if result, err := tryParse[T](unfenced); err == nil {
			return result, nil
		}
	}

	cleaned := cleanupJSON(unfenced)
	if cleaned != unfenced {
		if result, err := tryParse[T](cleaned); err == nil {
			return result, nil
		}
	}

	if extracted := extractPayload(cleaned); extracted != "" {
		if result, err := tryParse[T](extracted); err == nil {
			return result, nil
		}
	}

	return zero, fmt.Errorf("%s: no parse strategy succeeded", context)
}

func tryParse[T any](text string) (T, error) {
	var result T
	err := json.Unmarshal([]byte(text), &result)
	return result, err
}

// removeCodeFences strips ```json ... ``` (and bare ```) fences,
// keeping their contents.
func removeCodeFences(text string) string {
	return strings.TrimSpace(codeFenceRegex.ReplaceAllString(text, "$1"))
}

// cleanupJSON fixes the quirks models actually produce: trailing
// commas before } or ], and // or /* */ comments. Single quotes are
// left alone since rewriting them would corrupt apostrophes in values.
func cleanupJSON(text string) string {
	cleaned := trailingCommaRegex.ReplaceAllString(text, "$1")
	cleaned = lineCommentRegex.ReplaceAllString(cleaned, "")
	cleaned = blockCommentRegex.ReplaceAllString(cleaned, "")
	return strings.TrimSpace(cleaned)
}

// extractPayload pulls the first JSON object or array out of mixed
// content. The leading-character check keeps an object nested inside
// an array from being mistaken for the payload.
func extractPayload(text string) string {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) > 0 {
		switch trimmed[0] {
		case '[':
			if match := arrayRegex.FindString(trimmed); match != "" {
				return match
			}
		case '{':
			if match := objectRegex.FindString(trimmed); match != "" {
				return match
			}
		}
	}
	if match := objectRegex.FindString(text); match != "" {
		return match
	}
	return arrayRegex.FindString(text)
}
