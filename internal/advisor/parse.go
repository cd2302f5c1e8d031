package advisor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

// Pre-compiled patterns; compiling per call is measurably slower and these
// run on every advisory response.
var (
	codeFenceRegex         = regexp.MustCompile("(?s)```(?:json|javascript|js)?\\s*\n?([\\s\\S]*?)\n?```")
	trailingCommaRegex     = regexp.MustCompile(`,(\s*[}\]])`)
	unquotedKeyRegex       = regexp.MustCompile(`([{,]\s*)([a-zA-Z_$][a-zA-Z0-9_$]*)\s*:`)
	singleLineCommentRegex = regexp.MustCompile(`(?m)//.*$`)
	multiLineCommentRegex  = regexp.MustCompile(`(?s)/\*.*?\*/`)
)

// maxResponseSize bounds the text we are willing to scan; anything larger
// than 10MB is not a plausible advisory response.
const maxResponseSize = 10 * 1024 * 1024

// ExtractJSON pulls the first well-formed JSON object or array out of an
// advisory response.
//
// Strategy sequence, stopping at the first success:
//  1. the whole trimmed text is valid JSON
//  2. strip markdown code fences and retry
//  3. fix common LLM quirks (trailing commas, unquoted keys, comments)
//  4. decode the first balanced object/array found anywhere in the text
func ExtractJSON(text string) (json.RawMessage, error) {
	if len(text) > maxResponseSize {
		return nil, fmt.Errorf("response exceeds size limit (%d > %d bytes)", len(text), maxResponseSize)
	}
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, fmt.Errorf("empty response")
	}

	if raw, ok := firstValue(trimmed); ok {
		return raw, nil
	}

	unfenced := stripCodeFences(trimmed)
	if unfenced != trimmed {
		if raw, ok := firstValue(unfenced); ok {
			return raw, nil
		}
	}

	cleaned := cleanupJSON(unfenced)
	if raw, ok := firstValue(cleaned); ok {
		return raw, nil
	}

	if raw, ok := scanForValue(cleaned); ok {
		return raw, nil
	}
	// last chance: scan the raw text too, in case cleanup mangled something
	if raw, ok := scanForValue(trimmed); ok {
		return raw, nil
	}

	slog.Debug("all JSON extraction strategies failed", "preview", truncate(text, 120))
	return nil, fmt.Errorf("no JSON object or array found in response")
}

// firstValue decodes the first JSON value from text and accepts it only if
// it is an object or array. Trailing content (concatenated objects, prose)
// is ignored.
func firstValue(text string) (json.RawMessage, bool) {
	t := strings.TrimSpace(text)
	if t == "" || (t[0] != '{' && t[0] != '[') {
		return nil, false
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(t)))
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return nil, false
	}
	return raw, true
}

// scanForValue finds the earliest offset from which a JSON object or array
// decodes cleanly.
func scanForValue(text string) (json.RawMessage, bool) {
	for i := 0; i < len(text); i++ {
		if text[i] != '{' && text[i] != '[' {
			continue
		}
		if raw, ok := firstValue(text[i:]); ok {
			return raw, true
		}
	}
	return nil, false
}

func stripCodeFences(text string) string {
	cleaned := codeFenceRegex.ReplaceAllString(text, "$1")
	cleaned = strings.TrimSpace(cleaned)
	if strings.HasPrefix(cleaned, "`") && strings.HasSuffix(cleaned, "`") && len(cleaned) > 1 {
		cleaned = strings.TrimSuffix(strings.TrimPrefix(cleaned, "`"), "`")
	}
	return strings.TrimSpace(cleaned)
}

// cleanupJSON fixes formatting quirks advisory models produce: trailing
// commas before closing braces, unquoted object keys, and // or /* */
// comments. Single quotes are left alone; converting them would corrupt
// valid JSON containing apostrophes.
func cleanupJSON(text string) string {
	cleaned := strings.TrimSpace(text)
	cleaned = trailingCommaRegex.ReplaceAllString(cleaned, "$1")
	cleaned = unquotedKeyRegex.ReplaceAllString(cleaned, `$1"$2":`)
	cleaned = singleLineCommentRegex.ReplaceAllString(cleaned, "")
	cleaned = multiLineCommentRegex.ReplaceAllString(cleaned, "")
	return strings.TrimSpace(cleaned)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
