package toolexec

import (
	"fmt"
	"strings"
	"unicode"
)

// UserMessage maps a code to short text naming the tool. Internal detail is
// only included for validation errors, where it names the offending field.
func UserMessage(tool string, code Code, field, detail string) string {
	name := DisplayName(tool)
	switch code {
	case CodeValidation:
		switch {
		case field != "" && detail != "":
			return fmt.Sprintf("%s received an invalid %q: %s", name, field, detail)
		case detail != "":
			return fmt.Sprintf("%s received invalid input: %s", name, detail)
		}
		return fmt.Sprintf("%s received invalid input.", name)
	case CodeAIServiceUnavailable:
		return fmt.Sprintf("%s is temporarily unavailable. Please try again in a moment.", name)
	case CodeRateLimited:
		return fmt.Sprintf("%s is handling too many requests right now. Please wait a moment and try again.", name)
	case CodeTimeout:
		return fmt.Sprintf("%s took too long to respond. Please try again.", name)
	case CodeDatabase:
		return fmt.Sprintf("%s could not reach its data store. Please try again.", name)
	case CodeNotFound:
		return fmt.Sprintf("%s could not find what was requested.", name)
	default:
		return fmt.Sprintf("%s ran into an unexpected problem.", name)
	}
}

// DisplayName turns a tool identifier such as "semanticSearch" or
// "batch_metadata" into "Semantic search" / "Batch metadata".
func DisplayName(tool string) string {
	if tool == "" {
		return "This tool"
	}
	var words []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			words = append(words, strings.ToLower(string(cur)))
			cur = cur[:0]
		}
	}
	prevLower := false
	for _, r := range tool {
		switch {
		case r == '_' || r == '-' || r == ' ' || r == '.':
			flush()
			prevLower = false
			continue
		case unicode.IsUpper(r) && prevLower:
			flush()
		}
		cur = append(cur, r)
		prevLower = unicode.IsLower(r) || unicode.IsDigit(r)
	}
	flush()
	if len(words) == 0 {
		return "This tool"
	}
	s := strings.Join(words, " ")
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
