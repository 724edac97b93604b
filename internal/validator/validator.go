// Package validator compares a source chunk against its candidate
// translation structurally. Checks are advisory: a failed result is data
// for the caller to act on (retry, fall back to the original), never an
// error in the Go sense.
package validator

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"latex-chunker/internal/types"
)

// Length ratio bounds for the translated/source warning check. Translation
// between languages of different density legitimately shrinks or grows
// text, so violations warn instead of failing.
const (
	minLengthRatio = 0.2
	maxLengthRatio = 1.5
)

var (
	citeKeyRE = regexp.MustCompile(`\\cite[a-zA-Z]*\*?\{([^}]*)\}`)
	refKeyRE  = regexp.MustCompile(`\\(?:ref|eqref|autoref|pageref)\*?\{([^}]*)\}`)

	placeholderRE   = regexp.MustCompile(`\[\[[A-Z]+_\d+\]\]`)
	escapedDollarRE = regexp.MustCompile(`\\\$`)
)

// Validate checks translated against source and reports errors (structural
// damage) and warnings (suspicious but tolerable differences). Passed is
// true when no errors were found; warnings never fail a result.
func Validate(source, translated string) *types.ValidationResult {
	result := &types.ValidationResult{Passed: true}

	checkDelimiters(translated, result)
	checkCitations(source, translated, result)
	checkReferences(source, translated, result)
	checkMathDelimiters(source, translated, result)
	checkLengthRatio(source, translated, result)

	result.Passed = len(result.Errors) == 0
	return result
}

// checkDelimiters verifies brace and bracket balance in the translated text
// with a single stack scan. Escaped delimiters do not count; a closer with
// no matching opener is reported at its own position.
func checkDelimiters(text string, result *types.ValidationResult) {
	var stack []byte
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch c {
		case '\\':
			i++ // skip the escaped character
		case '{', '[':
			stack = append(stack, c)
		case '}', ']':
			open := byte('{')
			if c == ']' {
				open = '['
			}
			if len(stack) == 0 || stack[len(stack)-1] != open {
				result.Errors = append(result.Errors,
					fmt.Sprintf("unmatched %q at offset %d", string(c), i))
				return
			}
			stack = stack[:len(stack)-1]
		}
	}
	if len(stack) > 0 {
		result.Errors = append(result.Errors,
			fmt.Sprintf("%d unclosed delimiter(s), first is %q", len(stack), string(stack[0])))
	}
}

// keySet collects the comma-separated keys of every match of re in text.
func keySet(re *regexp.Regexp, text string) map[string]bool {
	keys := make(map[string]bool)
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		for _, key := range strings.Split(m[1], ",") {
			key = strings.TrimSpace(key)
			if key != "" {
				keys[key] = true
			}
		}
	}
	return keys
}

// compareKeySets reports keys dropped from and keys invented in the
// translation. Both directions are errors: a dropped citation loses
// attribution, an invented one corrupts the bibliography.
func compareKeySets(srcKeys, dstKeys map[string]bool, label string, result *types.ValidationResult) {
	for key := range srcKeys {
		if !dstKeys[key] {
			result.Errors = append(result.Errors,
				fmt.Sprintf("missing %s key %q", label, key))
		}
	}
	for key := range dstKeys {
		if !srcKeys[key] {
			result.Errors = append(result.Errors,
				fmt.Sprintf("unexpected %s key %q not present in source", label, key))
		}
	}
}

func checkCitations(source, translated string, result *types.ValidationResult) {
	compareKeySets(keySet(citeKeyRE, source), keySet(citeKeyRE, translated), "citation", result)
}

func checkReferences(source, translated string, result *types.ValidationResult) {
	compareKeySets(keySet(refKeyRE, source), keySet(refKeyRE, translated), "reference", result)
}

// checkMathDelimiters compares math delimiters between source and
// translation. Placeholder tokens and escaped dollars are stripped first so
// a [[MATH_3]] token or a literal \$ never skews the count. All checks are
// relative to the source: a stray delimiter the source already carried is
// not the translation's fault, so an identical translation always passes.
func checkMathDelimiters(source, translated string, result *types.ValidationResult) {
	srcDollars := countDollars(source)
	dstDollars := countDollars(translated)

	if srcDollars%2 != dstDollars%2 {
		result.Errors = append(result.Errors,
			fmt.Sprintf("$ delimiter parity changed (%d in source, %d in translation)",
				srcDollars, dstDollars))
	} else if srcDollars != dstDollars {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("$ delimiter count changed from %d to %d", srcDollars, dstDollars))
	}

	for _, pair := range [][2]string{{`\(`, `\)`}, {`\[`, `\]`}} {
		srcOpen := strings.Count(source, pair[0])
		srcClose := strings.Count(source, pair[1])
		dstOpen := strings.Count(translated, pair[0])
		dstClose := strings.Count(translated, pair[1])

		if srcOpen != dstOpen || srcClose != dstClose {
			result.Errors = append(result.Errors,
				fmt.Sprintf("%s...%s delimiter count changed from %d/%d to %d/%d",
					pair[0], pair[1], srcOpen, srcClose, dstOpen, dstClose))
		}
	}
}

func countDollars(text string) int {
	cleaned := placeholderRE.ReplaceAllString(text, "")
	cleaned = escapedDollarRE.ReplaceAllString(cleaned, "")
	return strings.Count(cleaned, "$")
}

// checkLengthRatio warns when the translation's length falls outside the
// expected band relative to the source. This heuristic only ever warns: an
// empty translation is simply ratio 0, below the band.
func checkLengthRatio(source, translated string, result *types.ValidationResult) {
	srcLen := utf8.RuneCountInString(strings.TrimSpace(source))
	dstLen := utf8.RuneCountInString(strings.TrimSpace(translated))

	if srcLen == 0 {
		return
	}

	ratio := float64(dstLen) / float64(srcLen)
	if ratio < minLengthRatio || ratio > maxLengthRatio {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("length ratio %.2f outside [%.1f, %.1f]", ratio, minLengthRatio, maxLengthRatio))
	}
}

// ValidatePlaceholders verifies that every [[KIND_n]] token in the source
// survives in the translation, unaltered and exactly once per occurrence
// count. A translator that drops or mangles a placeholder destroys the
// protected span it stood for.
func ValidatePlaceholders(source, translated string, result *types.ValidationResult) {
	for _, token := range placeholderRE.FindAllString(source, -1) {
		srcCount := strings.Count(source, token)
		dstCount := strings.Count(translated, token)
		if dstCount < srcCount {
			result.Errors = append(result.Errors,
				fmt.Sprintf("placeholder %s lost in translation (%d -> %d)", token, srcCount, dstCount))
			result.Passed = false
		}
	}
}
