package advisor

import (
	"fmt"
	"html"
	"regexp"
	"strings"
)

// Rules constrain one free-text input field.
type Rules struct {
	MaxLength      int
	MinLength      int
	AllowedChars   *regexp.Regexp
	Required       bool
	TrimWhitespace bool
}

// ValidationResult reports the outcome of validating one input.
type ValidationResult struct {
	IsValid        bool
	Errors         []string
	SanitizedValue string
}

// Rule sets for the application's input fields. Character classes cover kana,
// kanji, latin and the punctuation each field legitimately needs.
var (
	ChatMessageRules = Rules{
		MaxLength:      1000,
		MinLength:      1,
		AllowedChars:   regexp.MustCompile(`^[^\x00-\x08\x0B\x0C\x0E-\x1F\x7F<>]+$`),
		Required:       true,
		TrimWhitespace: true,
	}
	FoodNameRules = Rules{
		MaxLength:      200,
		MinLength:      1,
		AllowedChars:   regexp.MustCompile(`^[ぁ-んァ-ヶー一-龯a-zA-Z0-9\s\x{3099}\x{309A}()（）・※]+$`),
		Required:       true,
		TrimWhitespace: true,
	}
	NotesRules = Rules{
		MaxLength:      500,
		AllowedChars:   regexp.MustCompile(`^[ぁ-んァ-ヶー一-龯a-zA-Z0-9\s\x{3099}\x{309A}()（）・※\n\r.,!?！？。、]+$`),
		TrimWhitespace: true,
	}
	ChildNameRules = Rules{
		MaxLength:      50,
		AllowedChars:   regexp.MustCompile(`^[ぁ-んァ-ヶー一-龯a-zA-Z\s\x{3099}\x{309A}]*$`),
		TrimWhitespace: true,
	}
	AllergyNameRules = Rules{
		MaxLength:      100,
		MinLength:      1,
		AllowedChars:   regexp.MustCompile(`^[ぁ-んァ-ヶー一-龯a-zA-Z0-9\s\x{3099}\x{309A}()（）・※]+$`),
		Required:       true,
		TrimWhitespace: true,
	}
)

// ValidateInput checks value against rules and returns the trimmed value
// alongside any violations. Validation happens before a message reaches the
// streaming core; invalid input never opens a stream.
func ValidateInput(value string, rules Rules) ValidationResult {
	errs := []string{}
	sanitized := value

	if rules.TrimWhitespace {
		sanitized = strings.TrimSpace(sanitized)
	}

	if rules.Required && sanitized == "" {
		return ValidationResult{
			IsValid:        false,
			Errors:         []string{"入力が必要です"},
			SanitizedValue: sanitized,
		}
	}

	length := len([]rune(sanitized))
	if rules.MinLength > 0 && length < rules.MinLength {
		errs = append(errs, fmt.Sprintf("%d文字以上で入力してください", rules.MinLength))
	}
	if rules.MaxLength > 0 && length > rules.MaxLength {
		errs = append(errs, fmt.Sprintf("%d文字以内で入力してください", rules.MaxLength))
	}
	if rules.AllowedChars != nil && sanitized != "" && !rules.AllowedChars.MatchString(sanitized) {
		errs = append(errs, "使用できない文字が含まれています")
	}

	return ValidationResult{
		IsValid:        len(errs) == 0,
		Errors:         errs,
		SanitizedValue: sanitized,
	}
}

var (
	scriptTagPattern    = regexp.MustCompile(`(?is)<script\b.*?</script>`)
	htmlTagPattern      = regexp.MustCompile(`<[^>]*>`)
	jsURLPattern        = regexp.MustCompile(`(?i)javascript:`)
	eventHandlerPattern = regexp.MustCompile(`(?i)on\w+\s*=`)
)

// SanitizeInput strips markup and script fragments from user text before it
// is stored or sent to the engine.
func SanitizeInput(input string) string {
	out := scriptTagPattern.ReplaceAllString(input, "")
	out = htmlTagPattern.ReplaceAllString(out, "")
	out = jsURLPattern.ReplaceAllString(out, "")
	out = eventHandlerPattern.ReplaceAllString(out, "")
	return out
}

// SafeText escapes text for embedding in HTML output.
func SafeText(text string) string {
	return html.EscapeString(text)
}
