package advisor

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateChatMessage(t *testing.T) {
	result := ValidateInput("  2歳の娘の朝ごはんについて相談です  ", ChatMessageRules)
	assert.True(t, result.IsValid)
	assert.Equal(t, "2歳の娘の朝ごはんについて相談です", result.SanitizedValue)

	result = ValidateInput("   ", ChatMessageRules)
	assert.False(t, result.IsValid)
	assert.Equal(t, []string{"入力が必要です"}, result.Errors)

	result = ValidateInput(strings.Repeat("あ", 1001), ChatMessageRules)
	assert.False(t, result.IsValid)
	assert.Contains(t, result.Errors[0], "1000文字以内")

	result = ValidateInput("<script>alert(1)</script>", ChatMessageRules)
	assert.False(t, result.IsValid)
	assert.Contains(t, result.Errors, "使用できない文字が含まれています")
}

func TestValidateFoodName(t *testing.T) {
	assert.True(t, ValidateInput("にんじんのグラッセ（薄味）", FoodNameRules).IsValid)
	assert.True(t, ValidateInput("Yogurt", FoodNameRules).IsValid)
	assert.False(t, ValidateInput("food; DROP TABLE", FoodNameRules).IsValid)
	assert.False(t, ValidateInput("", FoodNameRules).IsValid)
}

func TestValidateOptionalFields(t *testing.T) {
	// Notes and child name are optional; empty passes.
	assert.True(t, ValidateInput("", NotesRules).IsValid)
	assert.True(t, ValidateInput("", ChildNameRules).IsValid)
	assert.True(t, ValidateInput("よく食べました。おかわりも！", NotesRules).IsValid)
	assert.True(t, ValidateInput("はなこ", ChildNameRules).IsValid)
	assert.False(t, ValidateInput("はなこ123", ChildNameRules).IsValid)
}

func TestSanitizeInput(t *testing.T) {
	assert.Equal(t, "hello", SanitizeInput(`<script>alert("x")</script>hello`))
	assert.Equal(t, "text", SanitizeInput("<b>text</b>"))
	assert.Equal(t, "link", SanitizeInput("javascript:link"))
	assert.Equal(t, `"1"`, SanitizeInput(`onclick="1"`))
	assert.Equal(t, "そのまま残る日本語", SanitizeInput("そのまま残る日本語"))
}

func TestSafeText(t *testing.T) {
	assert.Equal(t, "&lt;b&gt;太字&lt;/b&gt;", SafeText("<b>太字</b>"))
}
