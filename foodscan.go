package advisor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
)

// maxImageBytes is the upload limit enforced by the analysis function.
const maxImageBytes = 10 * 1024 * 1024

// AgeAppropriateness reports whether a dish suits a toddler and why.
type AgeAppropriateness struct {
	Suitable        bool     `json:"suitable"`
	Concerns        []string `json:"concerns"`
	Recommendations []string `json:"recommendations"`
}

// FoodAnalysis is the structured result of analyzing a meal photo.
type FoodAnalysis struct {
	DishName           string             `json:"dish_name"`
	Ingredients        []string           `json:"ingredients"`
	Confidence         float64            `json:"confidence"`
	PotentialAllergens []string           `json:"potential_allergens"`
	AgeAppropriateness AgeAppropriateness `json:"age_appropriateness"`
	NutritionEstimate  *NutritionSummary  `json:"nutrition_estimate,omitempty"`
}

// AnalyzeFoodImage uploads a meal photo and returns the structured analysis.
// filename carries the original name so the server can log it; the image
// bytes must be JPEG, PNG or WebP and at most 10MB.
func (c *Client) AnalyzeFoodImage(ctx context.Context, filename string, image []byte) (*FoodAnalysis, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("image data is empty")
	}
	if len(image) > maxImageBytes {
		return nil, fmt.Errorf("image exceeds %d byte limit", maxImageBytes)
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("image", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to build upload: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return nil, fmt.Errorf("failed to build upload: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to build upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.FunctionsURL+"/api/image/analyze", &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	c.authorize(ctx, req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("image analysis request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image analysis failed with status %d: %s", resp.StatusCode, string(data))
	}

	var envelope apiResponse
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if !envelope.Success {
		return nil, fmt.Errorf("image analysis failed: %s", envelope.Error)
	}

	var analysis FoodAnalysis
	if err := json.Unmarshal(envelope.Data, &analysis); err != nil {
		return nil, fmt.Errorf("failed to decode analysis: %w", err)
	}
	return &analysis, nil
}

// ConsultationMessage renders an analysis as the chat message sent to the
// advisors when a parent asks about a photographed meal.
func (a *FoodAnalysis) ConsultationMessage() string {
	var b strings.Builder
	fmt.Fprintf(&b, "写真の食事について相談です。\n料理名: %s\n", a.DishName)
	if len(a.Ingredients) > 0 {
		fmt.Fprintf(&b, "食材: %s\n", strings.Join(a.Ingredients, "、"))
	}
	if len(a.PotentialAllergens) > 0 {
		fmt.Fprintf(&b, "アレルギーの可能性: %s\n", strings.Join(a.PotentialAllergens, "、"))
	}
	if len(a.AgeAppropriateness.Concerns) > 0 {
		fmt.Fprintf(&b, "気になる点: %s\n", strings.Join(a.AgeAppropriateness.Concerns, "、"))
	}
	b.WriteString("この食事についてアドバイスをお願いします。")
	return b.String()
}

// FoodsFromAnalysis converts an analysis into food items for the meal log.
func FoodsFromAnalysis(a *FoodAnalysis) []FoodItem {
	if len(a.Ingredients) == 0 {
		return []FoodItem{{Name: a.DishName}}
	}
	foods := make([]FoodItem, 0, len(a.Ingredients))
	for _, ing := range a.Ingredients {
		foods = append(foods, FoodItem{Name: ing})
	}
	return foods
}
