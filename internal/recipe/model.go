package recipe

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"recipechat/internal/ingredient"
)

// Nutrition holds per-serving macro estimates.
type Nutrition struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
}

// Recipe represents the structure of a generated recipe. Ingredient lines are
// stored as generated; use Rendered for display.
type Recipe struct {
	ID                uuid.UUID `json:"id"`
	RequestHash       string    `json:"request_hash,omitempty"`
	Title             string    `json:"title"`
	Servings          int       `json:"servings"`
	Ingredients       []string  `json:"ingredients"`
	Instructions      []string  `json:"instructions"`
	Nutrition         Nutrition `json:"nutrition"`
	Sources           []string  `json:"sources"`
	Cuisine           string    `json:"cuisine"`
	DietaryPreference string    `json:"dietary_preference"`
	ImagePath         string    `json:"image_path,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// UnmarshalJSON implements the json.Unmarshaler interface for Recipe.
// Servings may arrive as a number or as text such as "4 servings".
func (r *Recipe) UnmarshalJSON(data []byte) error {
	type Alias Recipe // Create an alias to avoid infinite recursion
	aux := &struct {
		Servings json.RawMessage `json:"servings"`
		*Alias
	}{
		Alias: (*Alias)(r),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	r.Servings = parseServings(aux.Servings)
	r.Cuisine = strings.ToLower(r.Cuisine)
	r.DietaryPreference = strings.ToLower(r.DietaryPreference)

	return nil
}

func parseServings(raw json.RawMessage) int {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0
	}

	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return int(math.Round(n))
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0
	}
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	v, _ := strconv.Atoi(s[:end])
	return v
}

// Rendered returns a copy of the recipe with display-formatted ingredient lines.
func (r *Recipe) Rendered() *Recipe {
	out := *r
	out.Ingredients = ingredient.FormatLines(r.Ingredients)
	out.Instructions = append([]string(nil), r.Instructions...)
	out.Sources = append([]string(nil), r.Sources...)
	return &out
}

// EmbeddingText is the text used to place the recipe in vector space.
func (r *Recipe) EmbeddingText() string {
	var b strings.Builder
	b.WriteString(r.Title)
	if r.Cuisine != "" {
		b.WriteString("\nCuisine: " + r.Cuisine)
	}
	if r.DietaryPreference != "" {
		b.WriteString("\nDiet: " + r.DietaryPreference)
	}
	b.WriteString("\nIngredients:\n")
	b.WriteString(strings.Join(r.Ingredients, "\n"))
	return b.String()
}

// GenerateRequestHash calculates the SHA256 hash of a normalised dish request.
// Requests differing only in case or surrounding whitespace share a hash.
func GenerateRequestHash(query, dietaryPreference, cuisine string) string {
	parts := []string{query, dietaryPreference, cuisine}
	for i, p := range parts {
		parts[i] = strings.Join(strings.Fields(strings.ToLower(p)), " ")
	}
	hash := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(hash[:])
}

// ApplyRequestFilters records the requested diet and cuisine on the recipe,
// overriding whatever the model reported.
func (r *Recipe) ApplyRequestFilters(dietaryPreference, cuisine string) {
	if dietaryPreference != "" {
		r.DietaryPreference = strings.ToLower(dietaryPreference)
	}
	if cuisine != "" {
		r.Cuisine = strings.ToLower(cuisine)
	}
}
