package recipe

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoRecipeJSON is returned when a model reply holds no JSON object.
var ErrNoRecipeJSON = errors.New("no recipe JSON in response")

const responseFormat = "Return a single, clean JSON object with the following keys and data types: " +
	"'title' (string), 'servings' (number), 'cuisine' (string), 'dietary_preference' (string), " +
	"'ingredients' (array of strings, each one line such as \"1 3/4 cup flour\"), " +
	"'instructions' (array of strings), 'nutrition' (object with numeric 'calories', 'protein', 'carbs', 'fat' per serving) " +
	"and 'sources' (array of URLs or book titles the recipe draws on, may be empty). " +
	"The JSON response should be clean and not contain any markdown formatting."

// GenerationPrompt builds the request for a new recipe.
func GenerationPrompt(query, dietaryPreference, cuisine string) string {
	prompt := fmt.Sprintf("I need a recipe for: %s. %s", strings.TrimSpace(query), responseFormat)
	if dietaryPreference != "" {
		prompt += fmt.Sprintf(" The recipe should be %s.", dietaryPreference)
	}
	if cuisine != "" {
		prompt += fmt.Sprintf(" The recipe should be %s cuisine.", cuisine)
	}
	return prompt
}

// EditPrompt builds the request that applies e to r.
func EditPrompt(r *Recipe, e Edit) (string, error) {
	current, err := json.Marshal(struct {
		Title        string    `json:"title"`
		Servings     int       `json:"servings"`
		Ingredients  []string  `json:"ingredients"`
		Instructions []string  `json:"instructions"`
		Nutrition    Nutrition `json:"nutrition"`
		Sources      []string  `json:"sources"`
	}{r.Title, r.Servings, r.Ingredients, r.Instructions, r.Nutrition, r.Sources})
	if err != nil {
		return "", fmt.Errorf("failed to marshal current recipe: %w", err)
	}

	return fmt.Sprintf("Here is a recipe as JSON:\n%s\n\n%s Keep everything else unchanged. %s",
		current, e.Instruction(), responseFormat), nil
}

// ParseGenerated extracts and decodes the recipe object from a model reply,
// which might be wrapped in markdown.
func ParseGenerated(text string) (*Recipe, error) {
	startIndex := strings.Index(text, "{")
	endIndex := strings.LastIndex(text, "}")
	if startIndex == -1 || endIndex == -1 || startIndex > endIndex {
		return nil, fmt.Errorf("%w: %s", ErrNoRecipeJSON, text)
	}
	cleanJSON := text[startIndex : endIndex+1]

	var r Recipe
	if err := json.Unmarshal([]byte(cleanJSON), &r); err != nil {
		return nil, fmt.Errorf("failed to unmarshal recipe JSON: %w. Raw response: %s", err, cleanJSON)
	}
	if strings.TrimSpace(r.Title) == "" || len(r.Ingredients) == 0 {
		return nil, fmt.Errorf("%w: recipe is missing a title or ingredients", ErrNoRecipeJSON)
	}
	return &r, nil
}

// Revise returns the result of an edit as a new recipe derived from r. Fields
// the edit left empty keep r's values. The revision has no ID and no request
// hash, so saving it leaves r, and every chat that reuses r, unchanged.
func (r *Recipe) Revise(edited *Recipe) *Recipe {
	rev := &Recipe{
		Title:             edited.Title,
		Servings:          r.Servings,
		Ingredients:       edited.Ingredients,
		Instructions:      edited.Instructions,
		Nutrition:         edited.Nutrition,
		Sources:           r.Sources,
		Cuisine:           r.Cuisine,
		DietaryPreference: r.DietaryPreference,
		ImagePath:         r.ImagePath,
	}
	if rev.Title == "" {
		rev.Title = r.Title
	}
	if edited.Servings > 0 {
		rev.Servings = edited.Servings
	}
	if len(edited.Sources) > 0 {
		rev.Sources = edited.Sources
	}
	return rev
}
