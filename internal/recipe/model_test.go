package recipe

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecipeUnmarshalJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		servings int
	}{
		{name: "numeric servings", input: `{"title":"Soup","servings":4}`, servings: 4},
		{name: "fractional servings round", input: `{"title":"Soup","servings":2.6}`, servings: 3},
		{name: "text servings", input: `{"title":"Soup","servings":"6 servings"}`, servings: 6},
		{name: "unparseable servings", input: `{"title":"Soup","servings":"a few"}`, servings: 0},
		{name: "missing servings", input: `{"title":"Soup"}`, servings: 0},
		{name: "null servings", input: `{"title":"Soup","servings":null}`, servings: 0},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			var r Recipe
			require.NoError(t, json.Unmarshal([]byte(tc.input), &r))
			assert.Equal(t, "Soup", r.Title)
			assert.Equal(t, tc.servings, r.Servings)
		})
	}
}

func TestRecipeUnmarshalJSONLowercasesFilters(t *testing.T) {
	t.Parallel()

	var r Recipe
	require.NoError(t, json.Unmarshal([]byte(`{"title":"Tacos","cuisine":"Mexican","dietary_preference":"Vegan"}`), &r))
	assert.Equal(t, "mexican", r.Cuisine)
	assert.Equal(t, "vegan", r.DietaryPreference)
}

func TestRecipeRendered(t *testing.T) {
	t.Parallel()

	r := &Recipe{
		Title:        "Pancakes",
		Ingredients:  []string{"• 1.75 cups flour", "4 Tbsp sugar", "salt to taste"},
		Instructions: []string{"Mix"},
	}

	rendered := r.Rendered()
	assert.Equal(t, []string{"1 3/4 cup flour", "1/4 cup sugar", "salt to taste"}, rendered.Ingredients)
	assert.Equal(t, []string{"• 1.75 cups flour", "4 Tbsp sugar", "salt to taste"}, r.Ingredients, "stored text is untouched")

	again := rendered.Rendered()
	assert.Equal(t, rendered.Ingredients, again.Ingredients)
}

func TestGenerateRequestHash(t *testing.T) {
	t.Parallel()

	a := GenerateRequestHash("Chicken  Curry", "Vegetarian", "Indian")
	b := GenerateRequestHash("  chicken curry ", "vegetarian", "indian")
	c := GenerateRequestHash("chicken curry", "", "indian")

	assert.Len(t, a, 64)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, GenerateRequestHash("ab", "c", ""), GenerateRequestHash("a", "bc", ""))
}

func TestEmbeddingText(t *testing.T) {
	t.Parallel()

	r := &Recipe{Title: "Dal", Cuisine: "indian", Ingredients: []string{"1 cup lentils", "2 cloves garlic"}}
	text := r.EmbeddingText()
	assert.Contains(t, text, "Dal")
	assert.Contains(t, text, "Cuisine: indian")
	assert.Contains(t, text, "1 cup lentils\n2 cloves garlic")
	assert.NotContains(t, text, "Diet:")
}

func TestApplyRequestFilters(t *testing.T) {
	t.Parallel()

	r := &Recipe{Cuisine: "thai", DietaryPreference: "vegan"}
	r.ApplyRequestFilters("", "Italian")
	assert.Equal(t, "italian", r.Cuisine)
	assert.Equal(t, "vegan", r.DietaryPreference)
}
