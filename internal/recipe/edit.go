package recipe

import (
	"errors"
	"fmt"
	"strings"
)

// EditKind names a follow-up change to an existing recipe.
type EditKind string

const (
	AdjustServings EditKind = "adjust_servings"
	AdjustQuantity EditKind = "adjust_quantity"
	Substitute     EditKind = "substitute"
	Remove         EditKind = "remove"
)

// ErrInvalidEdit is returned when an edit is missing the fields its kind needs.
var ErrInvalidEdit = errors.New("invalid edit")

// Edit is a follow-up request against a saved recipe.
type Edit struct {
	Kind           EditKind `json:"kind"`
	Servings       int      `json:"servings,omitempty"`
	Ingredient     string   `json:"ingredient,omitempty"`
	Quantity       string   `json:"quantity,omitempty"`
	Replacement    string   `json:"replacement,omitempty"`
	ConversationID string   `json:"conversation_id,omitempty"`
}

// Validate checks that the fields required by the edit kind are present.
func (e Edit) Validate() error {
	switch e.Kind {
	case AdjustServings:
		if e.Servings <= 0 {
			return fmt.Errorf("%w: servings must be positive", ErrInvalidEdit)
		}
	case AdjustQuantity:
		if strings.TrimSpace(e.Ingredient) == "" {
			return fmt.Errorf("%w: ingredient is required", ErrInvalidEdit)
		}
		if strings.TrimSpace(e.Quantity) == "" {
			return fmt.Errorf("%w: quantity is required", ErrInvalidEdit)
		}
	case Substitute:
		if strings.TrimSpace(e.Ingredient) == "" {
			return fmt.Errorf("%w: ingredient is required", ErrInvalidEdit)
		}
		if strings.TrimSpace(e.Replacement) == "" {
			return fmt.Errorf("%w: replacement is required", ErrInvalidEdit)
		}
	case Remove:
		if strings.TrimSpace(e.Ingredient) == "" {
			return fmt.Errorf("%w: ingredient is required", ErrInvalidEdit)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidEdit, e.Kind)
	}
	return nil
}

// Instruction phrases the edit as a request to the recipe model.
func (e Edit) Instruction() string {
	switch e.Kind {
	case AdjustServings:
		return fmt.Sprintf("Scale the recipe to serve %d, adjusting every ingredient quantity and the nutrition per serving.", e.Servings)
	case AdjustQuantity:
		return fmt.Sprintf("Change the amount of %s to %s and rebalance the other ingredients only if needed.", e.Ingredient, e.Quantity)
	case Substitute:
		return fmt.Sprintf("Replace %s with %s, updating instructions and nutrition to match.", e.Ingredient, e.Replacement)
	case Remove:
		return fmt.Sprintf("Remove %s from the recipe, updating instructions and nutrition to match.", e.Ingredient)
	}
	return ""
}

// Summary is a short chat line describing the edit.
func (e Edit) Summary() string {
	switch e.Kind {
	case AdjustServings:
		return fmt.Sprintf("Make it serve %d", e.Servings)
	case AdjustQuantity:
		return fmt.Sprintf("Use %s of %s", e.Quantity, e.Ingredient)
	case Substitute:
		return fmt.Sprintf("Swap %s for %s", e.Ingredient, e.Replacement)
	case Remove:
		return fmt.Sprintf("Leave out %s", e.Ingredient)
	}
	return string(e.Kind)
}
