package ruleengine

import "testing"

func TestValidationContext_Immutable(t *testing.T) {
	request := map[string]any{
		"persona": "traveler",
		"nested":  map[string]any{"locale": "en-GB"},
		"tags":    []any{"a", "b"},
	}
	prev := []ValidationError{{ID: "e1"}}

	vctx := NewValidationContext(ContextOptions{
		Request:        request,
		Attempt:        2,
		PreviousErrors: prev,
	})

	// Mutating the inputs does not leak in.
	request["persona"] = "changed"
	request["nested"].(map[string]any)["locale"] = "fr-FR"
	prev[0].ID = "changed"

	got := vctx.Request()
	if got["persona"] != "traveler" {
		t.Errorf("persona = %v, want traveler", got["persona"])
	}
	if got["nested"].(map[string]any)["locale"] != "en-GB" {
		t.Error("nested map shares storage with input")
	}
	if vctx.PreviousErrors()[0].ID != "e1" {
		t.Error("previous errors share storage with input")
	}

	// Mutating accessor results does not leak in either.
	got["persona"] = "mutated"
	got["tags"].([]any)[0] = "z"
	again := vctx.Request()
	if again["persona"] != "traveler" || again["tags"].([]any)[0] != "a" {
		t.Error("accessor returned internal state")
	}

	if vctx.Attempt() != 2 {
		t.Errorf("Attempt() = %d, want 2", vctx.Attempt())
	}
}

func TestValidationContext_Nil(t *testing.T) {
	var vctx *ValidationContext

	if vctx.Request() == nil || vctx.UserSignals() == nil {
		t.Error("nil context accessors must return empty maps")
	}
	if vctx.Attempt() != 0 || vctx.TemplateID() != "" || vctx.PreviousErrors() != nil {
		t.Error("nil context accessors must return zero values")
	}
}
