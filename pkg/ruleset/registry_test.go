package ruleset

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
)

type staticSource struct {
	sets []*RuleSet
	err  error
}

func (s staticSource) Load(context.Context) ([]*RuleSet, error) {
	return s.sets, s.err
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := r.Get("persona", "v1")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get() on empty registry error = %v, want ErrNotFound", err)
	}

	v1 := &RuleSet{Category: "persona", Version: "v1"}
	v2 := &RuleSet{Category: "persona", Version: "v2"}
	other := &RuleSet{Category: "address", Version: "v1"}

	if err := r.Reload(context.Background(), staticSource{sets: []*RuleSet{v2, v1, other}}); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if r.Len() != 3 {
		t.Errorf("Len() = %d, want 3", r.Len())
	}

	got, err := r.RuleSet(context.Background(), "persona", "v2")
	if err != nil || got != v2 {
		t.Errorf("RuleSet() = %v, %v", got, err)
	}

	list := r.List()
	want := []Key{{"address", "v1"}, {"persona", "v1"}, {"persona", "v2"}}
	for i, k := range want {
		if list[i].Category != k.Category || list[i].Version != k.Version {
			t.Errorf("List()[%d] = %s@%s, want %s", i, list[i].Category, list[i].Version, k)
		}
	}

	// A failed reload keeps the previous contents.
	if err := r.Reload(context.Background(), staticSource{err: errors.New("disk gone")}); err == nil {
		t.Error("Reload() with failing source: want error")
	}
	if r.Len() != 3 {
		t.Errorf("Len() after failed reload = %d, want 3", r.Len())
	}

	// Duplicate keys are rejected.
	dup := &RuleSet{Category: "persona", Version: "v1", Source: "other.yaml"}
	if err := r.Replace([]*RuleSet{v1, dup}); err == nil {
		t.Error("Replace() with duplicate key: want error")
	}
	if r.Len() != 3 {
		t.Errorf("Len() after rejected replace = %d, want 3", r.Len())
	}

	if err := r.Register(&RuleSet{Category: "x"}); err == nil {
		t.Error("Register() without version: want error")
	}
}

func TestRegistry_RulesCopy(t *testing.T) {
	c := mustCompiler(t)
	rs, err := LoadFile("testdata/persona.yaml", c)
	if err != nil {
		t.Fatal(err)
	}

	r := NewRegistry(nil)
	if err := r.Register(rs); err != nil {
		t.Fatal(err)
	}

	rules, err := r.Rules("persona", "v1")
	if err != nil {
		t.Fatal(err)
	}
	rules[0].ID = "mutated"

	again, _ := r.Rules("persona", "v1")
	if again[0].ID == "mutated" {
		t.Error("Rules() returned shared storage")
	}
}
