package plugin

import (
	"errors"
	"testing"
)

func TestResolveOrder(t *testing.T) {
	deps := map[string][]string{
		"base": nil,
		"mid":  {"base"},
		"top":  {"mid", "base"},
	}
	order, err := resolveOrder(deps, []string{"base", "mid", "top"})
	if err != nil {
		t.Fatalf("resolveOrder() failed: %v", err)
	}
	if !equalStrings(order, []string{"base", "mid", "top"}) {
		t.Errorf("resolveOrder() = %v, want [base mid top]", order)
	}
}

func TestResolveOrderDependencyBeforeDependent(t *testing.T) {
	// Dependent registered first; resolution still visits the
	// dependency before it
	deps := map[string][]string{
		"top":  {"base"},
		"base": nil,
	}
	order, err := resolveOrder(deps, []string{"top", "base"})
	if err != nil {
		t.Fatalf("resolveOrder() failed: %v", err)
	}
	if !equalStrings(order, []string{"base", "top"}) {
		t.Errorf("resolveOrder() = %v, want [base top]", order)
	}
}

func TestResolveOrderSharedDependencyOnce(t *testing.T) {
	deps := map[string][]string{
		"base":  nil,
		"left":  {"base"},
		"right": {"base"},
	}
	order, err := resolveOrder(deps, []string{"left", "right", "base"})
	if err != nil {
		t.Fatalf("resolveOrder() failed: %v", err)
	}
	if len(order) != 3 {
		t.Fatalf("resolveOrder() = %v, want 3 unique names", order)
	}
	if order[0] != "base" {
		t.Errorf("shared dependency not first: %v", order)
	}
}

func TestResolveOrderCycle(t *testing.T) {
	tests := []struct {
		name string
		deps map[string][]string
	}{
		{
			"two node cycle",
			map[string][]string{"a": {"b"}, "b": {"a"}},
		},
		{
			"three node cycle",
			map[string][]string{"a": {"b"}, "b": {"c"}, "c": {"a"}},
		},
		{
			"cycle behind healthy prefix",
			map[string][]string{"ok": nil, "a": {"b"}, "b": {"a"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := make([]string, 0, len(tt.deps))
			for name := range tt.deps {
				reg = append(reg, name)
			}
			_, err := resolveOrder(tt.deps, reg)
			if !errors.Is(err, ErrCyclicDependency) {
				t.Errorf("resolveOrder() error = %v, want ErrCyclicDependency", err)
			}
		})
	}
}

func TestResolveOrderEmpty(t *testing.T) {
	order, err := resolveOrder(map[string][]string{}, nil)
	if err != nil {
		t.Fatalf("resolveOrder() failed: %v", err)
	}
	if len(order) != 0 {
		t.Errorf("resolveOrder() = %v, want empty", order)
	}
}

func TestReverseOrder(t *testing.T) {
	got := reverseOrder([]string{"a", "b", "c"})
	if !equalStrings(got, []string{"c", "b", "a"}) {
		t.Errorf("reverseOrder() = %v, want [c b a]", got)
	}

	// Input must not be mutated
	in := []string{"x", "y"}
	reverseOrder(in)
	if !equalStrings(in, []string{"x", "y"}) {
		t.Errorf("reverseOrder mutated its input: %v", in)
	}
}
