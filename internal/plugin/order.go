package plugin

import "fmt"

// resolveOrder computes a dependency order over the registered plugins:
// a depth-first postorder walk of the declared-dependency edges, so
// every plugin lands after all of its dependencies. Reversing the order
// yields the teardown order.
//
// The visiting set detects cycles: revisiting a name that is still on
// the walk stack means the graph has no valid linear order, which fails
// the whole resolution. The visited set skips names already placed.
// The walk starts from regOrder, so the result is deterministic for a
// fixed registration sequence.
func resolveOrder(deps map[string][]string, regOrder []string) ([]string, error) {
	order := make([]string, 0, len(regOrder))
	visiting := make(map[string]bool, len(regOrder))
	visited := make(map[string]bool, len(regOrder))

	var visit func(name string) error
	visit = func(name string) error {
		if visited[name] {
			return nil
		}
		if visiting[name] {
			return fmt.Errorf("plugin %q: %w", name, ErrCyclicDependency)
		}
		visiting[name] = true
		for _, dep := range deps[name] {
			if err := visit(dep); err != nil {
				return err
			}
		}
		delete(visiting, name)
		visited[name] = true
		order = append(order, name)
		return nil
	}

	for _, name := range regOrder {
		if err := visit(name); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// reverseOrder returns a reversed copy of the given order.
func reverseOrder(order []string) []string {
	out := make([]string, len(order))
	for i, name := range order {
		out[len(order)-1-i] = name
	}
	return out
}
