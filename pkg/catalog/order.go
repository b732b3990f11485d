package catalog

import (
	"fmt"
	"strings"

	"github.com/ondata/confini/pkg/errors"
)

// resolveLevels computes a topological ordering of divisions using Kahn's
// algorithm. It returns levels of division indexes where each level only
// depends on earlier ones. Unknown parents, self references and cycles
// are validation errors.
func resolveLevels(release string, divisions []Division) ([][]int, error) {
	if len(divisions) == 0 {
		return nil, nil
	}

	index := make(map[string]int, len(divisions))
	for i, d := range divisions {
		index[d.Name] = i
	}

	inDegree := make([]int, len(divisions))
	dependents := make([][]int, len(divisions))
	for i, d := range divisions {
		for _, p := range d.Parents {
			pi, ok := index[p]
			if !ok {
				return nil, &errors.ValidationError{
					Field:   "parents",
					Value:   p,
					Message: fmt.Sprintf("division %s of release %s references unknown parent %s", d.Name, release, p),
				}
			}
			if pi == i {
				return nil, &errors.ValidationError{
					Field:   "parents",
					Value:   p,
					Message: fmt.Sprintf("division %s of release %s is its own parent", d.Name, release),
					Err:     errors.ErrCycle,
				}
			}
			dependents[pi] = append(dependents[pi], i)
			inDegree[i]++
		}
	}

	// Seed and advance in configuration order so the result is stable.
	var queue []int
	for i, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, i)
		}
	}

	var levels [][]int
	processed := 0
	for len(queue) > 0 {
		levels = append(levels, queue)
		processed += len(queue)

		ready := make([]bool, len(divisions))
		for _, i := range queue {
			for _, dep := range dependents[i] {
				inDegree[dep]--
				if inDegree[dep] == 0 {
					ready[dep] = true
				}
			}
		}
		var next []int
		for i, ok := range ready {
			if ok {
				next = append(next, i)
			}
		}
		queue = next
	}

	if processed != len(divisions) {
		var stuck []string
		for i, deg := range inDegree {
			if deg > 0 {
				stuck = append(stuck, divisions[i].Name)
			}
		}
		return nil, &errors.ValidationError{
			Field:   "parents",
			Value:   stuck,
			Message: fmt.Sprintf("cycle detected in release %s among divisions %s", release, strings.Join(stuck, ", ")),
			Err:     errors.ErrCycle,
		}
	}
	return levels, nil
}
