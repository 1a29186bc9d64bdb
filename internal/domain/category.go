package domain

import "sort"

// Category is a topic bucket used for rotation and selection.
type Category string

const (
	// CategoryNoise is never selected unless the operator overrides noise filtering.
	CategoryNoise Category = "NOISE"
	// CategoryGeneral is assigned when nothing matches; it has no rotation slot.
	CategoryGeneral Category = "GENERAL"
)

// CategorySpec describes one category anchor.
type CategorySpec struct {
	Name        Category
	Description string
	Weight      float64
	Priority    int
	Patterns    []string
}

// RotationOrder returns the non-noise categories sorted by priority.
func RotationOrder(specs []CategorySpec) []Category {
	sorted := make([]CategorySpec, 0, len(specs))
	for _, spec := range specs {
		if spec.Name == CategoryNoise {
			continue
		}
		sorted = append(sorted, spec)
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority < sorted[j].Priority
	})

	order := make([]Category, len(sorted))
	for i, spec := range sorted {
		order[i] = spec.Name
	}
	return order
}
