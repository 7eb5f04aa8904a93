package tensor

import "fmt"

// Shape represents the dimensions of a tensor.
type Shape []int

// NumElements returns the total number of elements in the tensor.
func (s Shape) NumElements() int {
	if len(s) == 0 {
		return 1 // Scalar has 1 element
	}
	n := 1
	for _, dim := range s {
		n *= dim
	}
	return n
}

// Validate checks if the shape is valid (all dimensions > 0).
func (s Shape) Validate() error {
	for i, dim := range s {
		if dim <= 0 {
			return fmt.Errorf("invalid dimension at index %d: %d (must be > 0)", i, dim)
		}
	}
	return nil
}

// Equal checks if two shapes are equal.
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of the shape.
func (s Shape) Clone() Shape {
	clone := make(Shape, len(s))
	copy(clone, s)
	return clone
}

// Resolve replaces a single -1 dimension with the size implied by total.
//
// This mirrors the reshape convention used by the network definitions,
// e.g. Shape{-1, 28, 28, 1} for a flattened MNIST batch.
func (s Shape) Resolve(total int) (Shape, error) {
	out := s.Clone()
	infer := -1
	known := 1
	for i, d := range out {
		switch {
		case d == -1:
			if infer >= 0 {
				return nil, fmt.Errorf("shape %v: more than one inferred dimension", s)
			}
			infer = i
		case d <= 0:
			return nil, fmt.Errorf("shape %v: invalid dimension %d", s, d)
		default:
			known *= d
		}
	}
	if infer >= 0 {
		if known == 0 || total%known != 0 {
			return nil, fmt.Errorf("shape %v: cannot hold %d elements", s, total)
		}
		out[infer] = total / known
	}
	if out.NumElements() != total {
		return nil, fmt.Errorf("shape %v: holds %d elements, want %d", s, out.NumElements(), total)
	}
	return out, nil
}

// String formats the shape as [d0 d1 ...].
func (s Shape) String() string {
	return fmt.Sprint([]int(s))
}
