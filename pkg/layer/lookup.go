package layer

import (
	"errors"
	"fmt"
)

// ErrLayerNotFound is returned when a stack holds no layer of the requested
// type.
var ErrLayerNotFound = errors.New("layer: not found")

func notFound[T Layer]() error {
	var zero T
	return fmt.Errorf("%w: %T", ErrLayerNotFound, zero)
}

// First returns the outermost layer of type T.
func First[T Layer](s *Stack) (T, error) {
	for i := 0; i < s.Len(); i++ {
		if l, ok := s.layers[i].(T); ok {
			return l, nil
		}
	}
	var zero T
	return zero, notFound[T]()
}

// Innermost returns the last layer of type T, the one nested deepest.
func Innermost[T Layer](s *Stack) (T, error) {
	for i := s.Len() - 1; i >= 0; i-- {
		if l, ok := s.layers[i].(T); ok {
			return l, nil
		}
	}
	var zero T
	return zero, notFound[T]()
}

// MustFirst is First for callers that know the layer is present.
func MustFirst[T Layer](s *Stack) T {
	l, err := First[T](s)
	if err != nil {
		panic(err)
	}
	return l
}

// All returns every layer of type T, outermost first.
func All[T Layer](s *Stack) []T {
	var out []T
	for i := 0; i < s.Len(); i++ {
		if l, ok := s.layers[i].(T); ok {
			out = append(out, l)
		}
	}
	return out
}

// Indices returns the positions of every layer of type T.
func Indices[T Layer](s *Stack) []int {
	var out []int
	for i := 0; i < s.Len(); i++ {
		if _, ok := s.layers[i].(T); ok {
			out = append(out, i)
		}
	}
	return out
}

// Before returns the nearest layer of type T in front of position i.
func Before[T Layer](s *Stack, i int) (T, bool) {
	for j := i - 1; j >= 0; j-- {
		if l, ok := s.layers[j].(T); ok {
			return l, true
		}
	}
	var zero T
	return zero, false
}
