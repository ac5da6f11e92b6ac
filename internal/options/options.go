// Package options provides the generic functional-option plumbing the
// parser settings are built from.
package options

// Option configures a target of type T.
type Option[T any] interface {
	apply(T) error
}

// fn wraps a plain function as an Option.
type fn[T any] struct {
	applyFunc func(T) error
}

func (f *fn[T]) apply(target T) error {
	return f.applyFunc(target)
}

// New creates an option from a function that can fail validation.
func New[T any](f func(T) error) Option[T] {
	return &fn[T]{applyFunc: f}
}

// NoError creates an option from a function that cannot fail.
func NoError[T any](f func(T)) Option[T] {
	return &fn[T]{applyFunc: func(target T) error {
		f(target)
		return nil
	}}
}

// Apply runs the options against target in order, stopping at the first
// failure.
func Apply[T any](target T, opts ...Option[T]) error {
	for _, opt := range opts {
		if err := opt.apply(target); err != nil {
			return err
		}
	}

	return nil
}
