package outcome

import "fmt"

// Outcome successful result of an operation; either a message or data
type Outcome[T any] struct {
	Message string
	Data    T

	hasData bool
}

func WithMessage[T any](format string, args ...interface{}) *Outcome[T] {
	return &Outcome[T]{Message: fmt.Sprintf(format, args...)}
}

func WithData[T any](data T) *Outcome[T] {
	return &Outcome[T]{Data: data, hasData: true}
}

func (o *Outcome[T]) HasData() bool { return o.hasData }

// Result outcome of one entry of a batch operation
type Result struct {
	Name    string
	Message string
	Err     error
}

func (r *Result) Success() bool { return r.Err == nil }
