package failure

// Result is the tagged outcome of a call across a collaborator boundary.
type Result[T any] struct {
	Value   T
	Failure *Record
}

// Kind is empty for a successful result.
func (r Result[T]) Kind() Kind {
	if r.Failure == nil {
		return ""
	}
	return r.Failure.Kind
}

func (r Result[T]) Ok() bool {
	return r.Failure == nil
}

// Err returns the failure as an error, or nil.
func (r Result[T]) Err() error {
	if r.Failure == nil {
		return nil
	}
	return r.Failure
}

// Ok builds a successful result.
func Ok[T any](v T) Result[T] {
	return Result[T]{Value: v}
}

// Fail builds a failed result from an existing record.
func Fail[T any](rec *Record) Result[T] {
	return Result[T]{Failure: rec}
}

// Wrap classifies err, if any, into a failed result. A nil err yields Ok(v).
func Wrap[T any](module string, v T, err error) Result[T] {
	if err == nil {
		return Ok(v)
	}
	return Result[T]{Value: v, Failure: Classify(module, err)}
}
