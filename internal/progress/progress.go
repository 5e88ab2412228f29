// Package progress brackets long running work with start and completion
// notifications.
package progress

// Operation is a started unit of work.
type Operation interface {
	Complete()
}

// Reporter starts operations.
type Reporter interface {
	Start(category, shortLabel, longLabel string) Operation
}

// failureNoter is implemented by operations that want to know the action
// failed before Complete is called.
type failureNoter interface {
	Failed(err error)
}

// CategoryCompile is the category used for compilation work.
const CategoryCompile = "compile"

// With runs action between Start and Complete. Complete is called on every
// exit path, including panics; errors from action are returned unchanged.
func With[T any](r Reporter, category, label string, action func() (T, error)) (result T, err error) {
	if r == nil {
		r = Nop{}
	}

	op := r.Start(category, label, label)
	defer func() {
		if err != nil {
			if fn, ok := op.(failureNoter); ok {
				fn.Failed(err)
			}
		}

		op.Complete()
	}()

	return action()
}

// Do is With for actions without a result.
func Do(r Reporter, category, label string, action func() error) error {
	_, err := With(r, category, label, func() (struct{}, error) {
		return struct{}{}, action()
	})

	return err
}

// Nop discards notifications.
type Nop struct{}

func (Nop) Start(string, string, string) Operation { return nopOperation{} }

type nopOperation struct{}

func (nopOperation) Complete() {}
