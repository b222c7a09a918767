package executor

import (
	"fmt"
	"strings"

	"github.com/sourcegraph/conc/panics"
)

// TaskPanicError is a panic recovered from a task, with the stack at the point of the panic.
type TaskPanicError struct {
	msg       string
	recovered *panics.Recovered
}

func (e *TaskPanicError) Error() string {
	return e.msg
}

func (e *TaskPanicError) Unwrap() error {
	return e.recovered.AsError()
}

// Value is the value the task panicked with.
func (e *TaskPanicError) Value() any {
	return e.recovered.Value
}

// Try runs task and converts a panic into a *TaskPanicError.
func Try(task func()) error {
	r := panics.Try(task)
	if r == nil {
		return nil
	}
	sb := strings.Builder{}
	sb.WriteString(fmt.Sprintf("task panicked: %v \n", r.Value))
	sb.Write(r.Stack)
	return &TaskPanicError{msg: sb.String(), recovered: r}
}
