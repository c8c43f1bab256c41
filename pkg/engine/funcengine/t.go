package funcengine

import "fmt"

// T is handed to a running test.
type T struct {
	name   string
	output []string
}

// Name returns the case name.
func (t *T) Name() string { return t.name }

// Log records a line of output attached to the test result.
func (t *T) Log(args ...any) { t.output = append(t.output, fmt.Sprint(args...)) }

// Logf is Log with formatting.
func (t *T) Logf(format string, args ...any) {
	t.output = append(t.output, fmt.Sprintf(format, args...))
}

// Abort stops the test because a precondition does not hold. The test
// finishes as aborted with an *AbortError.
func (t *T) Abort(reason string) { panic(abortSignal{reason: reason}) }

type abortSignal struct{ reason string }

// AbortError is the result error of a test that called T.Abort.
type AbortError struct {
	Reason string
}

func (e *AbortError) Error() string { return "aborted: " + e.Reason }
