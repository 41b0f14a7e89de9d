package monitor

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// Summarize renders err with at most frames stack frames taken from the
// innermost error that recorded a stack.
func Summarize(err error, frames int) string {
	if err == nil {
		return ""
	}

	var trace errors.StackTrace
	for e := err; e != nil; e = errors.Unwrap(e) {
		if st, ok := e.(stackTracer); ok {
			trace = st.StackTrace()
		}
	}
	if len(trace) > frames {
		trace = trace[:frames]
	}

	var b strings.Builder
	b.WriteString(err.Error())
	for _, f := range trace {
		fmt.Fprintf(&b, "\n\tat %n (%s:%d)", f, f, f)
	}
	return b.String()
}
