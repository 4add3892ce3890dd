package export

import (
	"fmt"
	"io"
	"time"

	"MyLocalBoard/internal/state"
)

// Summary writes a plain-text listing of the log, one block per operation.
func Summary(w io.Writer, room string, ops []state.Operation) error {
	ew := &errWriter{w: w}
	ew.printf("LocalBoard Export: %s\n", room)
	ew.printf("================\n\n")
	ew.printf("Total operations: %d\n\n", len(ops))

	for i, op := range ops {
		ew.printf("Operation %d (%s):\n", i+1, op.ID)
		ew.printf("  Kind: %s\n", op.Kind)
		ew.printf("  Author: %s (%s)\n", op.UserName, op.UserID)
		ew.printf("  Points: %d\n", len(op.Points))
		ew.printf("  Color: %s  Width: %g\n", op.Color, op.Width)
		if op.CreatedAt > 0 {
			ew.printf("  Time: %s\n", time.UnixMilli(op.CreatedAt).UTC().Format("2006-01-02 15:04:05"))
		}
		if len(op.Points) > 0 {
			first := op.Points[0]
			ew.printf("  Start: (%.2f, %.2f)\n", first.X, first.Y)
			if len(op.Points) > 1 {
				last := op.Points[len(op.Points)-1]
				ew.printf("  End: (%.2f, %.2f)\n", last.X, last.Y)
			}
		}
		ew.printf("\n")
	}
	return ew.err
}

type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}
