package tools

import "fmt"

// IndexError reports a split position or selection outside the valid range
// of the addressed dimension.
type IndexError struct {
	Op  string
	Msg string
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Msg)
}
