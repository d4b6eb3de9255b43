package mrs

import (
	"fmt"
	"strings"
)

// ShapeError reports an operation whose shape requirements the data does not
// meet.
type ShapeError struct {
	Op  string
	Msg string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Msg)
}

// DimensionNotFoundError reports a dimension tag that is not present on the
// object.
type DimensionNotFoundError struct {
	Tag       string
	Available []string
}

func (e *DimensionNotFoundError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("dimension %s not found: the data has no higher dimensions", e.Tag)
	}
	return fmt.Sprintf("dimension %s not found: available dimensions are %s",
		e.Tag, strings.Join(e.Available, ", "))
}

// NotNiftiMRSError reports a NIfTI file that does not carry the MRS header
// extension or version marker.
type NotNiftiMRSError struct {
	Path string
	Msg  string
}

func (e *NotNiftiMRSError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s is not a NIfTI-MRS file: %s", e.Path, e.Msg)
	}
	return fmt.Sprintf("not a NIfTI-MRS file: %s", e.Msg)
}
