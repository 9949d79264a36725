package planner

import (
	"errors"
	"fmt"

	"github.com/dlaw/fixpoint/internal/algebra"
)

// Kind categorizes build diagnostics. There are exactly two: every
// planning failure is either a value that cannot be expressed or a bit
// demand that no storage width satisfies.
type Kind string

const (
	// KindRepresentation indicates a literal, constant or operation
	// target cannot exactly represent the intended value.
	KindRepresentation Kind = "REPRESENTATION"

	// KindCapacity indicates a derived bit demand exceeds the storage
	// width table.
	KindCapacity Kind = "CAPACITY"
)

// Diagnostic is a build-failing planning error.
//
// Diagnostics have no runtime counterpart and no recovery path: the
// design's value is that these errors cannot reach a running binary.
// Each one names the declaration that failed and, when derivable, the
// computed (shift, bits) demand that could not be satisfied.
type Diagnostic struct {
	// Kind identifies the failure category.
	Kind Kind

	// Path is the declaration path, e.g. "pipelines.fuse.steps.sum".
	Path string

	// Pos is the source position "file.cue:12:5", when known.
	Pos string

	// Message is a human-readable description.
	Message string

	// Demand is the computed descriptor that failed, when one exists.
	Demand *algebra.Descriptor
}

// Error implements the error interface.
func (d *Diagnostic) Error() string {
	msg := d.Message
	if d.Demand != nil {
		msg = fmt.Sprintf("%s (computed %s)", msg, d.Demand)
	}
	if d.Pos != "" {
		return fmt.Sprintf("%s: %s: %s: %s", d.Pos, d.Kind, d.Path, msg)
	}
	return fmt.Sprintf("%s: %s: %s", d.Kind, d.Path, msg)
}

// IsRepresentation reports whether err is a representation diagnostic.
// Uses errors.As to handle wrapped errors.
func IsRepresentation(err error) bool {
	var d *Diagnostic
	return errors.As(err, &d) && d.Kind == KindRepresentation
}

// IsCapacity reports whether err is a capacity diagnostic.
func IsCapacity(err error) bool {
	var d *Diagnostic
	return errors.As(err, &d) && d.Kind == KindCapacity
}

// NewRepresentationDiag creates a representation diagnostic.
func NewRepresentationDiag(path, pos, message string) *Diagnostic {
	return &Diagnostic{
		Kind:    KindRepresentation,
		Path:    path,
		Pos:     pos,
		Message: message,
	}
}

// NewCapacityDiag creates a capacity diagnostic carrying the demand
// that exceeded the width table.
func NewCapacityDiag(path, pos string, demand algebra.Descriptor, message string) *Diagnostic {
	return &Diagnostic{
		Kind:    KindCapacity,
		Path:    path,
		Pos:     pos,
		Message: message,
		Demand:  &demand,
	}
}
