//                           _       _
// __      _____  __ ___   ___  __ _| |_ ___
// \ \ /\ / / _ \/ _` \ \ / / |/ _` | __/ _ \
//  \ V  V /  __/ (_| |\ V /| | (_| | ||  __/
//   \_/\_/ \___|\__,_| \_/ |_|\__,_|\__\___|
//
//  Copyright © 2016 - 2026 Weaviate B.V. All rights reserved.
//
//  CONTACT: hello@weaviate.io
//

package bundle

import (
	"errors"
	"fmt"
)

// Kind classifies why a bundle operation failed.
type Kind string

const (
	ContainerUnreadable    Kind = "container_unreadable"
	MacroResolutionAborted Kind = "macro_resolution_aborted"
	MacroOverflow          Kind = "macro_overflow"
	MalformedDocument      Kind = "malformed_document"
	UnknownDecodedType     Kind = "unknown_decoded_type"
	DataSourceInitFailed   Kind = "data_source_init_failed"
	UnconsumedFileMapping  Kind = "unconsumed_file_mapping"
	WriteFailed            Kind = "write_failed"
	Cancelled              Kind = "cancelled"
)

// Category groups kinds into broad failure classes.
type Category string

const (
	IOFailure              Category = "io_failure"
	SerializationFailure   Category = "serialization_failure"
	MacroResolutionFailure Category = "macro_resolution_failure"
	UnitInitFailure        Category = "unit_init_failure"
	InvariantViolation     Category = "invariant_violation"
	UserCancelled          Category = "user_cancelled"
)

func (k Kind) Category() Category {
	switch k {
	case ContainerUnreadable, WriteFailed:
		return IOFailure
	case MacroResolutionAborted, MacroOverflow:
		return MacroResolutionFailure
	case UnknownDecodedType, UnconsumedFileMapping:
		return InvariantViolation
	case DataSourceInitFailed:
		return UnitInitFailure
	case Cancelled:
		return UserCancelled
	default:
		return SerializationFailure
	}
}

// Error is a failed bundle operation. Op and Path identify what was being
// done to which file so one message can be shown to the user.
type Error struct {
	Kind Kind
	Op   string
	Path string
	Err  error
}

// ErrCancelled matches every cancellation through errors.Is.
var ErrCancelled = &Error{Kind: Cancelled}

func NewError(kind Kind, op, path string, err error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Path != "" {
		msg = fmt.Sprintf("%s %q", msg, e.Path)
	}
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// IsCancelled reports whether err is a user cancellation.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}

// Silent reports whether err should not be shown to the user.
func Silent(err error) bool {
	return err == nil || IsCancelled(err)
}
