// Perfcore - Performance Infrastructure Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/perfcore

package errtrack

import (
	"errors"
	"fmt"
	"reflect"
	"runtime"
	"strings"
)

// Typed lets an error name its own type in the aggregator.
type Typed interface {
	ErrorType() string
}

// Error is a generic error carrying an explicit type name.
type Error struct {
	Type string
	Err  error
}

// Errorf builds an Error of the given type.
func Errorf(errType, format string, args ...interface{}) *Error {
	return &Error{Type: errType, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string     { return e.Err.Error() }
func (e *Error) Unwrap() error     { return e.Err }
func (e *Error) ErrorType() string { return e.Type }

// describe returns the type name and message of err. Typed nil pointers
// and Error methods that panic never escape; they fall back to the
// reflected type name.
func describe(err error) (errType, message string) {
	if err == nil {
		return "nil", "<nil>"
	}
	if isNilValue(err) {
		return reflectName(reflect.TypeOf(err)), "<nil>"
	}

	defer func() {
		if r := recover(); r != nil {
			errType = reflectName(reflect.TypeOf(err))
			message = fmt.Sprintf("%T", err)
		}
	}()
	return typeName(err), err.Error()
}

func isNilValue(err error) bool {
	v := reflect.ValueOf(err)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return v.IsNil()
	}
	return false
}

func reflectName(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if name := t.Name(); name != "" {
		return name
	}
	return t.String()
}

func typeName(err error) string {
	if err == nil {
		return "nil"
	}

	var typed Typed
	if errors.As(err, &typed) {
		return typed.ErrorType()
	}

	for {
		t := reflect.TypeOf(err)
		for t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
		// fmt wrappers carry no information of their own
		if t.PkgPath() == "fmt" {
			if inner := errors.Unwrap(err); inner != nil && !isNilValue(inner) {
				err = inner
				continue
			}
		}
		return reflectName(t)
	}
}

// callerStack formats the stack of the goroutine calling Log, skipping
// skip frames above runtime.Callers.
func callerStack(skip int) string {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(skip+1, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	var b strings.Builder
	for {
		frame, more := frames.Next()
		if !strings.HasPrefix(frame.Function, "runtime.") {
			fmt.Fprintf(&b, "%s\n\t%s:%d\n", frame.Function, frame.File, frame.Line)
		}
		if !more {
			break
		}
	}
	return b.String()
}
