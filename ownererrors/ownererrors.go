/*
Copyright 2017 The Kubernetes Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package ownererrors defines the error kinds from spec §7 as a single
// typed error rather than a sentinel per kind, so that every component
// can attribute a failure to (project, ref, path) uniformly.
package ownererrors

import (
	"errors"
	"fmt"
)

// Kind is one of the seven error kinds the engine can produce.
type Kind string

const (
	ConfigInvalid Kind = "CONFIG_INVALID"
	InvalidPath   Kind = "INVALID_PATH"
	PolicyInvalid Kind = "POLICY_INVALID"
	Repository    Kind = "REPOSITORY_ERROR"
	Account       Kind = "ACCOUNT_ERROR"
	Canceled      Kind = "CANCELED"
	Internal      Kind = "INTERNAL"
)

// UserCaused reports whether this kind should be surfaced to the caller
// as a conflict rather than propagated as an internal failure.
func (k Kind) UserCaused() bool {
	switch k {
	case ConfigInvalid, InvalidPath, PolicyInvalid:
		return true
	default:
		return false
	}
}

// Error is the engine's single error type. Attribution fields are left
// zero-valued when not applicable (e.g. Canceled, Internal).
type Error struct {
	Kind    Kind
	Project string
	Ref     string
	Path    string
	Line    int // 1-based; 0 means not applicable
	Message string
	Cause   error
}

func (e *Error) Error() string {
	var where string
	switch {
	case e.Project != "" && e.Path != "":
		where = fmt.Sprintf("%s:%s:%s", e.Project, e.Ref, e.Path)
	case e.Project != "":
		where = fmt.Sprintf("%s:%s", e.Project, e.Ref)
	}
	if e.Line > 0 {
		where = fmt.Sprintf("%s:%d", where, e.Line)
	}
	if where != "" {
		return fmt.Sprintf("%s [%s]: %s", e.Kind, where, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf builds an Error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a cause to a new Error of the given kind.
func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// WithLocation returns a copy of e with attribution fields set.
func (e *Error) WithLocation(project, ref, path string) *Error {
	cp := *e
	cp.Project, cp.Ref, cp.Path = project, ref, path
	return &cp
}

// As reports whether err (or something it wraps) is an *Error, writing it
// into target the way errors.As does.
func As(err error, target **Error) bool {
	return errors.As(err, target)
}

// KindOf extracts the Kind of err, defaulting to Internal if err is not
// (or does not wrap) an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}
