// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package goulink

import (
	"fmt"
)

type ulinkErrorCode int

const (
	errCodeTransport ulinkErrorCode = iota // USB transfer returned <0 or short count
	errCodeBug                             // programmer-visible protocol invariant violation
	errCodeRefused                         // configuration refusal, caller may retry with different input
)

// ulinkError is the single error type surfaced by the driver. The code lets
// callers tell a transport failure (queue state is now undefined) apart from
// a programmer-bug invariant violation (fatal, should not be retried) and a
// configuration refusal (non-fatal, caller may retry with different input).
type ulinkError struct {
	msg  string
	Code ulinkErrorCode
}

func (e *ulinkError) Error() string {
	return e.msg
}

func newTransportError(msg string) error {
	return &ulinkError{msg, errCodeTransport}
}

func newBugError(format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	logger.Errorf("BUG: %s", msg)
	return &ulinkError{msg, errCodeBug}
}

func newRefusedError(msg string) error {
	return &ulinkError{msg, errCodeRefused}
}

// IsBug reports whether err is a programmer-visible invariant violation that
// should abort the caller rather than be retried.
func IsBug(err error) bool {
	if ue, ok := err.(*ulinkError); ok {
		return ue.Code == errCodeBug
	}
	return false
}
