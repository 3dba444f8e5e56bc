/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package trusterrors classifies failures raised by the trust engine.
//
// Callers usually only need errors.Is against a package sentinel. KindOf is there for
// audit logging, where a failed signature check must be reported differently from a
// malformed input.
package trusterrors

import "errors"

// Kind is the class of a failure.
type Kind int

const (
	// Unclassified is returned by KindOf for errors that carry no Kind.
	Unclassified Kind = iota
	// Validation marks malformed input: bad seed length, bad mnemonic, undefined context term.
	Validation
	// Cryptographic marks failed decryption or signature checks.
	Cryptographic
	// Protocol marks interaction-token failures: expiry, nonce, audience, unknown issuer.
	Protocol
	// Resolution marks identifiers that could not be resolved to a document.
	Resolution
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case Cryptographic:
		return "cryptographic"
	case Protocol:
		return "protocol"
	case Resolution:
		return "resolution"
	default:
		return "unclassified"
	}
}

// Error is a sentinel error tagged with a Kind. Compare with errors.Is.
type Error struct {
	kind Kind
	msg  string
}

// New returns a new sentinel error.
func New(kind Kind, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

func (e *Error) Error() string { return e.msg }

// Kind returns the class of the error.
func (e *Error) Kind() Kind { return e.kind }

// KindOf returns the Kind of the first classified error in err's chain.
func KindOf(err error) Kind {
	var classified *Error
	if errors.As(err, &classified) {
		return classified.kind
	}

	return Unclassified
}
