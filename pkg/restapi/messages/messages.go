/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package messages

const (
	// ErrBlankDIDDocument is returned when an anchor request carries no DID document.
	ErrBlankDIDDocument = registryError("didDocument can't be blank")
	// ErrDIDMismatch is returned when the document in an anchor request is for another DID than the path names.
	ErrDIDMismatch = registryError("didDocument id does not match the DID in the request path")

	// FailWriteResponse is logged when a ResponseWriter fails to write.
	FailWriteResponse = ` Failed to write response back to sender: %s.`

	// DebugLogEventWithReceivedData is used for debug logging that includes received data.
	DebugLogEventWithReceivedData = `%s Received data: %s`

	// AnchorFailReadRequestBody is used when the incoming request body can't be read.
	// This should not happen during normal operation.
	AnchorFailReadRequestBody = `Received request to anchor %s, but failed to read the request body: %s.`
	// InvalidAnchorRequest is used when an anchor request is malformed or the records do not verify.
	InvalidAnchorRequest = `Received invalid request to anchor %s: %s.`
	// AnchorFailure is used when a verified anchor request could not be stored.
	AnchorFailure = `Failure while anchoring %s: %s.`
	// AnchorSuccess is used when a document is anchored.
	AnchorSuccess = `Successfully anchored %s.`

	// ResolveFailure is used when an error occurs while reading a document.
	ResolveFailure = `Failed to resolve %s: %s.`
	// ResolveSuccess is used when a document is returned.
	ResolveSuccess = `Successfully resolved %s.`

	// ProfileFailure is used when an error occurs while reading a public profile.
	ProfileFailure = `Failed to read the public profile of %s: %s.`
	// ProfileNotFound is used when a document has no public profile.
	ProfileNotFound = `%s has no public profile.`

	// ListFailure is used when the anchored identifiers cannot be listed.
	ListFailure = `Failed to list anchored identifiers: %s.`
	// FailToMarshalIdentifiers is used when the list of identifiers can't be marshalled.
	// This should not happen during normal operation.
	FailToMarshalIdentifiers = `Failed to marshal the anchored identifiers: %s.`

	// UnescapeFailure is used when an error occurs while unescaping a path variable
	UnescapeFailure = "Unable to unescape %s path variable: %s."
)

type registryError string

// Error returns the associated registry error message.
// This satisfies the built-in error interface.
func (e registryError) Error() string { return string(e) }
