/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package operation

import (
	"net/http"

	"github.com/trustbloc/didtrust/pkg/restapi/messages"
)

func writeInvalidAnchorRequest(rw http.ResponseWriter, id string, errInvalid error, receivedData []byte) {
	logger.Errorf(messages.InvalidAnchorRequest, id, errInvalid)
	logger.Debugf(messages.DebugLogEventWithReceivedData,
		errorText(messages.InvalidAnchorRequest, id, errInvalid), receivedData)

	rw.WriteHeader(http.StatusBadRequest)

	_, errWrite := rw.Write([]byte(errorText(messages.InvalidAnchorRequest, id, errInvalid)))
	if errWrite != nil {
		logger.Errorf(messages.InvalidAnchorRequest+messages.FailWriteResponse, id, errInvalid, errWrite)
	}
}

// writeErrorWithStatus logs and writes format with args. The last element of args is logged
// again when writing the response fails.
func writeErrorWithStatus(rw http.ResponseWriter, status int, format string, args ...interface{}) {
	if status >= http.StatusInternalServerError {
		logger.Errorf(format, args...)
	} else {
		logger.Debugf(format, args...)
	}

	rw.WriteHeader(status)

	_, errWrite := rw.Write([]byte(errorText(format, args...)))
	if errWrite != nil {
		logger.Errorf(format+messages.FailWriteResponse, append(args, errWrite)...)
	}
}

func writeJSON(rw http.ResponseWriter, body []byte) {
	rw.Header().Set("Content-Type", "application/json")

	_, errWrite := rw.Write(body)
	if errWrite != nil {
		logger.Errorf(messages.FailWriteResponse, errWrite)
	}
}
