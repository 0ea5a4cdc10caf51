/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package rest

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/andrewwhitehead/anoncreds-rs/pkg/common/log"
	"github.com/andrewwhitehead/anoncreds-rs/pkg/controller/command"
)

var logger = log.New("anoncreds/rest")

// Handler http handler for each controller API endpoint.
type Handler interface {
	// Path of the endpoint.
	Path() string
	// Method of the endpoint.
	Method() string
	// Handle of the endpoint.
	Handle() http.HandlerFunc
}

// genericErrorBody is the JSON document sent for failed requests.
type genericErrorBody struct {
	Code    command.Code `json:"code"`
	Message string       `json:"message"`
}

// Execute runs the given command and writes a command error, if any, onto
// the response.
func Execute(exec command.Exec, rw http.ResponseWriter, req io.Reader) {
	if cmdErr := exec(rw, req); cmdErr != nil {
		SendError(rw, cmdErr)
	}
}

// SendError sends a command error as an HTTP response: validation failures
// map to 400 and execution failures to 500.
func SendError(rw http.ResponseWriter, cmdErr command.Error) {
	switch cmdErr.Type() {
	case command.ValidationError:
		SendHTTPStatusError(rw, http.StatusBadRequest, cmdErr.Code(), cmdErr)
	default:
		SendHTTPStatusError(rw, http.StatusInternalServerError, cmdErr.Code(), cmdErr)
	}
}

// SendHTTPStatusError sends an error with the given HTTP status code.
func SendHTTPStatusError(rw http.ResponseWriter, statusCode int, code command.Code, err error) {
	rw.WriteHeader(statusCode)

	encodeErr := json.NewEncoder(rw).Encode(genericErrorBody{Code: code, Message: err.Error()})
	if encodeErr != nil {
		logger.Errorf("Unable to send error response, %s", encodeErr)
	}
}
