/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package bindings

import (
	"bytes"
	"encoding/json"
	"runtime"
	"strconv"
	"sync"

	"github.com/andrewwhitehead/anoncreds-rs/pkg/doc/anoncreds"
)

// lastErrors keeps the most recent failure per goroutine for GetCurrentError
// to read. A successful call clears the caller's entry.
var lastErrors sync.Map //nolint:gochecknoglobals

// remember mirrors the outcome of a boundary call into the per-goroutine
// error channel. It is deferred on the named error result of every fallible
// exported function.
func remember(err *error) {
	id := goroutineID()

	if *err == nil {
		lastErrors.Delete(id)

		return
	}

	lastErrors.Store(id, *err)
}

// goroutineID parses the numeric goroutine id from the runtime stack header
// line "goroutine 18 [running]:".
func goroutineID() uint64 {
	buf := make([]byte, 64)
	n := runtime.Stack(buf, false)

	fields := bytes.Fields(buf[:n])
	if len(fields) < 2 {
		return 0
	}

	id, err := strconv.ParseUint(string(fields[1]), 10, 64)
	if err != nil {
		return 0
	}

	return id
}

// GetCurrentError reports the failure recorded by the most recent failing
// call on the calling goroutine as a JSON document carrying the numeric
// error code and message. After a successful call, or when nothing was
// recorded, the code is 0 and the message empty.
func GetCurrentError() string {
	report := struct {
		Code    int32  `json:"code"`
		Message string `json:"message"`
	}{}

	if value, ok := lastErrors.Load(goroutineID()); ok {
		err := value.(error) //nolint:forcetypeassert // only errors are stored
		report.Code = anoncreds.KindOf(err).Code()
		report.Message = err.Error()
	}

	raw, err := json.Marshal(report)
	if err != nil {
		return `{"code":0,"message":""}`
	}

	return string(raw)
}
