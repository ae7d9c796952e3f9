// SPDX-License-Identifier: Apache-2.0

// Package ipc defines the JSON line protocol spoken between the wincred
// bridge and wincred-helper.exe (or its mock).
package ipc

// Actions understood by the helpers.
const (
	ActionGet    = "get"
	ActionSet    = "set"
	ActionDelete = "delete"
	ActionList   = "list"
)

// CodeNotFound is the native code a helper reports for a missing credential.
const CodeNotFound = "ERROR_NOT_FOUND"

// Request is the JSON message sent to wincred-helper.exe on stdin.
type Request struct {
	Action string `json:"action"`           // one of the Action constants
	Target string `json:"target"`           // credential target name
	Secret string `json:"secret,omitempty"` // base64-encoded secret for "set"
	Filter string `json:"filter,omitempty"` // prefix filter for "list"
}

// Response is the JSON message received from wincred-helper.exe on stdout.
type Response struct {
	OK      bool     `json:"ok"`
	Secret  string   `json:"secret,omitempty"`  // base64-encoded secret for "get"
	Targets []string `json:"targets,omitempty"` // for "list"
	Code    string   `json:"code,omitempty"`    // native error name, e.g. ERROR_NOT_FOUND
	Error   string   `json:"error,omitempty"`
}

// Fail builds an error response.
func Fail(code, msg string) Response {
	return Response{OK: false, Code: code, Error: msg}
}
