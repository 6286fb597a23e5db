package graph

import "fmt"

// TransportError means the data service could not be reached or answered
// outside the protocol: connection failure, non-2xx status, unreadable body.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "graph: transport: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// MalformedResponseError means the service answered but the body did not have
// the expected structure. Decode mismatches in the repository layer use it
// too, so a missing field fails loudly instead of defaulting.
type MalformedResponseError struct {
	Reason string
	Err    error
}

func (e *MalformedResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("graph: malformed response: %s: %v", e.Reason, e.Err)
	}
	return "graph: malformed response: " + e.Reason
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}

// ErrorLocation points at the offending position in the submitted operation.
type ErrorLocation struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// ResponseError is one entry of the top-level errors list the service may
// return. Path elements are strings or integers per the wire format.
type ResponseError struct {
	Message   string          `json:"message"`
	Locations []ErrorLocation `json:"locations,omitempty"`
	Path      []any           `json:"path,omitempty"`
}

// SemanticError means the service accepted the request at the transport level
// but rejected it logically. The first reported error is surfaced directly;
// All keeps the complete list for diagnostics.
type SemanticError struct {
	Message   string
	Locations []ErrorLocation
	Path      []any
	All       []ResponseError
}

func (e *SemanticError) Error() string {
	if e.Message == "" {
		return "graph: request rejected"
	}
	return "graph: " + e.Message
}
