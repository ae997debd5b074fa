package api

import (
	"encoding/json"
	"net/http"
)

// Error is a generic error structure that is used to send error responses to the client.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Response is a generic response structure that is used to send responses to the client.
type Response struct {
	Status string `json:"status"`
	Data   any    `json:"data,omitempty"`
	Error  *Error `json:"error,omitempty"`
}

// Entity is the wire form of a stored entity.
type Entity struct {
	UID      string `json:"uid"`
	HashCode uint64 `json:"hash_code"`
	Payload  string `json:"payload"`
}

// SaveEntityRequest is the JSON body accepted when saving an entity.
type SaveEntityRequest struct {
	Payload *string `json:"payload"`
}

// Error message
func (e *Error) Error() string {
	return e.Message
}

// NewResponse creates an empty response
func NewResponse() *Response {
	return &Response{}
}

// Set data to response
func (rsp *Response) SetData(data any) *Response {
	rsp.Data = data
	rsp.Error = nil
	return rsp
}

// Set error to response, the first detail (if any) is attached as is
func (rsp *Response) SetError(code string, message string, details ...any) *Response {
	rsp.Data = nil
	rsp.Error = &Error{
		Code:    code,
		Message: message,
	}
	if len(details) > 0 {
		rsp.Error.Details = details[0]
	}
	return rsp
}

// Send writes the response with the given status code.
// Statuses below 400 are reported as "ok", the rest as "error" with a
// default error body when none was set.
func (rsp *Response) Send(w http.ResponseWriter, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if statusCode < http.StatusBadRequest {
		rsp.Status = "ok"
	} else {
		rsp.Status = "error"
		if rsp.Error == nil {
			rsp.Error = &Error{
				Code:    defaultErrorCode(statusCode),
				Message: http.StatusText(statusCode),
			}
		}
	}
	_ = json.NewEncoder(w).Encode(rsp)
}

// Send success response to client
func (rsp *Response) Ok(w http.ResponseWriter) {
	rsp.Send(w, http.StatusOK)
}

// Send error response to client
func (rsp *Response) BadRequest(w http.ResponseWriter) {
	rsp.Send(w, http.StatusBadRequest)
}

// Send error response to client
func (rsp *Response) Unauthorized(w http.ResponseWriter) {
	rsp.Send(w, http.StatusUnauthorized)
}

// Send error response to client
func (rsp *Response) NotFound(w http.ResponseWriter) {
	rsp.Send(w, http.StatusNotFound)
}

// Send error response to client
func (rsp *Response) RequestEntityTooLarge(w http.ResponseWriter) {
	rsp.Send(w, http.StatusRequestEntityTooLarge)
}

// Send error response to client
func (rsp *Response) UnprocessableEntity(w http.ResponseWriter) {
	rsp.Send(w, http.StatusUnprocessableEntity)
}

// Send error response to client
func (rsp *Response) InternalServerError(w http.ResponseWriter) {
	rsp.Send(w, http.StatusInternalServerError)
}

func defaultErrorCode(statusCode int) string {
	switch statusCode {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case http.StatusRequestEntityTooLarge:
		return "payload_too_large"
	case http.StatusUnprocessableEntity:
		return "unprocessable_entity"
	default:
		return "internal_server_error"
	}
}
