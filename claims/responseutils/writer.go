package responseutils

import (
	"net/http"

	"github.com/go-chi/render"
)

// Payload is the uniform response envelope: callers never need to distinguish
// "empty" from "errored" except via the success flag and optional message.
type Payload struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
	Message string      `json:"message,omitempty"`
}

func WriteSuccess(w http.ResponseWriter, r *http.Request, data interface{}) {
	render.Status(r, http.StatusOK)
	render.JSON(w, r, Payload{Success: true, Data: data})
}

func WriteError(w http.ResponseWriter, r *http.Request, statusCode int, message string) {
	render.Status(r, statusCode)
	render.JSON(w, r, Payload{Success: false, Data: nil, Message: message})
}
