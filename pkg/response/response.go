package response

import (
	"net/http"

	"github.com/bytedance/sonic"

	"github.com/beanbocchi/cumulus/internal/model"
)

// write serializes a CommonResponse. Every non-streaming response closes the
// connection, matching the gateway's operational behavior.
func write(w http.ResponseWriter, status int, body CommonResponse) error {
	encoded, err := sonic.Marshal(body)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Connection", "close")
	w.WriteHeader(status)
	_, err = w.Write(encoded)
	return err
}

// FromDTO writes a successful data response.
func FromDTO(w http.ResponseWriter, status int, data any) error {
	return write(w, status, CommonResponse{Data: data})
}

// FromMessage writes a plain informational message.
func FromMessage(w http.ResponseWriter, status int, message string) error {
	return write(w, status, CommonResponse{Data: MessageResponse{Message: message}})
}

// FromError writes an error response. Non-model errors are flattened into a
// generic internal error shape.
func FromError(w http.ResponseWriter, status int, err error) error {
	var modelErr model.Error
	if e, ok := err.(model.Error); ok {
		modelErr = e
	} else {
		modelErr = model.NewError(model.KindInternal, "internal", err.Error())
	}
	return write(w, status, CommonResponse{Error: &modelErr})
}
