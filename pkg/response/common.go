package response

import "github.com/beanbocchi/cumulus/internal/model"

type CommonResponse struct {
	Data  any          `json:"data,omitempty"`
	Error *model.Error `json:"error"`
}

type MessageResponse struct {
	Message string `json:"message"`
}
