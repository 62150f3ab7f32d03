package controller

import (
	"net/http"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/rakhadian/banking-ledger/internal/apperr"
)

var validate = validator.New()

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// decodeAndValidate parses the JSON body into dst and checks its validate
// tags. A false return means the error response has already been written.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := render.DecodeJSON(r.Body, dst); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errorResponse{Code: "invalid_request", Message: "invalid request format"})
		return false
	}

	if err := validate.Struct(dst); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errorResponse{Code: "validation_failed", Message: err.Error()})
		return false
	}

	return true
}

// writeError renders a failure as its stable code and message. Anything
// outside the taxonomy becomes an opaque 500 so internals never leak.
func writeError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	if ae := apperr.From(err); ae != nil {
		render.Status(r, ae.HTTPStatus())
		render.JSON(w, r, errorResponse{Code: ae.Code, Message: ae.Message})
		return
	}

	logger.Error("Unhandled error",
		zap.String("path", r.URL.Path),
		zap.Error(err))
	render.Status(r, http.StatusInternalServerError)
	render.JSON(w, r, errorResponse{Code: "internal_error", Message: "internal server error"})
}
