package sdk

import (
	"net/http"

	"github.com/ethanbaker/api/pkg/api_types"
)

// ApiResponse is the envelope every local view API route answers with
type ApiResponse[T any] struct {
	Status  api_types.StatusType `json:"status"`          // Status message
	Code    int                  `json:"code"`            // Status code
	Message string               `json:"message"`         // Human-readable message
	Data    T                    `json:"data"`            // Data field for successful responses, null on errors
	Error   any                  `json:"error,omitempty"` // Optional errors field for error responses
}

// AsGinResponse converts the ApiResponse to a format suitable for Gin framework
func (r ApiResponse[T]) AsGinResponse() (int, any) {
	return r.Code, r
}

func NewSuccessResponse[T any](message string, data T) ApiResponse[T] {
	return ApiResponse[T]{
		Status:  api_types.StatusSuccess,
		Code:    http.StatusOK,
		Message: message,
		Data:    data,
	}
}

// NewErrorResponse builds an error envelope. A non-nil err is reported by its message
func NewErrorResponse(code int, message string, err error) ApiResponse[any] {
	res := ApiResponse[any]{
		Status:  api_types.StatusError,
		Code:    code,
		Message: message,
	}
	if err != nil {
		res.Error = err.Error()
	}
	return res
}
