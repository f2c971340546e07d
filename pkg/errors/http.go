package errors

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// ToHTTPStatus converts an error code to an HTTP status.
func ToHTTPStatus(code string) int {
	httpStatus, _ := GetCodeMapping(code)
	return httpStatus
}

// ErrorBody is the JSON body returned for every failed request.
type ErrorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// ToHTTPError converts an error into an echo HTTP error. Internal causes are not exposed.
func ToHTTPError(err error) *echo.HTTPError {
	if err == nil {
		return nil
	}

	if echoErr, ok := err.(*echo.HTTPError); ok {
		return echoErr
	}

	var coded Error
	if As(err, &coded) {
		status := ToHTTPStatus(coded.Code())
		msg := coded.Error()
		if status >= http.StatusInternalServerError {
			msg = http.StatusText(status)
		}
		return echo.NewHTTPError(status, ErrorBody{Error: msg, Code: coded.Code()})
	}

	return echo.NewHTTPError(http.StatusInternalServerError, ErrorBody{
		Error: http.StatusText(http.StatusInternalServerError),
		Code:  ErrInternal,
	})
}

// FromHTTPError converts an echo HTTP error into a coded error.
func FromHTTPError(err error) error {
	if err == nil {
		return nil
	}

	var coded Error
	if As(err, &coded) {
		return err
	}

	if echoErr, ok := err.(*echo.HTTPError); ok {
		code := httpStatusToCode(echoErr.Code)
		msg := "HTTP error"
		if m, ok := echoErr.Message.(string); ok {
			msg = m
		}
		return NewAppError(code, msg, nil)
	}

	return NewAppError(ErrInternal, err.Error(), err)
}

func httpStatusToCode(status int) string {
	switch status {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusBadRequest:
		return ErrInvalidArgument
	case http.StatusUnauthorized:
		return ErrUnauthenticated
	case http.StatusForbidden:
		return ErrUnauthorized
	case http.StatusConflict:
		return ErrConflict
	case http.StatusUnprocessableEntity:
		return ErrInsufficientBalance
	case http.StatusPaymentRequired:
		return ErrPaymentFailed
	case http.StatusGatewayTimeout:
		return ErrTimeout
	case http.StatusNotImplemented:
		return ErrNotImplemented
	default:
		return ErrInternal
	}
}
