package http

import (
	"strconv"

	"github.com/labstack/echo/v4"

	domainErrors "github.com/wekeepgrowing/carservice-backend/internal/domain/errors"
)

// bind decodes path, query and body into req and runs the echo validator.
func bind(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return domainErrors.NewValidationError("body", "malformed request")
	}
	return c.Validate(req)
}

func paramID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, domainErrors.NewValidationError(name, "must be a positive integer")
	}
	return id, nil
}
