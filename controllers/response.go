package controllers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/HSouheill/evently_backend/models"
	"github.com/HSouheill/evently_backend/services"
)

var statusByKind = map[services.ErrorKind]int{
	services.KindBadRequest:   http.StatusBadRequest,
	services.KindNotFound:     http.StatusNotFound,
	services.KindForbidden:    http.StatusForbidden,
	services.KindUnauthorized: http.StatusUnauthorized,
	services.KindConflict:     http.StatusConflict,
	services.KindInvalidOTP:   http.StatusUnauthorized,
	services.KindUpstream:     http.StatusInternalServerError,
	services.KindInternal:     http.StatusInternalServerError,
}

// writeError renders a service error as the standard failure envelope
func writeError(c echo.Context, err error) error {
	var se *services.Error
	if !errors.As(err, &se) {
		c.Logger().Errorf("unexpected error on %s: %v", c.Path(), err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Success: false,
			Message: "Internal server error",
		})
	}

	status := statusByKind[se.Kind]
	resp := models.Response{Success: false, Message: se.Message}

	switch se.Kind {
	case services.KindInternal:
		c.Logger().Errorf("%s on %s: %v", se.Message, c.Path(), se.Err)
	case services.KindUpstream:
		c.Logger().Warnf("%s on %s: %v", se.Message, c.Path(), se.Err)
		resp.Error = "upstream_failure"
	}

	return c.JSON(status, resp)
}

// HTTPErrorHandler keeps framework errors (404 routes, JWT failures, bind errors)
// in the same envelope as service errors.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := "Internal server error"

	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		if msg, ok := he.Message.(string); ok {
			message = msg
		} else {
			message = http.StatusText(status)
		}
	} else {
		c.Logger().Error(err)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, models.Response{Success: false, Message: message})
	}
	if err != nil {
		c.Logger().Error(err)
	}
}
