package controllers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/HSouheill/evently_backend/middleware"
	"github.com/HSouheill/evently_backend/models"
	"github.com/HSouheill/evently_backend/services"
)

// OTPController handles the withdrawal OTP flow
type OTPController struct {
	otp *services.OTPService
}

func NewOTPController(otp *services.OTPService) *OTPController {
	return &OTPController{otp: otp}
}

// isOtherUser reports whether the token belongs to someone other than userID
func isOtherUser(c echo.Context, userID string) bool {
	callerID := middleware.GetUserIDFromToken(c)
	return callerID != "" && callerID != userID
}

func forbidOtherUser(c echo.Context) error {
	return c.JSON(http.StatusForbidden, models.Response{
		Success: false,
		Message: "Cannot use the OTP flow for another user",
	})
}

// SendOTP handles POST /api/send-otp
func (oc *OTPController) SendOTP(c echo.Context) error {
	var req models.SendOTPRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Success: false,
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Success: false,
			Message: "User ID is required",
		})
	}
	if isOtherUser(c, req.UserID) {
		return forbidOtherUser(c)
	}

	if err := oc.otp.RequestOTP(c.Request().Context(), req.UserID); err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Success: true,
		Message: "OTP sent to your email",
	})
}

// VerifyOTP handles POST /api/verify-otp-code
func (oc *OTPController) VerifyOTP(c echo.Context) error {
	var req models.VerifyOTPRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Success: false,
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Success: false,
			Message: "User ID and OTP are required",
		})
	}
	if isOtherUser(c, req.UserID) {
		return forbidOtherUser(c)
	}

	if err := oc.otp.VerifyOTP(c.Request().Context(), req.UserID, req.OTP); err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Success: true,
		Message: "OTP verified successfully",
	})
}
