package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/HSouheill/evently_backend/controllers"
	"github.com/HSouheill/evently_backend/middleware"
)

// RegisterWithdrawalRoutes sets up the OTP, withdrawal and payout routes on an authenticated group
func RegisterWithdrawalRoutes(api *echo.Group, wc *controllers.WithdrawalController, oc *controllers.OTPController) {
	// OTP gate
	api.POST("/send-otp", oc.SendOTP)
	api.POST("/verify-otp-code", oc.VerifyOTP)

	// User routes
	api.POST("/withdrawals", wc.CreateWithdrawal)
	api.GET("/get-user-withdrawals", wc.GetUserWithdrawals)

	// Admin routes. Per-route middleware keeps unknown /api paths a 404 for everyone.
	adminOnly := middleware.RequireUserType("admin")
	api.GET("/get-withdrawals", wc.GetWithdrawals, adminOnly)
	api.GET("/withdrawals/:id", wc.GetWithdrawal, adminOnly)
	api.POST("/withdrawals/:id/payout", wc.PayoutWithdrawal, adminOnly)
	api.POST("/withdrawals/:id/reject", wc.RejectWithdrawal, adminOnly)
	api.POST("/withdrawals/:id/resolve", wc.ResolveWithdrawal, adminOnly)
	api.GET("/payout/balance", wc.GetPayoutBalance, adminOnly)
}
