package controllers

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/HSouheill/evently_backend/middleware"
	"github.com/HSouheill/evently_backend/models"
	"github.com/HSouheill/evently_backend/services"
	"github.com/HSouheill/evently_backend/utils"
)

// WithdrawalController exposes the withdrawal ledger, payouts and listings
type WithdrawalController struct {
	withdrawals *services.WithdrawalService
	payouts     *services.PayoutService
}

func NewWithdrawalController(withdrawals *services.WithdrawalService, payouts *services.PayoutService) *WithdrawalController {
	return &WithdrawalController{withdrawals: withdrawals, payouts: payouts}
}

// CreateWithdrawal handles POST /api/withdrawals
func (wc *WithdrawalController) CreateWithdrawal(c echo.Context) error {
	callerID := middleware.GetUserIDFromToken(c)
	if callerID == "" {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Success: false,
			Message: "Authentication required",
		})
	}

	var req models.CreateWithdrawalRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Success: false,
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Success: false,
			Message: "Missing or invalid required fields",
			Error:   strings.Join(utils.ValidationFields(err), ", "),
		})
	}

	withdrawalID, err := wc.withdrawals.CreateWithdrawal(c.Request().Context(), callerID, req)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusCreated, models.Response{
		Success:      true,
		Message:      "Withdrawal request created successfully",
		WithdrawalID: withdrawalID,
	})
}

// GetWithdrawals handles GET /api/get-withdrawals (admin)
func (wc *WithdrawalController) GetWithdrawals(c echo.Context) error {
	views, err := wc.withdrawals.ListAll(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, models.Response{
		Success: true,
		Message: "Withdrawals retrieved successfully",
		Data:    views,
	})
}

// GetUserWithdrawals handles GET /api/get-user-withdrawals
func (wc *WithdrawalController) GetUserWithdrawals(c echo.Context) error {
	views, err := wc.withdrawals.ListForUser(c.Request().Context(), middleware.GetUserIDFromToken(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, models.Response{
		Success: true,
		Message: "Withdrawals retrieved successfully",
		Data:    views,
	})
}

// GetWithdrawal handles GET /api/withdrawals/:id (admin)
func (wc *WithdrawalController) GetWithdrawal(c echo.Context) error {
	view, err := wc.withdrawals.GetWithdrawal(c.Request().Context(), models.NormalizeWithdrawalID(c.Param("id")))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, models.Response{
		Success: true,
		Message: "Withdrawal retrieved successfully",
		Data:    view,
	})
}

// PayoutWithdrawal handles POST /api/withdrawals/:id/payout (admin)
func (wc *WithdrawalController) PayoutWithdrawal(c echo.Context) error {
	withdrawalID := models.NormalizeWithdrawalID(c.Param("id"))
	c.Logger().Infof("Payout requested for %s by %s", withdrawalID, middleware.GetUserIDFromToken(c))

	resp, err := wc.payouts.Payout(c.Request().Context(), withdrawalID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, models.Response{
		Success: true,
		Message: "Payout initiated successfully",
		Data:    resp,
	})
}

// RejectWithdrawal handles POST /api/withdrawals/:id/reject (admin)
func (wc *WithdrawalController) RejectWithdrawal(c echo.Context) error {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Success: false,
			Message: "Invalid request body",
		})
	}

	view, err := wc.withdrawals.RejectWithdrawal(c.Request().Context(), models.NormalizeWithdrawalID(c.Param("id")), req.Reason)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, models.Response{
		Success: true,
		Message: "Withdrawal rejected",
		Data:    view,
	})
}

// ResolveWithdrawal handles POST /api/withdrawals/:id/resolve (admin).
// Without a transId the withdrawal goes back to pending.
func (wc *WithdrawalController) ResolveWithdrawal(c echo.Context) error {
	var req struct {
		TransID string `json:"transId"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Success: false,
			Message: "Invalid request body",
		})
	}

	withdrawalID := models.NormalizeWithdrawalID(c.Param("id"))
	c.Logger().Infof("Resolve requested for %s by %s", withdrawalID, middleware.GetUserIDFromToken(c))

	view, err := wc.payouts.ResolveProcessing(c.Request().Context(), withdrawalID, req.TransID)
	if err != nil {
		return writeError(c, err)
	}
	message := "Withdrawal released for payout"
	if view.Status == models.WithdrawalStatusApproved {
		message = "Withdrawal marked as paid"
	}
	return c.JSON(http.StatusOK, models.Response{
		Success: true,
		Message: message,
		Data:    view,
	})
}

// GetPayoutBalance handles GET /api/payout/balance (admin)
func (wc *WithdrawalController) GetPayoutBalance(c echo.Context) error {
	balance, err := wc.payouts.Balance(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, models.Response{
		Success: true,
		Message: "Balance retrieved successfully",
		Data:    map[string]float64{"balance": balance},
	})
}
