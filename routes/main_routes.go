package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/HSouheill/evently_backend/controllers"
	"github.com/HSouheill/evently_backend/middleware"
	"github.com/HSouheill/evently_backend/websocket"
)

// SetupRoutes configures all API routes. apiMiddleware runs after JWT validation
// on every /api route.
func SetupRoutes(e *echo.Echo, hub *websocket.Hub, wc *controllers.WithdrawalController, oc *controllers.OTPController, apiMiddleware ...echo.MiddlewareFunc) {
	e.Match([]string{http.MethodGet, http.MethodHead}, "/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status": "healthy",
		})
	})

	api := e.Group("/api")
	api.Use(middleware.JWTMiddleware())
	api.Use(apiMiddleware...)

	RegisterWithdrawalRoutes(api, wc, oc)

	// Realtime withdrawal status updates; the token comes in the query string
	api.GET("/ws", func(c echo.Context) error {
		return websocket.HandleWebSocket(c, hub, middleware.GetUserIDFromToken(c))
	})
}
