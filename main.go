package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"

	"github.com/HSouheill/evently_backend/config"
	"github.com/HSouheill/evently_backend/controllers"
	"github.com/HSouheill/evently_backend/events"
	"github.com/HSouheill/evently_backend/middleware"
	"github.com/HSouheill/evently_backend/repositories"
	"github.com/HSouheill/evently_backend/routes"
	"github.com/HSouheill/evently_backend/services"
	"github.com/HSouheill/evently_backend/utils"
	"github.com/HSouheill/evently_backend/websocket"
)

func main() {
	// Load .env file
	err := godotenv.Load()
	if err != nil {
		log.Println("Warning: .env file not found")
	}

	firebaseApp := config.InitFirebase()

	client := config.ConnectDB()
	defer client.Disconnect(context.Background())

	// OTP state lives in Redis when available, MongoDB otherwise
	var otpStore services.OTPStore
	if redisClient := config.ConnectRedis(); redisClient != nil {
		otpStore = repositories.NewRedisOTPStore(redisClient)
		defer config.CloseRedis()
	} else {
		otpStore = repositories.NewMongoOTPStore(client)
	}

	publisher := events.NewPublisher(os.Getenv("AMQP_URL"))
	defer publisher.Close()

	wsHub := websocket.NewHub()
	go wsHub.Run()

	// Initialize repositories
	userRepo := repositories.NewUserRepository(client)
	withdrawalRepo := repositories.NewWithdrawalRepository(client)
	counterRepo := repositories.NewCounterRepository(client)
	notificationRepo := repositories.NewNotificationRepository(client)

	// Initialize services
	sequence := services.NewSequenceAllocator(counterRepo, withdrawalRepo)
	seedCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := sequence.Seed(seedCtx); err != nil {
		log.Fatalf("Failed to seed withdrawal sequence: %v", err)
	}
	cancel()

	notifier := services.NewNotificationService(notificationRepo, wsHub, firebaseApp)
	otpService := services.NewOTPService(userRepo, otpStore, services.NewEmailService())
	withdrawalService := services.NewWithdrawalService(withdrawalRepo, otpService, sequence, userRepo, publisher, notifier)
	payoutService := services.NewPayoutService(withdrawalRepo, userRepo, services.NewFapshiService(), publisher, notifier)

	// Initialize controllers
	withdrawalController := controllers.NewWithdrawalController(withdrawalService, payoutService)
	otpController := controllers.NewOTPController(otpService)

	e := echo.New()
	e.HideBanner = true
	e.Validator = utils.NewValidator()
	e.HTTPErrorHandler = controllers.HTTPErrorHandler

	rateLimiter := middleware.NewRateLimiter()
	stopCleanup := make(chan struct{})
	go rateLimiter.RunCleanup(time.Hour, stopCleanup)

	// Middleware
	e.Use(echoMiddleware.Logger())
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.RequestID())
	e.Use(middleware.GlobalCORS())
	e.Use(middleware.SecurityHeaders())
	e.Use(httpsRedirect())

	routes.SetupRoutes(e, wsHub, withdrawalController, otpController,
		rateLimiter.RateLimit(),
		middleware.ActivityTracker(client),
	)

	port := config.GetEnv("PORT", "8080")
	go func() {
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			e.Logger.Fatal(err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server")
	close(stopCleanup)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
}

func httpsRedirect() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Header.Get("X-Forwarded-Proto") == "http" {
				return c.Redirect(http.StatusMovedPermanently, "https://"+c.Request().Host+c.Request().RequestURI)
			}
			return next(c)
		}
	}
}
