package services

import (
	"context"
	"fmt"
	"log"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/HSouheill/evently_backend/models"
)

// NotificationStore persists in-app notifications
type NotificationStore interface {
	Save(ctx context.Context, userID primitive.ObjectID, title, message, notifType string, data interface{}) error
}

// RealtimeNotifier pushes messages to connected clients
type RealtimeNotifier interface {
	IsConnected(userID string) bool
	NotifyWithdrawalUpdate(userID, message string, data interface{}) error
}

// WithdrawalNotifier tells a user about withdrawal status changes
type WithdrawalNotifier interface {
	WithdrawalUpdated(ctx context.Context, user *models.User, w *models.Withdrawal)
}

// NotificationService fans a withdrawal update out to the in-app inbox, the
// websocket hub and Firebase Cloud Messaging. Every channel is best effort.
type NotificationService struct {
	store    NotificationStore
	realtime RealtimeNotifier
	app      *firebase.App
}

func NewNotificationService(store NotificationStore, realtime RealtimeNotifier, app *firebase.App) *NotificationService {
	return &NotificationService{store: store, realtime: realtime, app: app}
}

func withdrawalMessage(w *models.Withdrawal) (title, message, notifType string) {
	switch w.Status {
	case models.WithdrawalStatusApproved:
		return "Withdrawal sent",
			fmt.Sprintf("Your withdrawal %s of %.0f has been paid out.", w.WithdrawalID, w.Amount),
			"withdrawal_approved"
	case models.WithdrawalStatusRejected:
		return "Withdrawal rejected",
			fmt.Sprintf("Your withdrawal %s of %.0f was rejected.", w.WithdrawalID, w.Amount),
			"withdrawal_rejected"
	default:
		return "Withdrawal update",
			fmt.Sprintf("Your withdrawal %s is %s.", w.WithdrawalID, w.Status),
			"withdrawal_update"
	}
}

func (s *NotificationService) WithdrawalUpdated(ctx context.Context, user *models.User, w *models.Withdrawal) {
	title, message, notifType := withdrawalMessage(w)
	data := map[string]string{
		"withdrawalId": w.WithdrawalID,
		"status":       w.Status,
	}

	if s.store != nil {
		if err := s.store.Save(ctx, w.UserID, title, message, notifType, data); err != nil {
			log.Printf("Failed to save withdrawal notification for user %s: %v", w.UserID.Hex(), err)
		}
	}

	if s.realtime != nil && s.realtime.IsConnected(w.UserID.Hex()) {
		if err := s.realtime.NotifyWithdrawalUpdate(w.UserID.Hex(), message, data); err != nil {
			log.Printf("Failed to push withdrawal update to user %s: %v", w.UserID.Hex(), err)
		}
	}

	if user != nil && user.FCMToken != "" {
		if err := s.sendPush(ctx, user.FCMToken, title, message, notifType, data); err != nil {
			log.Printf("Error sending FCM notification to user %s: %v", user.ID.Hex(), err)
		}
	}
}

func (s *NotificationService) sendPush(ctx context.Context, token, title, message, notifType string, data map[string]string) error {
	if s.app == nil {
		return fmt.Errorf("firebase app not initialized")
	}

	client, err := s.app.Messaging(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize messaging client: %w", err)
	}

	payload := map[string]string{
		"type":      notifType,
		"timestamp": time.Now().Format(time.RFC3339),
	}
	for k, v := range data {
		payload[k] = v
	}

	_, err = client.Send(ctx, &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: title,
			Body:  message,
		},
		Data: payload,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				Sound:     "default",
				ChannelID: "evently_fcm_channel",
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Alert: &messaging.ApsAlert{
						Title: title,
						Body:  message,
					},
					Sound:    "default",
					Category: "WITHDRAWAL_UPDATE",
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to send FCM notification: %w", err)
	}
	return nil
}
