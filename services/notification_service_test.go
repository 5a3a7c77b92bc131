package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/HSouheill/evently_backend/models"
)

type MockNotificationStore struct {
	mock.Mock
}

func (m *MockNotificationStore) Save(ctx context.Context, userID primitive.ObjectID, title, message, notifType string, data interface{}) error {
	args := m.Called(userID, title, notifType)
	return args.Error(0)
}

type MockRealtimeNotifier struct {
	mock.Mock
}

func (m *MockRealtimeNotifier) IsConnected(userID string) bool {
	args := m.Called(userID)
	return args.Bool(0)
}

func (m *MockRealtimeNotifier) NotifyWithdrawalUpdate(userID, message string, data interface{}) error {
	args := m.Called(userID)
	return args.Error(0)
}

func TestWithdrawalUpdatedFansOut(t *testing.T) {
	w := &models.Withdrawal{WithdrawalID: "#WITH0001", UserID: primitive.NewObjectID(), Amount: 900, Status: models.WithdrawalStatusApproved}

	store := new(MockNotificationStore)
	store.On("Save", w.UserID, "Withdrawal sent", "withdrawal_approved").Return(nil)
	realtime := new(MockRealtimeNotifier)
	realtime.On("IsConnected", w.UserID.Hex()).Return(true)
	realtime.On("NotifyWithdrawalUpdate", w.UserID.Hex()).Return(errors.New("write: broken pipe"))

	svc := NewNotificationService(store, realtime, nil)
	svc.WithdrawalUpdated(context.Background(), &models.User{ID: w.UserID}, w)

	store.AssertExpectations(t)
	realtime.AssertExpectations(t)
}

func TestWithdrawalUpdatedStoreFailureIsBestEffort(t *testing.T) {
	w := &models.Withdrawal{WithdrawalID: "#WITH0002", UserID: primitive.NewObjectID(), Status: models.WithdrawalStatusRejected}

	store := new(MockNotificationStore)
	store.On("Save", w.UserID, "Withdrawal rejected", "withdrawal_rejected").Return(errors.New("mongo down"))
	realtime := new(MockRealtimeNotifier)
	realtime.On("IsConnected", w.UserID.Hex()).Return(true)
	realtime.On("NotifyWithdrawalUpdate", w.UserID.Hex()).Return(nil)

	svc := NewNotificationService(store, realtime, nil)
	svc.WithdrawalUpdated(context.Background(), nil, w)

	realtime.AssertCalled(t, "NotifyWithdrawalUpdate", w.UserID.Hex())
}

func TestWithdrawalUpdatedSkipsOfflineUsers(t *testing.T) {
	w := &models.Withdrawal{WithdrawalID: "#WITH0003", UserID: primitive.NewObjectID(), Amount: 50, Status: models.WithdrawalStatusApproved}

	store := new(MockNotificationStore)
	store.On("Save", w.UserID, "Withdrawal sent", "withdrawal_approved").Return(nil)
	realtime := new(MockRealtimeNotifier)
	realtime.On("IsConnected", w.UserID.Hex()).Return(false)

	svc := NewNotificationService(store, realtime, nil)
	svc.WithdrawalUpdated(context.Background(), nil, w)

	store.AssertExpectations(t)
	realtime.AssertExpectations(t)
	realtime.AssertNotCalled(t, "NotifyWithdrawalUpdate", w.UserID.Hex())
}

func TestWithdrawalMessage(t *testing.T) {
	tests := map[string]string{
		models.WithdrawalStatusApproved: "withdrawal_approved",
		models.WithdrawalStatusRejected: "withdrawal_rejected",
		models.WithdrawalStatusPending:  "withdrawal_update",
	}
	for status, want := range tests {
		_, _, got := withdrawalMessage(&models.Withdrawal{WithdrawalID: "#WITH0002", Status: status})
		assert.Equal(t, want, got, status)
	}
}
