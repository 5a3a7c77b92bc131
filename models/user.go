// models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User model
type User struct {
	ID             primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	Email          string             `json:"email" bson:"email"`
	Password       string             `json:"-" bson:"password"`
	FullName       string             `json:"fullName" bson:"fullName"`
	UserType       string             `json:"userType" bson:"userType"` // "user", "organizer", "admin"
	IsActive       bool               `json:"isActive" bson:"isActive"`
	Phone          string             `json:"phone,omitempty" bson:"phone,omitempty"`
	FCMToken       string             `json:"fcmToken,omitempty" bson:"fcmToken,omitempty"`
	LastActivityAt time.Time          `json:"lastActivityAt" bson:"lastActivityAt"`
	CreatedAt      time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt      time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// Response is the envelope every endpoint answers with
type Response struct {
	Success      bool        `json:"success"`
	Message      string      `json:"message"`
	Error        string      `json:"error,omitempty"`
	WithdrawalID string      `json:"withdrawalId,omitempty"`
	Data         interface{} `json:"data,omitempty"`
}
