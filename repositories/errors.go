package repositories

import "errors"

// ErrNotFound is returned when a document does not exist
var ErrNotFound = errors.New("document not found")

// ErrStatusMismatch is returned by conditional status updates that matched no document
var ErrStatusMismatch = errors.New("withdrawal is not in the expected status")

// ErrOTPNotFound is returned when no OTP code or verified flag is stored for a key
var ErrOTPNotFound = errors.New("otp state not found")
