package models

import (
	"time"

	"github.com/google/uuid"
)

// DeliveryStatus is the outcome of posting to one destination.
type DeliveryStatus string

const (
	DeliverySuccess DeliveryStatus = "success"
	DeliveryFailed  DeliveryStatus = "failed"
)

// Delivery records a single destination outcome of a publish batch.
type Delivery struct {
	ID             uuid.UUID      `json:"id"`
	UserID         uuid.UUID      `json:"user_id"`
	PageID         string         `json:"page_id"`
	PageName       string         `json:"page_name"`
	Status         DeliveryStatus `json:"status"`
	ExternalPostID *string        `json:"external_post_id"`
	ErrorMessage   *string        `json:"error_message"`
	Message        string         `json:"message"`
	CreatedAt      time.Time      `json:"created_at"`
}
