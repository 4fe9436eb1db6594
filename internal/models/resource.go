package models

import (
	"time"

	"github.com/google/uuid"
)

// ResourceCategory groups library resources.
type ResourceCategory struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// Resource is a file in the shared library stored in S3.
type Resource struct {
	ID           uuid.UUID `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	CategoryID   uuid.UUID `json:"category_id"`
	CategoryName string    `json:"category_name"`
	S3Key        string    `json:"-"`
	ContentType  string    `json:"content_type"`
	SizeBytes    int64     `json:"size_bytes"`
	UploadedBy   uuid.UUID `json:"uploaded_by"`
	DownloadURL  string    `json:"download_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// ResourceGroup is the resources of one category.
type ResourceGroup struct {
	Category  string     `json:"category"`
	Resources []Resource `json:"resources"`
}
