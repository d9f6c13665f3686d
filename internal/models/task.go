package models

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

// GuestUserID owns every task created without a signed-in identity.
const GuestUserID = "guest"

// MaxTitleLength is the longest accepted title, in runes.
const MaxTitleLength = 200

var (
	ErrEmptyTitle    = errors.New("title is required")
	ErrTitleTooLong  = errors.New("title is too long")
	ErrInvalidStatus = errors.New("status must be one of Pending, InProgress, Completed, Skip")
)

// Task represents a to-do item
type Task struct {
	ID          string    `firestore:"id" json:"id" gorm:"primaryKey"`
	Title       string    `firestore:"title" json:"title" gorm:"not null"`
	Description string    `firestore:"description,omitempty" json:"description,omitempty"`
	Status      Status    `firestore:"status" json:"status" gorm:"index;not null"`
	Important   bool      `firestore:"important" json:"important" gorm:"index"`
	UserID      string    `firestore:"userId" json:"userId" gorm:"index;not null"`
	CreatedAt   time.Time `firestore:"createdAt" json:"createdAt" gorm:"index"`
}

// TableName pins the table name used by the SQL repository.
func (Task) TableName() string {
	return "tasks"
}

// Draft is a task payload without the server-assigned fields.
type Draft struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Status      Status `json:"status,omitempty"`
	Important   bool   `json:"important"`
}

// Normalize trims the title, defaults the status to Pending and validates the result.
func (d Draft) Normalize() (Draft, error) {
	title, err := ValidateTitle(d.Title)
	if err != nil {
		return Draft{}, err
	}
	d.Title = title
	if d.Status == "" {
		d.Status = StatusPending
	}
	if !d.Status.Valid() {
		return Draft{}, ErrInvalidStatus
	}
	return d, nil
}

// NewTask stamps a normalized draft with an owner, id and creation time.
func (d Draft) NewTask(id, userID string, createdAt time.Time) Task {
	return Task{
		ID:          id,
		Title:       d.Title,
		Description: d.Description,
		Status:      d.Status,
		Important:   d.Important,
		UserID:      userID,
		CreatedAt:   createdAt,
	}
}

// ValidateTitle returns the trimmed title or an error when it is empty or too long.
func ValidateTitle(title string) (string, error) {
	trimmed := strings.TrimSpace(title)
	if trimmed == "" {
		return "", ErrEmptyTitle
	}
	if utf8.RuneCountInString(trimmed) > MaxTitleLength {
		return "", ErrTitleTooLong
	}
	return trimmed, nil
}
