package db

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ReservationStatus is the lifecycle state of a reservation, stored by name
type ReservationStatus string

const (
	StatusActive   ReservationStatus = "ACTIVE"
	StatusCanceled ReservationStatus = "CANCELED"
	StatusExpired  ReservationStatus = "EXPIRED"
)

// ParseReservationStatus maps a symbolic name onto a status
func ParseReservationStatus(s string) (ReservationStatus, error) {
	switch ReservationStatus(s) {
	case StatusActive, StatusCanceled, StatusExpired:
		return ReservationStatus(s), nil
	}
	return "", fmt.Errorf("unknown reservation status %q", s)
}

// IsTerminal reports whether no further transition can leave this status
func (s ReservationStatus) IsTerminal() bool {
	return s == StatusCanceled || s == StatusExpired
}

func (s ReservationStatus) String() string {
	return string(s)
}

// Book is a reservable title. Copies counts the units still available.
type Book struct {
	ID     string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Title  string `gorm:"type:varchar(255);not null" json:"title"`
	Author string `gorm:"type:varchar(255);not null" json:"author"`
	ISBN   string `gorm:"column:isbn;type:varchar(32)" json:"isbn"`
	Copies int64  `gorm:"not null;default:0;check:chk_books_copies,copies >= 0" json:"copies"`
}

// TableName specifies the table name for Book model
func (Book) TableName() string {
	return "books"
}

// Reservation is a user's claim on one copy of a book
type Reservation struct {
	ID      string            `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID  string            `gorm:"column:user_id;type:varchar(36);not null;index:idx_reservations_user_status,priority:1" json:"user_id"`
	BookID  string            `gorm:"column:book_id;type:varchar(36);not null;index:idx_reservations_book" json:"book_id"`
	Created time.Time         `gorm:"column:created;not null;index:idx_reservations_created" json:"created"`
	Status  ReservationStatus `gorm:"type:varchar(16);not null;default:'ACTIVE';index:idx_reservations_user_status,priority:2" json:"status"`
}

// TableName specifies the table name for Reservation model
func (Reservation) TableName() string {
	return "reservations"
}

// BeforeCreate assigns the identifier, creation time and initial status
func (r *Reservation) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Created.IsZero() {
		r.Created = time.Now().UTC()
	}
	if r.Status == "" {
		r.Status = StatusActive
	}
	return nil
}
