package httpapi

import (
	"time"

	"github.com/AntonioCarvalhoRepo/ReservationWithDocker/internal/db"
	"github.com/AntonioCarvalhoRepo/ReservationWithDocker/internal/reservation"
)

// CreateReservationRequest is the body of POST /reservation
type CreateReservationRequest struct {
	UserID string `json:"userId" binding:"required,uuid"`
	BookID string `json:"bookId" binding:"required,uuid"`
}

// BookInfo is the book block of a reservation response
type BookInfo struct {
	Title  string `json:"title,omitempty"`
	Author string `json:"author,omitempty"`
	ISBN   string `json:"isbn,omitempty"`
}

// ReservationInfo is the reservation shape returned by the read endpoints
type ReservationInfo struct {
	UserID  string               `json:"userId"`
	Book    *BookInfo            `json:"book,omitempty"`
	Created time.Time            `json:"created"`
	Status  db.ReservationStatus `json:"status"`
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Status  int    `json:"status"`
	Error   string `json:"error"`
	Message string `json:"message"`
	Path    string `json:"path"`
}

func toReservationInfo(info *reservation.Info) ReservationInfo {
	out := ReservationInfo{
		UserID:  info.UserID,
		Created: info.Created,
		Status:  info.Status,
	}
	if info.Book != nil {
		out.Book = &BookInfo{
			Title:  info.Book.Title,
			Author: info.Book.Author,
			ISBN:   info.Book.ISBN,
		}
	}
	return out
}
