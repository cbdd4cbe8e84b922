package repo

import (
	"context"
	"errors"

	"github.com/AntonioCarvalhoRepo/ReservationWithDocker/internal/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrBookNotFound is returned when a book is not found
	ErrBookNotFound = errors.New("book not found")

	// ErrNoCopiesAvailable is returned when a decrement finds no copy left
	ErrNoCopiesAvailable = errors.New("no copies available")

	// ErrReservationNotFound is returned when a reservation is not found
	ErrReservationNotFound = errors.New("reservation not found")
)

// Store is the storage gateway over the books and reservations tables.
// Inside Transaction every call goes through the same transaction.
type Store struct {
	db  *db.DB
	log *zap.Logger
}

// NewStore creates a new storage gateway
func NewStore(database *db.DB, logger *zap.Logger) *Store {
	return &Store{
		db:  database,
		log: logger,
	}
}

// Transaction runs fn inside a single database transaction. The transaction
// is rolled back when fn returns an error.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: &db.DB{DB: tx}, log: s.log})
	})
}

// LockUser serializes quota checks for one user until the surrounding
// transaction ends. SQLite already serializes writers, so it is a no-op there.
func (s *Store) LockUser(ctx context.Context, userID string) error {
	if !s.db.IsPostgres() {
		return nil
	}
	return s.db.WithContext(ctx).Exec("SELECT pg_advisory_xact_lock(hashtext(?))", userID).Error
}

// Stats holds row counts used for metrics and diagnostics
type Stats struct {
	Books        int64
	Reservations map[db.ReservationStatus]int64
}

// Stats returns the number of books and reservations per status
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{Reservations: make(map[db.ReservationStatus]int64)}

	if err := s.db.WithContext(ctx).Model(&db.Book{}).Count(&stats.Books).Error; err != nil {
		return nil, err
	}

	var rows []struct {
		Status db.ReservationStatus
		Total  int64
	}
	err := s.db.WithContext(ctx).Model(&db.Reservation{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		stats.Reservations[row.Status] = row.Total
	}

	return stats, nil
}
