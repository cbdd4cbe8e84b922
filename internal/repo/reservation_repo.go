package repo

import (
	"context"
	"errors"
	"time"

	"github.com/AntonioCarvalhoRepo/ReservationWithDocker/internal/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GetReservation retrieves a reservation by ID
func (s *Store) GetReservation(ctx context.Context, id string) (*db.Reservation, error) {
	return s.getReservation(s.db.WithContext(ctx), id)
}

// GetReservationForUpdate retrieves a reservation and, on PostgreSQL, locks
// its row until the surrounding transaction ends
func (s *Store) GetReservationForUpdate(ctx context.Context, id string) (*db.Reservation, error) {
	query := s.db.WithContext(ctx)
	if s.db.IsPostgres() {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return s.getReservation(query, id)
}

func (s *Store) getReservation(query *gorm.DB, id string) (*db.Reservation, error) {
	var reservation db.Reservation
	err := query.Where("id = ?", id).First(&reservation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReservationNotFound
		}
		s.log.Error("Failed to get reservation", zap.String("reservation_id", id), zap.Error(err))
		return nil, err
	}

	return &reservation, nil
}

// ListReservationsByUser returns every reservation of a user, any status,
// oldest first
func (s *Store) ListReservationsByUser(ctx context.Context, userID string) ([]*db.Reservation, error) {
	var reservations []*db.Reservation
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created ASC").
		Find(&reservations).Error
	if err != nil {
		s.log.Error("Failed to list reservations", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}

	return reservations, nil
}

// CountActiveReservations returns how many ACTIVE reservations a user holds
func (s *Store) CountActiveReservations(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&db.Reservation{}).
		Where("user_id = ? AND status = ?", userID, db.StatusActive).
		Count(&count).Error
	if err != nil {
		s.log.Error("Failed to count active reservations", zap.String("user_id", userID), zap.Error(err))
		return 0, err
	}

	return count, nil
}

// InsertReservation creates an ACTIVE reservation stamped with the current time
func (s *Store) InsertReservation(ctx context.Context, userID, bookID string) (*db.Reservation, error) {
	reservation := &db.Reservation{
		UserID: userID,
		BookID: bookID,
		Status: db.StatusActive,
	}

	if err := s.db.WithContext(ctx).Create(reservation).Error; err != nil {
		s.log.Error("Failed to insert reservation",
			zap.String("user_id", userID),
			zap.String("book_id", bookID),
			zap.Error(err),
		)
		return nil, err
	}

	return reservation, nil
}

// UpdateReservationStatus sets the status of one reservation
func (s *Store) UpdateReservationStatus(ctx context.Context, id string, status db.ReservationStatus) error {
	result := s.db.WithContext(ctx).Model(&db.Reservation{}).
		Where("id = ?", id).
		UpdateColumn("status", status)
	if result.Error != nil {
		s.log.Error("Failed to update reservation status",
			zap.String("reservation_id", id),
			zap.String("status", status.String()),
			zap.Error(result.Error),
		)
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrReservationNotFound
	}

	return nil
}

// ExpireAllReservations marks every reservation EXPIRED, whatever its
// current status or age. It returns the number of rows written.
func (s *Store) ExpireAllReservations(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Model(&db.Reservation{}).
		UpdateColumn("status", db.StatusExpired)
	if result.Error != nil {
		s.log.Error("Failed to expire reservations", zap.Error(result.Error))
		return 0, result.Error
	}

	return result.RowsAffected, nil
}

// ExpireActiveReservationsCreatedBefore marks ACTIVE reservations created
// before cutoff as EXPIRED
func (s *Store) ExpireActiveReservationsCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Model(&db.Reservation{}).
		Where("status = ? AND created < ?", db.StatusActive, cutoff).
		UpdateColumn("status", db.StatusExpired)
	if result.Error != nil {
		s.log.Error("Failed to expire reservations", zap.Time("cutoff", cutoff), zap.Error(result.Error))
		return 0, result.Error
	}

	return result.RowsAffected, nil
}
