package repo

import (
	"context"
	"errors"

	"github.com/AntonioCarvalhoRepo/ReservationWithDocker/internal/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GetBook retrieves a book by ID
func (s *Store) GetBook(ctx context.Context, id string) (*db.Book, error) {
	return s.getBook(s.db.WithContext(ctx), id)
}

// GetBookForUpdate retrieves a book and, on PostgreSQL, locks its row until
// the surrounding transaction ends
func (s *Store) GetBookForUpdate(ctx context.Context, id string) (*db.Book, error) {
	query := s.db.WithContext(ctx)
	if s.db.IsPostgres() {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return s.getBook(query, id)
}

func (s *Store) getBook(query *gorm.DB, id string) (*db.Book, error) {
	var book db.Book
	err := query.Where("id = ?", id).First(&book).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookNotFound
		}
		s.log.Error("Failed to get book", zap.String("book_id", id), zap.Error(err))
		return nil, err
	}

	return &book, nil
}

// DecrementBookCopies takes one copy away. The update only applies while
// copies > 0, so the count can never go negative.
func (s *Store) DecrementBookCopies(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Model(&db.Book{}).
		Where("id = ? AND copies > 0", id).
		UpdateColumn("copies", gorm.Expr("copies - 1"))
	if result.Error != nil {
		s.log.Error("Failed to decrement book copies", zap.String("book_id", id), zap.Error(result.Error))
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrNoCopiesAvailable
	}

	return nil
}

// IncrementBookCopies gives one copy back. A missing book is not an error:
// the catalog may have removed it after the reservation was made.
func (s *Store) IncrementBookCopies(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Model(&db.Book{}).
		Where("id = ?", id).
		UpdateColumn("copies", gorm.Expr("copies + 1"))
	if result.Error != nil {
		s.log.Error("Failed to increment book copies", zap.String("book_id", id), zap.Error(result.Error))
		return result.Error
	}

	if result.RowsAffected == 0 {
		s.log.Warn("Copy returned for a book that no longer exists", zap.String("book_id", id))
	}

	return nil
}

// UpsertBook creates the book, or refreshes the catalog fields of an existing
// one. The copy count is only taken from book on insert; afterwards it moves
// through DecrementBookCopies and IncrementBookCopies alone.
func (s *Store) UpsertBook(ctx context.Context, book *db.Book) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "author", "isbn"}),
	}).Create(book).Error
	if err != nil {
		s.log.Error("Failed to upsert book", zap.String("book_id", book.ID), zap.Error(err))
		return err
	}

	s.log.Info("Book upserted", zap.String("book_id", book.ID), zap.String("title", book.Title))
	return nil
}

// DeleteBook removes a book. Reservations that reference it are kept.
func (s *Store) DeleteBook(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&db.Book{})
	if result.Error != nil {
		s.log.Error("Failed to delete book", zap.String("book_id", id), zap.Error(result.Error))
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrBookNotFound
	}

	s.log.Info("Book deleted", zap.String("book_id", id))
	return nil
}
