package reservation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/AntonioCarvalhoRepo/ReservationWithDocker/internal/db"
	"github.com/AntonioCarvalhoRepo/ReservationWithDocker/internal/metrics"
	"github.com/AntonioCarvalhoRepo/ReservationWithDocker/internal/repo"
	"go.uber.org/zap"
)

const publishTimeout = 10 * time.Second

// EventPublisher receives reservation lifecycle events after commit
type EventPublisher interface {
	PublishReservationCreated(ctx context.Context, r *db.Reservation) error
	PublishReservationCanceled(ctx context.Context, r *db.Reservation, previous db.ReservationStatus) error
}

// Policy holds the tunable business rules
type Policy struct {
	// MaxActivePerUser caps simultaneous ACTIVE reservations per user
	MaxActivePerUser int

	// RejectTerminalCancel refuses to cancel CANCELED or EXPIRED
	// reservations instead of returning another copy to the shelf
	RejectTerminalCancel bool
}

// DefaultPolicy allows three active reservations and cancels unconditionally
func DefaultPolicy() Policy {
	return Policy{MaxActivePerUser: 3}
}

// BookInfo is the denormalized book data shown with a reservation
type BookInfo struct {
	Title  string
	Author string
	ISBN   string
}

// Info is a reservation joined with its book
type Info struct {
	ID      string
	UserID  string
	BookID  string
	Book    *BookInfo
	Created time.Time
	Status  db.ReservationStatus
}

// Service applies the reservation rules on top of the storage gateway
type Service struct {
	store     *repo.Store
	publisher EventPublisher
	metrics   *metrics.Metrics
	policy    Policy
	log       *zap.Logger

	wg sync.WaitGroup
}

// NewService creates a new reservation service
func NewService(store *repo.Store, publisher EventPublisher, m *metrics.Metrics, policy Policy, log *zap.Logger) *Service {
	if policy.MaxActivePerUser <= 0 {
		policy.MaxActivePerUser = DefaultPolicy().MaxActivePerUser
	}
	return &Service{
		store:     store,
		publisher: publisher,
		metrics:   m,
		policy:    policy,
		log:       log,
	}
}

// CreateReservation reserves one copy of bookID for userID and returns the
// new reservation ID. Checks run in order: book exists, a copy is left, the
// user is under the cap. Nothing is written unless all of them pass.
func (s *Service) CreateReservation(ctx context.Context, userID, bookID string) (string, error) {
	defer s.metrics.Observe("create", time.Now())

	var created *db.Reservation
	err := s.store.Transaction(ctx, func(tx *repo.Store) error {
		book, err := tx.GetBookForUpdate(ctx, bookID)
		if err != nil {
			if errors.Is(err, repo.ErrBookNotFound) {
				return notFound(metrics.ReasonBookNotFound, MsgBookNotFound)
			}
			return err
		}

		if book.Copies <= 0 {
			return invalid(metrics.ReasonNoCopies, MsgNoCopies)
		}

		if err := tx.LockUser(ctx, userID); err != nil {
			return err
		}

		active, err := tx.CountActiveReservations(ctx, userID)
		if err != nil {
			return err
		}
		if active >= int64(s.policy.MaxActivePerUser) {
			return invalid(metrics.ReasonLimitReached, limitExceeded(userID))
		}

		if err := tx.DecrementBookCopies(ctx, bookID); err != nil {
			if errors.Is(err, repo.ErrNoCopiesAvailable) {
				return invalid(metrics.ReasonNoCopies, MsgNoCopies)
			}
			return err
		}

		created, err = tx.InsertReservation(ctx, userID, bookID)
		return err
	})
	if err != nil {
		s.rejected(err)
		return "", err
	}

	if s.metrics != nil {
		s.metrics.CreatedTotal.Inc()
	}
	s.log.Info("Reservation created",
		zap.String("reservation_id", created.ID),
		zap.String("user_id", userID),
		zap.String("book_id", bookID),
	)

	s.publish(ctx, "created", created.ID, func(ctx context.Context) error {
		return s.publisher.PublishReservationCreated(ctx, created)
	})

	return created.ID, nil
}

// GetReservationByID returns a reservation with its book details
func (s *Service) GetReservationByID(ctx context.Context, id string) (*Info, error) {
	defer s.metrics.Observe("get", time.Now())

	reservation, err := s.store.GetReservation(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrReservationNotFound) {
			return nil, notFound(metrics.ReasonNotFound, MsgReservationNotFound)
		}
		return nil, err
	}

	book, err := s.store.GetBook(ctx, reservation.BookID)
	if err != nil {
		if errors.Is(err, repo.ErrBookNotFound) {
			return nil, notFound(metrics.ReasonBookNotFound, MsgBookNotFound)
		}
		return nil, err
	}

	return toInfo(reservation, book), nil
}

// ListReservationsByUser returns every reservation of a user, any status.
// A user without reservations is reported as not found. Reservations whose
// book was removed from the catalog are listed without book details.
func (s *Service) ListReservationsByUser(ctx context.Context, userID string) ([]*Info, error) {
	defer s.metrics.Observe("list", time.Now())

	reservations, err := s.store.ListReservationsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(reservations) == 0 {
		return nil, notFound(metrics.ReasonNotFound, MsgReservationsNotFound)
	}

	books := make(map[string]*db.Book)
	infos := make([]*Info, 0, len(reservations))
	for _, reservation := range reservations {
		book, seen := books[reservation.BookID]
		if !seen {
			book, err = s.store.GetBook(ctx, reservation.BookID)
			if err != nil && !errors.Is(err, repo.ErrBookNotFound) {
				return nil, err
			}
			books[reservation.BookID] = book
		}
		infos = append(infos, toInfo(reservation, book))
	}

	return infos, nil
}

// CancelReservation moves a reservation to CANCELED and returns its copy.
// requested must be CANCELED; it is the only transition clients may ask for.
func (s *Service) CancelReservation(ctx context.Context, id string, requested db.ReservationStatus) error {
	defer s.metrics.Observe("cancel", time.Now())

	var (
		reservation *db.Reservation
		previous    db.ReservationStatus
	)
	err := s.store.Transaction(ctx, func(tx *repo.Store) error {
		var err error
		reservation, err = tx.GetReservationForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, repo.ErrReservationNotFound) {
				return notFound(metrics.ReasonNotFound, MsgReservationNotFound)
			}
			return err
		}

		if requested != db.StatusCanceled {
			return invalid(metrics.ReasonBadStatus, MsgInvalidStatus)
		}

		previous = reservation.Status
		if s.policy.RejectTerminalCancel && previous.IsTerminal() {
			return invalid(metrics.ReasonTerminal, fmt.Sprintf("Reservation is already %s.", previous))
		}

		if err := tx.UpdateReservationStatus(ctx, id, db.StatusCanceled); err != nil {
			return err
		}

		return tx.IncrementBookCopies(ctx, reservation.BookID)
	})
	if err != nil {
		s.rejected(err)
		return err
	}

	reservation.Status = db.StatusCanceled
	if s.metrics != nil {
		s.metrics.CanceledTotal.Inc()
	}
	s.log.Info("Reservation canceled",
		zap.String("reservation_id", id),
		zap.String("previous_status", previous.String()),
		zap.String("book_id", reservation.BookID),
	)

	s.publish(ctx, "canceled", id, func(ctx context.Context) error {
		return s.publisher.PublishReservationCanceled(ctx, reservation, previous)
	})

	return nil
}

// Wait blocks until in-flight event publications finish
func (s *Service) Wait() {
	s.wg.Wait()
}

// publish sends an event in the background so a broker outage never fails
// a committed operation
func (s *Service) publish(ctx context.Context, what, reservationID string, send func(context.Context) error) {
	if s.publisher == nil {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		eventCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
		defer cancel()

		if err := send(eventCtx); err != nil {
			s.log.Error("Failed to publish reservation event",
				zap.String("event", what),
				zap.String("reservation_id", reservationID),
				zap.Error(err),
			)
		}
	}()
}

func (s *Service) rejected(err error) {
	var rule *Error
	if errors.As(err, &rule) {
		s.metrics.Reject(rule.reason)
		return
	}
	s.log.Error("Reservation operation failed", zap.Error(err))
}

func toInfo(reservation *db.Reservation, book *db.Book) *Info {
	info := &Info{
		ID:      reservation.ID,
		UserID:  reservation.UserID,
		BookID:  reservation.BookID,
		Created: reservation.Created,
		Status:  reservation.Status,
	}
	if book != nil {
		info.Book = &BookInfo{
			Title:  book.Title,
			Author: book.Author,
			ISBN:   book.ISBN,
		}
	}
	return info
}
