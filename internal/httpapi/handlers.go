package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/AntonioCarvalhoRepo/ReservationWithDocker/internal/db"
	"github.com/AntonioCarvalhoRepo/ReservationWithDocker/internal/events"
	"github.com/AntonioCarvalhoRepo/ReservationWithDocker/internal/reservation"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const requestIDHeader = "X-Request-ID"

// Pinger reports database reachability
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler serves the reservation HTTP API
type Handler struct {
	svc    *reservation.Service
	db     Pinger
	gather prometheus.Gatherer
	log    *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(svc *reservation.Service, database Pinger, gatherer prometheus.Gatherer, log *zap.Logger) *Handler {
	return &Handler{
		svc:    svc,
		db:     database,
		gather: gatherer,
		log:    log,
	}
}

// Router builds the gin engine with every route registered
func (h *Handler) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestID(), LoggingMiddleware(h.log))

	router.GET("/healthz", h.health)
	if h.gather != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.gather, promhttp.HandlerOpts{})))
	}

	reservations := router.Group("/reservation")
	{
		reservations.POST("", h.createReservation)
		reservations.GET("/:reservationId", h.getReservation)
		reservations.GET("/users/:userId", h.listUserReservations)
		reservations.PATCH("/:reservationId/:status", h.cancelReservation)
	}

	return router
}

func (h *Handler) createReservation(c *gin.Context) {
	var req CreateReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	id, err := h.svc.CreateReservation(c.Request.Context(), req.UserID, req.BookID)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, id)
}

func (h *Handler) getReservation(c *gin.Context) {
	id, ok := pathUUID(c, "reservationId")
	if !ok {
		return
	}

	info, err := h.svc.GetReservationByID(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, toReservationInfo(info))
}

func (h *Handler) listUserReservations(c *gin.Context) {
	userID, ok := pathUUID(c, "userId")
	if !ok {
		return
	}

	infos, err := h.svc.ListReservationsByUser(c.Request.Context(), userID)
	if err != nil {
		h.handleError(c, err)
		return
	}

	out := make([]ReservationInfo, len(infos))
	for i, info := range infos {
		out[i] = toReservationInfo(info)
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) cancelReservation(c *gin.Context) {
	id, ok := pathUUID(c, "reservationId")
	if !ok {
		return
	}

	status, err := db.ParseReservationStatus(c.Param("status"))
	if err != nil {
		writeError(c, http.StatusBadRequest, "Invalid status: "+c.Param("status"))
		return
	}

	if err := h.svc.CancelReservation(c.Request.Context(), id, status); err != nil {
		h.handleError(c, err)
		return
	}

	c.Status(http.StatusOK)
}

func (h *Handler) health(c *gin.Context) {
	if err := h.db.Ping(c.Request.Context()); err != nil {
		h.log.Error("Database health check failed", zap.Error(err))
		c.String(http.StatusServiceUnavailable, "unhealthy: database connection failed")
		return
	}
	c.String(http.StatusOK, "healthy")
}

// handleError maps rule violations to client errors. Anything else is a
// store failure and is reported as a generic 500.
func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, reservation.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, reservation.ErrInvalidRequest):
		writeError(c, http.StatusBadRequest, err.Error())
	default:
		h.log.Error("Request failed",
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
		writeError(c, http.StatusInternalServerError, "Internal server error")
	}
}

func pathUUID(c *gin.Context, name string) (string, bool) {
	raw := c.Param(name)
	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(c, http.StatusBadRequest, "Invalid "+name+": "+raw)
		return "", false
	}
	return id.String(), true
}

func writeError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, ErrorResponse{
		Status:  status,
		Error:   http.StatusText(status),
		Message: msg,
		Path:    c.Request.URL.Path,
	})
}

// RequestID propagates or assigns X-Request-ID and carries it as the
// correlation ID of events published while serving the request
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader(requestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Header(requestIDHeader, reqID)
		c.Request = c.Request.WithContext(events.WithCorrelationID(c.Request.Context(), reqID))
		c.Next()
	}
}

// LoggingMiddleware logs every HTTP request
func LoggingMiddleware(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("request_id", events.CorrelationID(c.Request.Context())),
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			log.Error("HTTP request failed", fields...)
			return
		}
		log.Info("HTTP request completed", fields...)
	}
}
