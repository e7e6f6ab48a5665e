package transport

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bookstack-dev/library-reservations/internal/entity"
	"github.com/bookstack-dev/library-reservations/internal/processor"
	"github.com/bookstack-dev/library-reservations/internal/service"
)

// ReservationHandler funnels every mutating reservation call through the
// request processor so the HTTP surface and any future callers share one
// serialized pipeline.
type ReservationHandler struct {
	processor    *processor.Processor
	reservations service.ReservationService
}

func NewReservationHandler(p *processor.Processor, reservations service.ReservationService) *ReservationHandler {
	return &ReservationHandler{processor: p, reservations: reservations}
}

type CreateReservationRequest struct {
	ResourceID string `json:"resource_id" binding:"required"`
	UserID     string `json:"user_id" binding:"required"`
}

type ExtendReservationRequest struct {
	Days int `json:"days" binding:"required"`
}

func (h *ReservationHandler) CreateReservation(c *gin.Context) {
	var req CreateReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, ok := h.await(c, processor.NewCreateRequest(req.ResourceID, req.UserID))
	if !ok {
		return
	}
	if result.Err != nil {
		respondError(c, result.Err)
		return
	}

	c.JSON(http.StatusCreated, result.Placement)
}

func (h *ReservationHandler) CancelReservation(c *gin.Context) {
	result, ok := h.await(c, processor.NewCancelRequest(c.Param("id")))
	if !ok {
		return
	}
	if result.Err != nil {
		respondError(c, result.Err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "reservation cancelled"})
}

func (h *ReservationHandler) CompleteReservation(c *gin.Context) {
	result, ok := h.await(c, processor.NewCompleteRequest(c.Param("id")))
	if !ok {
		return
	}
	if result.Err != nil {
		respondError(c, result.Err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "reservation completed"})
}

func (h *ReservationHandler) ExtendReservation(c *gin.Context) {
	var req ExtendReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, ok := h.await(c, processor.NewExtendRequest(c.Param("id"), req.Days))
	if !ok {
		return
	}
	if result.Err != nil {
		respondError(c, result.Err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "reservation extended"})
}

func (h *ReservationHandler) GetReservation(c *gin.Context) {
	reservation, err := h.reservations.GetReservation(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, reservation)
}

func (h *ReservationHandler) GetActiveReservations(c *gin.Context) {
	c.JSON(http.StatusOK, h.reservations.ListActive())
}

func (h *ReservationHandler) GetUserReservations(c *gin.Context) {
	userID := c.Param("user_id")

	c.JSON(http.StatusOK, gin.H{
		"reservations": h.reservations.ListActiveByUser(userID),
		"active_count": h.reservations.CountActiveByUser(userID),
	})
}

// await submits the request and blocks until a worker answers or the
// request context gives up. It writes the error response itself when the
// caller should not continue.
func (h *ReservationHandler) await(c *gin.Context, req processor.Request) (processor.Result, bool) {
	if !h.processor.Submit(req) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": entity.ErrProcessorStopped.Error()})
		return processor.Result{}, false
	}

	select {
	case result := <-req.Result:
		return result, true
	case <-c.Request.Context().Done():
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "request timed out"})
		return processor.Result{}, false
	}
}

// respondError maps the service error taxonomy onto HTTP status codes.
func respondError(c *gin.Context, err error) {
	status := http.StatusBadRequest

	switch {
	case errors.Is(err, entity.ErrResourceNotFound),
		errors.Is(err, entity.ErrUserNotFound),
		errors.Is(err, entity.ErrReservationNotFound),
		errors.Is(err, entity.ErrLoanNotFound):
		status = http.StatusNotFound
	case errors.Is(err, entity.ErrReservationLimit),
		errors.Is(err, entity.ErrReservationTerminal),
		errors.Is(err, entity.ErrResourceUnavailable),
		errors.Is(err, entity.ErrLoanNotActive),
		errors.Is(err, entity.ErrRenewalRejected):
		status = http.StatusConflict
	case errors.Is(err, entity.ErrProcessorStopped),
		errors.Is(err, entity.ErrDispatcherStopped):
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{"error": err.Error()})
}
