package transport

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bookstack-dev/library-reservations/internal/service"
)

type LoanHandler struct {
	loans service.LoanService
}

func NewLoanHandler(loans service.LoanService) *LoanHandler {
	return &LoanHandler{loans: loans}
}

type BorrowRequest struct {
	ResourceID string `json:"resource_id" binding:"required"`
	UserID     string `json:"user_id" binding:"required"`
}

func (h *LoanHandler) Borrow(c *gin.Context) {
	var req BorrowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	loan, err := h.loans.Borrow(c.Request.Context(), req.ResourceID, req.UserID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, loan)
}

func (h *LoanHandler) GetLoan(c *gin.Context) {
	loan, err := h.loans.GetLoan(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, loan)
}

func (h *LoanHandler) Return(c *gin.Context) {
	if err := h.loans.Return(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "loan returned"})
}

func (h *LoanHandler) Renew(c *gin.Context) {
	loan, err := h.loans.Renew(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, loan)
}

func (h *LoanHandler) GetActiveLoans(c *gin.Context) {
	loans, err := h.loans.ListActive(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, loans)
}

func (h *LoanHandler) GetOverdueLoans(c *gin.Context) {
	loans, err := h.loans.ListOverdue(c.Request.Context(), time.Now())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, loans)
}

func (h *LoanHandler) GetUserLoans(c *gin.Context) {
	loans, err := h.loans.ListActiveByUser(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, loans)
}
