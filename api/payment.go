package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/Domenick1991/airsettle/internal/apperr"
	"github.com/Domenick1991/airsettle/internal/domain"
	"github.com/Domenick1991/airsettle/internal/service/payment"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type PaymentHandler struct {
	service payment.PaymentUseCase
	log     *zap.Logger
}

type paymentStatusRequest struct {
	Key     string         `json:"key"`
	KeyType domain.KeyType `json:"keyType"`
}

type bookingStatusRequest struct {
	PaymentID string `json:"paymentId"`
}

type updatePaymentRequest struct {
	Key     string         `json:"Key"`
	KeyType domain.KeyType `json:"KeyType"`
	Amount  float64        `json:"Amount"`
}

type initiateSessionResponse struct {
	Data   json.RawMessage `json:"data"`
	Status int             `json:"status"`
}

func NewPaymentHandler(service payment.PaymentUseCase, log *zap.Logger) *PaymentHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &PaymentHandler{service: service, log: log}
}

func (h *PaymentHandler) Register(router *gin.RouterGroup) {
	router.POST("/initiate-session", h.initiateSession)
	router.POST("/execute", h.execute)
	router.POST("/status", h.paymentStatus)
	router.POST("/booking-status", h.bookingStatus)
	router.POST("/capture", h.capture)
	router.POST("/release", h.release)
}

func (h *PaymentHandler) initiateSession(c *gin.Context) {
	res, err := h.service.InitiateSession(c.Request.Context())
	if err != nil {
		writeError(c, h.log, err, "InitiateSession failed")
		return
	}
	c.JSON(http.StatusOK, initiateSessionResponse{Data: res.Body, Status: res.StatusCode})
}

func (h *PaymentHandler) execute(c *gin.Context) {
	var req payment.ExecutePaymentInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
		return
	}

	res, err := h.service.ExecutePayment(c.Request.Context(), req)
	if err != nil {
		if apperr.HTTPStatus(err) == http.StatusBadRequest {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
			return
		}
		writeError(c, h.log, err, "ExecutePayment failed")
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *PaymentHandler) paymentStatus(c *gin.Context) {
	var req paymentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, h.log, fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err), "GetPaymentStatus failed")
		return
	}

	raw, err := h.service.PaymentStatus(c.Request.Context(), domain.PaymentKey{Key: req.Key, KeyType: req.KeyType})
	if err != nil {
		writeError(c, h.log, err, "GetPaymentStatus failed")
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", raw)
}

func (h *PaymentHandler) bookingStatus(c *gin.Context) {
	var req bookingStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, h.log, fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err), "Server error")
		return
	}

	res, err := h.service.BookingStatus(c.Request.Context(), req.PaymentID)
	if err != nil {
		writeError(c, h.log, err, "Server error")
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *PaymentHandler) capture(c *gin.Context) {
	h.update(c, "captureAuthorizedPayment failed", h.service.Capture)
}

func (h *PaymentHandler) release(c *gin.Context) {
	h.update(c, "releaseAuthorizedPayment failed", h.service.Release)
}

func (h *PaymentHandler) update(c *gin.Context, failure string, op func(ctx context.Context, key domain.PaymentKey, amount float64) (json.RawMessage, error)) {
	var req updatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, h.log, fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err), failure)
		return
	}

	raw, err := op(c.Request.Context(), domain.PaymentKey{Key: req.Key, KeyType: req.KeyType}, req.Amount)
	if err != nil {
		writeError(c, h.log, err, failure)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", raw)
}
