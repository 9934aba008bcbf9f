package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/Domenick1991/airsettle/internal/service/settlement"
	"github.com/Domenick1991/airsettle/internal/webhook"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxWebhookBody = 1 << 20

type WebhookHandler struct {
	verifier        *webhook.Verifier
	signatureHeader string
	service         settlement.SettlementUseCase
	log             *zap.Logger
}

func NewWebhookHandler(verifier *webhook.Verifier, signatureHeader string, service settlement.SettlementUseCase, log *zap.Logger) *WebhookHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &WebhookHandler{
		verifier:        verifier,
		signatureHeader: signatureHeader,
		service:         service,
		log:             log,
	}
}

func (h *WebhookHandler) Register(router *gin.RouterGroup) {
	router.POST("/webhook", h.receive)
}

// receive answers 200 once the notification is authenticated and handled.
// A failed booking is a handled outcome, not an error.
func (h *WebhookHandler) receive(c *gin.Context) {
	signature := c.GetHeader(h.signatureHeader)
	if signature == "" {
		h.log.Warn("webhook without signature",
			zap.String("event", "webhook_signature_invalid"),
			zap.String("client_ip", c.ClientIP()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing signature"})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payload"})
		return
	}
	payload, err := webhook.Parse(body)
	if err != nil {
		h.log.Debug("webhook payload rejected", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payload"})
		return
	}

	if err := h.verifier.Verify(payload, signature); err != nil {
		h.log.Warn("webhook signature mismatch",
			zap.String("event", "webhook_signature_invalid"),
			zap.String("invoice_id", payload.Data.Invoice.ID.String()),
			zap.String("client_ip", c.ClientIP()))
		status := http.StatusUnauthorized
		if errors.Is(err, webhook.ErrMissingSignature) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": "Invalid signature"})
		return
	}

	n := payload.Notification()
	if n.InvoiceID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing Invoice.Id"})
		return
	}

	if err := h.service.HandleNotification(c.Request.Context(), n); err != nil {
		h.log.Error("webhook processing failed",
			zap.String("invoice_id", n.InvoiceID),
			zap.String("transaction_status", n.TransactionStatus),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Webhook processed"})
}
