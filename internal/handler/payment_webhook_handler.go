package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"jobly/config"
	"jobly/internal/service"
	"jobly/pkg/razorpay"

	"github.com/gin-gonic/gin"
)

// razorpayWebhookEvent is the slice of the webhook payload this service
// reads: the event name plus payment/refund entity ids.
type razorpayWebhookEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID      string `json:"id"`
				OrderID string `json:"order_id"`
				Method  string `json:"method"`
			} `json:"entity"`
		} `json:"payment"`
		Refund struct {
			Entity struct {
				ID        string `json:"id"`
				PaymentID string `json:"payment_id"`
			} `json:"entity"`
		} `json:"refund"`
	} `json:"payload"`
}

// PaymentWebhookHandler terminates both Razorpay channels: the
// server-to-server webhook POST and the browser redirect GET. Both always
// acknowledge with HTTP 200 — rejections are flagged in the body only, so
// the gateway's retry/backoff never amplifies an application-level problem.
type PaymentWebhookHandler struct {
	recon *service.ReconService
	cfg   *config.RazorpayConfig
}

func NewPaymentWebhookHandler(recon *service.ReconService, cfg *config.RazorpayConfig) *PaymentWebhookHandler {
	return &PaymentWebhookHandler{recon: recon, cfg: cfg}
}

// HandleWebhook processes POST /payments/webhook/razorpay.
func (h *PaymentWebhookHandler) HandleWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		log.Printf("[WEBHOOK] read body: %v", err)
		c.JSON(http.StatusOK, gin.H{"status": "error"})
		return
	}
	sig := c.GetHeader("X-Razorpay-Signature")
	if !razorpay.VerifyWebhookSignature(body, sig, h.cfg.WebhookSecret) {
		log.Printf("[WEBHOOK] signature verification failed, body=%d bytes", len(body))
		c.JSON(http.StatusOK, gin.H{"status": "error"})
		return
	}
	var event razorpayWebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Printf("[WEBHOOK] json unmarshal: %v", err)
		c.JSON(http.StatusOK, gin.H{"status": "error"})
		return
	}

	orderID := event.Payload.Payment.Entity.OrderID
	paymentID := event.Payload.Payment.Entity.ID
	log.Printf("[WEBHOOK] event=%s order=%s payment=%s", event.Event, orderID, paymentID)

	switch event.Event {
	case "payment.authorized", "payment.captured":
		if orderID == "" || paymentID == "" {
			log.Printf("[WEBHOOK] %s missing order_id or payment id", event.Event)
			break
		}
		if err := h.recon.ApplyPaymentSuccess(orderID, paymentID); err != nil {
			h.logApplyError("success", orderID, err)
		}
	case "payment.failed":
		if orderID == "" {
			log.Printf("[WEBHOOK] payment.failed missing order_id")
			break
		}
		if err := h.recon.ApplyPaymentFailure(orderID, paymentID); err != nil {
			h.logApplyError("failure", orderID, err)
		}
	case "refund.created":
		refundPaymentID := event.Payload.Refund.Entity.PaymentID
		if err := h.recon.ApplyRefund(orderID, refundPaymentID); err != nil {
			h.logApplyError("refund", orderID, err)
		}
	default:
		log.Printf("[WEBHOOK] ignoring event %q", event.Event)
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// HandleCallback processes the browser redirect after payment. Razorpay
// appends razorpay_payment_id / razorpay_order_id / razorpay_signature to
// the callback URL; GET /payments/webhook/razorpay is an alias some
// payment-link configurations use for the same redirect.
func (h *PaymentWebhookHandler) HandleCallback(c *gin.Context) {
	paymentID := c.Query("razorpay_payment_id")
	orderID := c.Query("razorpay_order_id")
	sig := c.Query("razorpay_signature")
	if orderID == "" {
		// Payment-link redirects carry our own order_id query param instead.
		orderID = c.Query("order_id")
	}
	log.Printf("[CALLBACK] payment=%s order=%s", paymentID, orderID)

	if !razorpay.VerifyPaymentSignature(orderID, paymentID, sig, h.cfg.KeySecret) {
		log.Printf("[CALLBACK] signature verification failed order=%s", orderID)
		c.JSON(http.StatusOK, gin.H{"status": "error", "message": "Payment verification failed"})
		return
	}
	if err := h.recon.ApplyPaymentSuccess(orderID, paymentID); err != nil {
		h.logApplyError("callback", orderID, err)
		c.JSON(http.StatusOK, gin.H{"status": "error", "message": "Error processing payment"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "Payment processed successfully!"})
}

func (h *PaymentWebhookHandler) logApplyError(path, orderID string, err error) {
	if errors.Is(err, service.ErrOrderNotFound) {
		// May belong to another environment or test mode; an anomaly, not an
		// error for the gateway.
		log.Printf("[WEBHOOK] %s: unknown order %s", path, orderID)
		return
	}
	log.Printf("[WEBHOOK] %s: order %s: %v", path, orderID, err)
}
