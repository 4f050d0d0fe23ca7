package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"jobly/internal/repository"
	"jobly/internal/service"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// AdminHandler serves the dashboard: per-user subscription status, expiring
// list, payment stats and trial grants.
type AdminHandler struct {
	subs        *service.SubscriptionService
	plans       *service.PlanService
	userRepo    *repository.UserRepository
	paymentRepo *repository.PaymentRepository
	subRepo     *repository.SubscriptionRepository
	planRepo    *repository.PlanRepository
	notifRepo   *repository.NotificationRepository
}

func NewAdminHandler(subs *service.SubscriptionService, plans *service.PlanService, userRepo *repository.UserRepository, paymentRepo *repository.PaymentRepository, subRepo *repository.SubscriptionRepository, planRepo *repository.PlanRepository, notifRepo *repository.NotificationRepository) *AdminHandler {
	return &AdminHandler{subs: subs, plans: plans, userRepo: userRepo, paymentRepo: paymentRepo, subRepo: subRepo, planRepo: planRepo, notifRepo: notifRepo}
}

// GetUserSubscription returns a user's current subscription plus history.
func (h *AdminHandler) GetUserSubscription(c *gin.Context) {
	userID, err := strconv.ParseUint(c.Param("user_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	if _, err := h.userRepo.GetByID(uint(userID)); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	now := time.Now()
	current, err := h.subRepo.CurrentFor(uint(userID), now)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	history, err := h.subRepo.ListByUser(uint(userID))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	payments, err := h.paymentRepo.ListByUser(uint(userID))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	resp := gin.H{"current": nil, "history": history, "payments": payments}
	if current != nil {
		resp["current"] = gin.H{
			"subscription":   current,
			"days_remaining": current.DaysRemaining(now),
		}
	}
	c.JSON(http.StatusOK, resp)
}

// ListExpiring returns active subscriptions expiring within ?days (default
// 7).
func (h *AdminHandler) ListExpiring(c *gin.Context) {
	days := 7
	if v := c.Query("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid days"})
			return
		}
		days = n
	}
	subs, err := h.subRepo.ListExpiringWithin(time.Now(), days)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(subs), "subscriptions": subs})
}

// ListPlans returns the active plan catalog ordered by price.
func (h *AdminHandler) ListPlans(c *gin.Context) {
	plans, err := h.planRepo.ListActive()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"plans": plans})
}

// ListUserNotifications returns the most recent notifications sent to a
// user; handy when support needs to see what the bot actually delivered.
func (h *AdminHandler) ListUserNotifications(c *gin.Context) {
	userID, err := strconv.ParseUint(c.Param("user_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	limit := 50
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	notifs, err := h.notifRepo.ListByUser(uint(userID), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": notifs})
}

type grantTrialRequest struct {
	Plan string `json:"plan" binding:"required"`
	Days int    `json:"days"`
}

// GrantTrial starts a free trial of a plan for a user. Days defaults to the
// plan duration. 409 when the user already has a current subscription.
func (h *AdminHandler) GrantTrial(c *gin.Context) {
	userID, err := strconv.ParseUint(c.Param("user_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	if _, err := h.userRepo.GetByID(uint(userID)); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	var req grantTrialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "plan is required"})
		return
	}
	plan, err := h.plans.Resolve(req.Plan)
	if err != nil {
		if errors.Is(err, service.ErrUnknownPlan) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown plan"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "plan lookup failed"})
		return
	}
	sub, err := h.subs.StartTrial(uint(userID), plan, req.Days)
	if err != nil {
		if errors.Is(err, service.ErrTrialNotAllowed) {
			c.JSON(http.StatusConflict, gin.H{"error": "user already has a current subscription"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "trial failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"subscription": sub})
}

// PaymentStats returns captured payment counts and amounts for all time,
// the last 30 days and the last 7 days. Amounts convert from paise to
// rupees.
func (h *AdminHandler) PaymentStats(c *gin.Context) {
	now := time.Now()
	totalCount, totalAmount, err := h.paymentRepo.CapturedStatsSince(time.Time{})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "stats failed"})
		return
	}
	monthCount, monthAmount, err := h.paymentRepo.CapturedStatsSince(now.AddDate(0, 0, -30))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "stats failed"})
		return
	}
	weekCount, weekAmount, err := h.paymentRepo.CapturedStatsSince(now.AddDate(0, 0, -7))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "stats failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"total_payments": totalCount,
		"total_amount":   float64(totalAmount) / 100,
		"month_payments": monthCount,
		"month_amount":   float64(monthAmount) / 100,
		"week_payments":  weekCount,
		"week_amount":    float64(weekAmount) / 100,
		"currency":       "INR",
	})
}
