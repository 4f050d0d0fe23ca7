package service

import (
	"encoding/json"
	"fmt"
	"log"

	"jobly/internal/domain"
	"jobly/internal/models"
	"jobly/internal/repository"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Notifier is what the reconciliation engine and the sweeps call on state
// transitions. Every call is fire-and-forget for the caller: errors are
// logged, never allowed to block or roll back a transition.
type Notifier interface {
	NotifyPaymentSuccess(telegramID int64, userID uint, subscriptionID uint, planName string, durationDays int) error
	NotifyPaymentFailure(telegramID int64, userID uint, orderID string) error
	NotifyExpiryReminder(telegramID int64, userID uint, daysLeft int, subscriptionID uint) error
	NotifyExpired(telegramID int64, userID uint, subscriptionID uint) error
	NotifyRefund(telegramID int64, userID uint, paymentID uint) error
}

// TelegramSender is the slice of *tgbotapi.BotAPI the service needs; tests
// substitute a recorder.
type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// NotificationService persists a notifications row and pushes the message to
// the user over Telegram. A nil sender disables the push but keeps the row.
type NotificationService struct {
	repo *repository.NotificationRepository
	tg   TelegramSender
}

func NewNotificationService(repo *repository.NotificationRepository, tg TelegramSender) *NotificationService {
	return &NotificationService{repo: repo, tg: tg}
}

func (s *NotificationService) notify(telegramID int64, userID uint, notifType, title, body string, data map[string]interface{}) error {
	var dataJSON string
	if data != nil {
		b, _ := json.Marshal(data)
		dataJSON = string(b)
	}
	if s.repo != nil && userID != 0 {
		if err := s.repo.Create(&models.Notification{
			UserID: userID,
			Type:   notifType,
			Title:  title,
			Body:   body,
			Data:   dataJSON,
		}); err != nil {
			log.Printf("[NOTIFY] save notification type=%s user=%d: %v", notifType, userID, err)
		}
	}
	if s.tg == nil || telegramID == 0 {
		return nil
	}
	msg := tgbotapi.NewMessage(telegramID, body)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := s.tg.Send(msg); err != nil {
		log.Printf("[NOTIFY] telegram send type=%s chat=%d: %v", notifType, telegramID, err)
		return err
	}
	return nil
}

func (s *NotificationService) NotifyPaymentSuccess(telegramID int64, userID uint, subscriptionID uint, planName string, durationDays int) error {
	body := fmt.Sprintf(
		"🎉 *Payment Successful!*\n\nThank you for subscribing to the %s plan.\nYour subscription is active for %d days.\n\nNext step: upload your resume to start receiving personalized job updates.",
		planName, durationDays,
	)
	return s.notify(telegramID, userID, domain.NotifPaymentSuccess, "Payment successful", body,
		map[string]interface{}{"subscription_id": subscriptionID})
}

func (s *NotificationService) NotifyPaymentFailure(telegramID int64, userID uint, orderID string) error {
	body := "❌ *Payment Failed*\n\nYour payment was not successful. This could be due to insufficient funds, a declined card, or a connection issue.\n\nYou can try again from the subscription menu."
	return s.notify(telegramID, userID, domain.NotifPaymentFailed, "Payment failed", body,
		map[string]interface{}{"order_id": orderID})
}

func (s *NotificationService) NotifyExpiryReminder(telegramID int64, userID uint, daysLeft int, subscriptionID uint) error {
	day := "days"
	if daysLeft == 1 {
		day = "day"
	}
	body := fmt.Sprintf(
		"⏰ *Subscription Reminder*\n\nYour subscription expires in %d %s. Renew now to keep receiving job updates without interruption.",
		daysLeft, day,
	)
	return s.notify(telegramID, userID, domain.NotifExpiryReminder, "Subscription expiring", body,
		map[string]interface{}{"subscription_id": subscriptionID, "days_left": daysLeft})
}

func (s *NotificationService) NotifyExpired(telegramID int64, userID uint, subscriptionID uint) error {
	body := "⌛ *Subscription Expired*\n\nYour subscription has ended. Choose a plan from the menu to renew and keep receiving job updates."
	return s.notify(telegramID, userID, domain.NotifExpired, "Subscription expired", body,
		map[string]interface{}{"subscription_id": subscriptionID})
}

func (s *NotificationService) NotifyRefund(telegramID int64, userID uint, paymentID uint) error {
	body := "💸 *Payment Refunded*\n\nYour payment has been refunded and the linked subscription was deactivated. Contact support if this is unexpected."
	return s.notify(telegramID, userID, domain.NotifRefund, "Payment refunded", body,
		map[string]interface{}{"payment_id": paymentID})
}
