package domain

const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// Payment statuses. A payments row tracks the Razorpay order from creation
// to its terminal outcome; captured, failed and refunded are terminal.
const (
	PaymentStatusCreated    = "created"
	PaymentStatusAuthorized = "authorized"
	PaymentStatusCaptured   = "captured"
	PaymentStatusFailed     = "failed"
	PaymentStatusRefunded   = "refunded"
)

// PaymentStatusTerminal reports whether no further transition is allowed.
func PaymentStatusTerminal(status string) bool {
	switch status {
	case PaymentStatusCaptured, PaymentStatusFailed, PaymentStatusRefunded:
		return true
	}
	return false
}

const (
	NotifPaymentSuccess = "PAYMENT_SUCCESS"
	NotifPaymentFailed  = "PAYMENT_FAILED"
	NotifExpiryReminder = "EXPIRY_REMINDER"
	NotifExpired        = "SUBSCRIPTION_EXPIRED"
	NotifRefund         = "PAYMENT_REFUNDED"
)

const (
	PlanBasic        = "basic"
	PlanPremium      = "premium"
	PlanProfessional = "professional"
)
