package razorpay

import (
	"errors"
	"strconv"
)

// Notes is the key-value bag attached to an order at creation time. The
// gateway echoes it back verbatim on webhooks, which makes it the only way
// to recover which user and plan an anonymous payment event belongs to.
// Typed here instead of a free map so schema drift fails loudly on read.
type Notes struct {
	UserID     uint
	PlanType   string
	TelegramID int64
	Email      string
}

var ErrBadNotes = errors.New("order notes missing user_id or plan_type")

func (n Notes) Validate() error {
	if n.UserID == 0 || n.PlanType == "" {
		return ErrBadNotes
	}
	return nil
}

func (n Notes) ToMap() map[string]string {
	m := map[string]string{
		"user_id":     strconv.FormatUint(uint64(n.UserID), 10),
		"plan_type":   n.PlanType,
		"telegram_id": strconv.FormatInt(n.TelegramID, 10),
	}
	if n.Email != "" {
		m["email"] = n.Email
	}
	return m
}

func NotesFromMap(m map[string]string) (Notes, error) {
	var n Notes
	if m == nil {
		return n, ErrBadNotes
	}
	userID, _ := strconv.ParseUint(m["user_id"], 10, 64)
	telegramID, _ := strconv.ParseInt(m["telegram_id"], 10, 64)
	n = Notes{
		UserID:     uint(userID),
		PlanType:   m["plan_type"],
		TelegramID: telegramID,
		Email:      m["email"],
	}
	if err := n.Validate(); err != nil {
		return Notes{}, err
	}
	return n, nil
}
