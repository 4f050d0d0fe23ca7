package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"jobly/internal/models"
	"jobly/internal/repository"
	"jobly/internal/service"
	"jobly/pkg/razorpay"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Bot drives the Telegram conversation: plan menu, email capture, checkout
// and payment polling. Payment confirmation itself happens in the
// reconciliation engine; the bot only creates checkouts and asks about them.
type Bot struct {
	api   *tgbotapi.BotAPI
	users *repository.UserRepository
	plans *service.PlanService
	subs  *service.SubscriptionService
	recon *service.ReconService
	state *SessionStore
}

func New(api *tgbotapi.BotAPI, users *repository.UserRepository, plans *service.PlanService, subs *service.SubscriptionService, recon *service.ReconService, state *SessionStore) *Bot {
	return &Bot{api: api, users: users, plans: plans, subs: subs, recon: recon, state: state}
}

// Run long-polls for updates until the context is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	log.Printf("[BOT] started as @%s", b.api.Self.UserName)

	for {
		select {
		case update := <-updates:
			if update.Message != nil {
				b.handleMessage(ctx, update.Message)
			} else if update.CallbackQuery != nil {
				b.handleCallback(ctx, update.CallbackQuery)
			}
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}

	session := b.state.Get(ctx, msg.Chat.ID)
	switch session.State {
	case StateAwaitingEmail:
		b.handleEmail(ctx, msg, session)
	default:
		b.sendText(msg.Chat.ID, "Use /plans to see subscription plans or /status to check your subscription.")
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start":
		user, err := b.ensureUser(msg)
		if err != nil {
			log.Printf("[BOT] ensure user chat=%d: %v", msg.Chat.ID, err)
			b.sendText(msg.Chat.ID, "Something went wrong, please try again.")
			return
		}
		_ = b.state.Clear(ctx, msg.Chat.ID)
		text := fmt.Sprintf(
			"👋 Hi %s!\n\nI send personalized job updates straight to your Telegram. Pick a plan to get started.\n\nCommands:\n/plans — view subscription plans\n/status — check your subscription\n/help — how this works",
			user.DisplayName(),
		)
		reply := tgbotapi.NewMessage(msg.Chat.ID, text)
		reply.ReplyMarkup = b.planKeyboard()
		b.send(reply)
	case "plans":
		reply := tgbotapi.NewMessage(msg.Chat.ID, b.planListText())
		reply.ParseMode = tgbotapi.ModeMarkdown
		reply.ReplyMarkup = b.planKeyboard()
		b.send(reply)
	case "status":
		b.handleStatus(msg)
	case "help":
		b.sendText(msg.Chat.ID, "1. Pick a plan with /plans\n2. Pay through the secure Razorpay link\n3. Your subscription activates automatically after payment\n\nUse /status anytime to check days remaining.")
	default:
		b.sendText(msg.Chat.ID, "Unknown command. Try /plans, /status or /help.")
	}
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	// Answer first so the client stops its spinner even if we fail later.
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		log.Printf("[BOT] answer callback: %v", err)
	}
	if cb.Message == nil {
		return
	}
	chatID := cb.Message.Chat.ID

	switch {
	case strings.HasPrefix(cb.Data, "plan:"):
		b.handlePlanChosen(ctx, cb, strings.TrimPrefix(cb.Data, "plan:"))
	case strings.HasPrefix(cb.Data, "check:"):
		b.handleCheckPayment(ctx, chatID, strings.TrimPrefix(cb.Data, "check:"))
	default:
		log.Printf("[BOT] unknown callback data %q", cb.Data)
	}
}

func (b *Bot) handlePlanChosen(ctx context.Context, cb *tgbotapi.CallbackQuery, planKey string) {
	chatID := cb.Message.Chat.ID
	if _, ok := b.plans.Definition(planKey); !ok {
		b.sendText(chatID, "That plan is no longer available. Use /plans to see current plans.")
		return
	}
	user, err := b.users.GetByTelegramID(chatID)
	if err != nil {
		log.Printf("[BOT] lookup user chat=%d: %v", chatID, err)
		b.sendText(chatID, "Please send /start first.")
		return
	}
	if user.Email == "" {
		if err := b.state.Set(ctx, chatID, &Session{State: StateAwaitingEmail, PlanKey: planKey}); err != nil {
			log.Printf("[BOT] save session chat=%d: %v", chatID, err)
		}
		b.sendText(chatID, "📧 Please send your email address. It is used for the payment receipt.")
		return
	}
	b.startCheckout(ctx, chatID, user, planKey, user.Email)
}

func (b *Bot) handleEmail(ctx context.Context, msg *tgbotapi.Message, session *Session) {
	email := strings.TrimSpace(msg.Text)
	if !looksLikeEmail(email) {
		b.sendText(msg.Chat.ID, "That doesn't look like an email address. Please try again.")
		return
	}
	user, err := b.users.GetByTelegramID(msg.Chat.ID)
	if err != nil {
		log.Printf("[BOT] lookup user chat=%d: %v", msg.Chat.ID, err)
		b.sendText(msg.Chat.ID, "Please send /start first.")
		return
	}
	user.Email = email
	if err := b.users.Update(user); err != nil {
		log.Printf("[BOT] save email user=%d: %v", user.ID, err)
	}
	_ = b.state.Clear(ctx, msg.Chat.ID)
	b.startCheckout(ctx, msg.Chat.ID, user, session.PlanKey, email)
}

func (b *Bot) startCheckout(ctx context.Context, chatID int64, user *models.User, planKey, email string) {
	checkout, err := b.recon.CreateCheckout(ctx, user, planKey, email)
	if err != nil {
		log.Printf("[BOT] create checkout user=%d plan=%s: %v", user.ID, planKey, err)
		if errors.Is(err, razorpay.ErrGatewayUnavailable) {
			b.sendText(chatID, "⚠️ The payment service is temporarily unavailable. Please try again in a few minutes.")
		} else {
			b.sendText(chatID, "Could not create your payment link, please try again.")
		}
		return
	}
	if err := b.state.Set(ctx, chatID, &Session{OrderID: checkout.OrderID, PlanKey: planKey}); err != nil {
		log.Printf("[BOT] save session chat=%d: %v", chatID, err)
	}

	text := fmt.Sprintf(
		"💳 *%s Plan* — ₹%.2f for %d days\n\nTap the button below to pay securely via Razorpay. Once you've paid, tap \"I've paid\" and I'll confirm your subscription.",
		checkout.PlanDef.Name, float64(checkout.Amount)/100, checkout.PlanDef.DurationDays,
	)
	reply := tgbotapi.NewMessage(chatID, text)
	reply.ParseMode = tgbotapi.ModeMarkdown
	reply.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL("💳 Pay now", checkout.PayURL),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ I've paid", "check:"+checkout.OrderID),
		),
	)
	b.send(reply)
}

func (b *Bot) handleCheckPayment(ctx context.Context, chatID int64, orderID string) {
	res, err := b.recon.CheckOrder(ctx, orderID)
	if err != nil {
		log.Printf("[BOT] check order=%s chat=%d: %v", orderID, chatID, err)
		if errors.Is(err, razorpay.ErrGatewayUnavailable) {
			b.sendText(chatID, "⚠️ Could not reach the payment service to verify. Your money is safe; please tap \"I've paid\" again in a minute.")
		} else {
			b.sendText(chatID, "Could not verify the payment right now, please try again shortly.")
		}
		return
	}
	if !res.Paid {
		b.sendText(chatID, "⏳ Payment not confirmed yet. If you've just paid, give it a moment and tap \"I've paid\" again.")
		return
	}
	_ = b.state.Clear(ctx, chatID)
	// The capture path already pushed the "payment successful" message, so
	// only log here instead of messaging twice.
	log.Printf("[BOT] order %s confirmed for chat=%d", orderID, chatID)
}

func (b *Bot) handleStatus(msg *tgbotapi.Message) {
	user, err := b.users.GetByTelegramID(msg.Chat.ID)
	if err != nil {
		b.sendText(msg.Chat.ID, "I don't know you yet. Send /start to begin.")
		return
	}
	sub, err := b.subs.CurrentFor(user.ID)
	if err != nil {
		log.Printf("[BOT] status user=%d: %v", user.ID, err)
		b.sendText(msg.Chat.ID, "Could not look up your subscription, please try again.")
		return
	}
	if sub == nil {
		reply := tgbotapi.NewMessage(msg.Chat.ID, "You have no active subscription. Pick a plan to start receiving job updates:")
		reply.ReplyMarkup = b.planKeyboard()
		b.send(reply)
		return
	}
	text := fmt.Sprintf(
		"📋 *Your Subscription*\n\nPlan: %s\nActive until: %s\nDays remaining: %d",
		sub.Plan.Name, sub.EndDate.Format("02 Jan 2006"), sub.DaysRemaining(time.Now()),
	)
	reply := tgbotapi.NewMessage(msg.Chat.ID, text)
	reply.ParseMode = tgbotapi.ModeMarkdown
	b.send(reply)
}

func (b *Bot) ensureUser(msg *tgbotapi.Message) (*models.User, error) {
	var username, firstName, lastName string
	if msg.From != nil {
		username = msg.From.UserName
		firstName = msg.From.FirstName
		lastName = msg.From.LastName
	}
	return b.users.UpsertFromTelegram(msg.Chat.ID, username, firstName, lastName)
}

func (b *Bot) planKeyboard() tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, 3)
	for _, def := range b.plans.Definitions() {
		label := fmt.Sprintf("%s — ₹%.0f / %d days", def.Name, float64(def.Price)/100, def.DurationDays)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, "plan:"+def.Key),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func (b *Bot) planListText() string {
	var sb strings.Builder
	sb.WriteString("📦 *Subscription Plans*\n")
	for _, def := range b.plans.Definitions() {
		sb.WriteString(fmt.Sprintf("\n*%s* — ₹%.0f for %d days\n%s\n", def.Name, float64(def.Price)/100, def.DurationDays, def.Description))
	}
	return sb.String()
}

func (b *Bot) sendText(chatID int64, text string) {
	b.send(tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) send(c tgbotapi.Chattable) {
	if _, err := b.api.Send(c); err != nil {
		log.Printf("[BOT] send: %v", err)
	}
}

func looksLikeEmail(s string) bool {
	at := strings.Index(s, "@")
	if at <= 0 || at == len(s)-1 {
		return false
	}
	if strings.ContainsAny(s, " \t\n") {
		return false
	}
	return strings.Contains(s[at+1:], ".")
}
