package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"jobly/config"
	"jobly/internal/bot"
	"jobly/internal/database"
	"jobly/internal/repository"
	"jobly/internal/router"
	"jobly/internal/service"
	"jobly/internal/sweeper"
	"jobly/pkg/razorpay"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file, using environment")
	}
	cfg := config.Load()

	db, err := database.NewDB(&cfg.Database)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	database.SeedAdmin(db, &cfg.Admin)

	store := repository.NewStore(db)
	userRepo := repository.NewUserRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	gateway := razorpay.NewClient(cfg.Razorpay.KeyID, cfg.Razorpay.KeySecret)
	plans := service.NewPlanService(store)
	subs := service.NewSubscriptionService(store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var tgAPI *tgbotapi.BotAPI
	if cfg.Telegram.Token != "" {
		tgAPI, err = tgbotapi.NewBotAPI(cfg.Telegram.Token)
		if err != nil {
			log.Fatalf("telegram: %v", err)
		}
		tgAPI.Debug = cfg.Telegram.Debug
	} else {
		log.Printf("TELEGRAM_BOT_TOKEN not set, bot disabled")
	}

	var sender service.TelegramSender
	if tgAPI != nil {
		sender = tgAPI
	}
	notifier := service.NewNotificationService(notificationRepo, sender)
	recon := service.NewReconService(store, gateway, plans, subs, notifier, cfg.Razorpay.CallbackURL)

	if tgAPI != nil {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("redis: %v", err)
		}
		sessions := bot.NewSessionStore(rdb, 30*time.Minute)
		tgBot := bot.New(tgAPI, userRepo, plans, subs, recon, sessions)
		go func() {
			if err := tgBot.Run(ctx); err != nil && err != context.Canceled {
				log.Printf("bot stopped: %v", err)
			}
		}()
	}

	sweep := sweeper.New(store, notifier, cfg.Sweep.Interval, time.Duration(cfg.Sweep.LookbackHours)*time.Hour)
	go sweep.Run(ctx)

	engine := router.Setup(cfg, db, recon, subs, plans)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		log.Printf("server listening on :%s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("server shutdown:", err)
	}
	fmt.Println("server stopped")
}
