package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"smmpanel/internal/config"
	"smmpanel/internal/database"
	"smmpanel/internal/handler"
	"smmpanel/internal/mw"
	"smmpanel/internal/notify"
	"smmpanel/internal/provider"
	"smmpanel/internal/service"
	"smmpanel/internal/storage"
	"smmpanel/internal/worker"
)

func main() {
	cfg := config.New()

	db, err := database.NewDB(cfg.DatabaseURI)
	if err != nil {
		slog.Error("failed to connect to DB", "error", err)
		os.Exit(1)
	}
	defer database.CloseDB(context.Background(), db)

	if err := database.InitSchema(db); err != nil {
		slog.Error("failed to init DB schema", "error", err)
		os.Exit(1)
	}

	// Stores
	users := storage.NewUsers(db)
	orders := storage.NewOrders(db)
	rules := storage.NewRules(db)
	notifications := storage.NewNotifications(db)
	notifiedSet := storage.NewNotifiedSet(db, "completed_orders:v1")

	// Provider
	client := provider.NewClient(cfg.ProviderAPIURL, provider.StaticKey(cfg.ProviderAPIKey))

	// Services
	authSvc := service.NewAuthService(users)
	balanceSvc := service.NewBalanceService(users)
	ruleSvc := service.NewRuleService(rules)
	catalog := service.NewCatalog(client)
	submitter := service.NewSubmitter(catalog, ruleSvc, client, orders, balanceSvc, notifications)

	// Worker
	notifier := notify.NewCompletionNotifier(notifiedSet, notifications)
	reconciler := worker.NewReconciler(orders, client, notifier)

	// Router
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Public routes
	r.Post("/api/user/register", handler.RegisterHandler(authSvc, cfg.JWTSecret))
	r.Post("/api/user/login", handler.LoginHandler(authSvc, cfg.JWTSecret))

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(mw.AuthMiddleware(cfg.JWTSecret))

		r.Get("/api/services", handler.ListServicesHandler(catalog))

		r.Post("/api/orders", handler.CreateOrderHandler(submitter))
		r.Post("/api/orders/batch", handler.BatchOrderHandler(submitter))
		r.Get("/api/orders", handler.ListOrdersHandler(orders))

		r.Get("/api/user/balance", handler.GetBalanceHandler(balanceSvc))
		r.Post("/api/user/balance/credit", handler.CreditBalanceHandler(balanceSvc))

		r.Get("/api/notifications", handler.ListNotificationsHandler(notifications))

		// Admin routes
		r.Group(func(r chi.Router) {
			r.Use(mw.AdminMiddleware(users))

			r.Get("/api/provider/balance", handler.ProviderBalanceHandler(client))
			r.Post("/api/admin/rules", handler.CreateRuleHandler(ruleSvc))
			r.Get("/api/admin/rules", handler.ListRulesHandler(ruleSvc))
			r.Patch("/api/admin/rules/{id}", handler.SetRuleActiveHandler(ruleSvc))
		})
	})

	srv := &http.Server{
		Addr:         cfg.RunAddress,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second, // batch submission is serial and slow
	}

	ctx, cancel := context.WithCancel(context.Background())
	reconcilerDone := make(chan struct{})
	go func() {
		defer close(reconcilerDone)
		reconciler.Start(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	slog.Info("starting server", "addr", cfg.RunAddress)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
		}
	}()

	<-quit
	slog.Info("shutting down...")

	cancel() // stop reconciler
	ctxShut, cancelShut := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShut()

	if err := srv.Shutdown(ctxShut); err != nil {
		slog.Error("server shutdown failed", "error", err)
	}

	// An in-flight reconciliation pass finishes before the process exits.
	<-reconcilerDone

	slog.Info("server stopped")
}
