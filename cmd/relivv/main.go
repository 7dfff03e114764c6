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

	"relivv/internal/config"
	"relivv/internal/database"
	"relivv/internal/handler"
	"relivv/internal/metrics"
	"relivv/internal/mw"
	"relivv/internal/service"
	"relivv/internal/worker"
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

	catalog, err := config.LoadCatalog(cfg.CatalogFile)
	if err != nil {
		slog.Error("failed to load catalog", "error", err)
		os.Exit(1)
	}

	// The broker is optional; without AMQP_URL order events are dropped.
	var events *service.EventPublisher
	if cfg.AMQPURL != "" {
		events, err = service.NewEventPublisher(cfg.AMQPURL)
		if err != nil {
			slog.Error("failed to connect to RabbitMQ", "error", err)
			os.Exit(1)
		}
		defer events.Close()
	}

	// Services
	gateway := service.NewStripeClient(cfg.StripeAPIKey, cfg.StripeWebhookSecret)
	mailer := service.NewEmailService(db, cfg.SendGridAPIKey, cfg.SenderEmail, cfg.FrontendURL)
	notifySvc := service.NewNotificationService(db)
	authSvc := service.NewAuthService(db)
	productSvc := service.NewProductService(db, catalog)
	cartSvc := service.NewCartService(db)
	wishlistSvc := service.NewWishlistService(db)
	invoiceSvc := service.NewInvoiceService(db)
	reviewSvc := service.NewReviewService(db, notifySvc)
	messageSvc := service.NewMessageService(db, notifySvc)
	txSvc := service.NewTransactionService(db, gateway, invoiceSvc, mailer, events, notifySvc, cfg.FrontendURL)

	// Workers
	escrowWorker := worker.NewEscrowWorker(txSvc)
	cartReminder := worker.NewCartReminder(cartSvc, authSvc, mailer)

	authLimiter := mw.NewRateLimiter(5, 10)

	// Router
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Stripe-Signature"},
		ExposedHeaders:   []string{"Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/api/health", handler.HealthHandler(db))
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	// Public routes
	r.Group(func(r chi.Router) {
		r.Use(authLimiter.Handler)
		r.Post("/api/auth/register", handler.RegisterHandler(authSvc, mailer, cfg.JWTSecret))
		r.Post("/api/auth/login", handler.LoginHandler(authSvc, cfg.JWTSecret))
	})

	r.Get("/api/products", handler.ListProductsHandler(productSvc))
	r.Get("/api/products/featured", handler.FeaturedProductsHandler(productSvc))
	r.Get("/api/products/trending", handler.TrendingProductsHandler(productSvc))
	r.Get("/api/products/{productID}", handler.GetProductHandler(productSvc))
	r.Get("/api/products/{productID}/reviews", handler.ListReviewsHandler(reviewSvc))
	r.Get("/api/products/{productID}/rating", handler.ProductRatingHandler(reviewSvc))
	r.Get("/api/categories", handler.CategoriesHandler(productSvc))
	r.Get("/api/users/{userID}/profile", handler.PublicProfileHandler(authSvc))
	r.Get("/api/users/{userID}/products", handler.SellerProductsHandler(productSvc))

	r.Post("/api/payments/webhook", handler.StripeWebhookHandler(txSvc))

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(mw.AuthMiddleware(cfg.JWTSecret))

		r.Get("/api/auth/me", handler.MeHandler(authSvc))
		r.Put("/api/auth/profile", handler.UpdateProfileHandler(authSvc))

		r.Post("/api/products", handler.CreateProductHandler(productSvc))
		r.Get("/api/my/products", handler.MyProductsHandler(productSvc))
		r.Delete("/api/products/{productID}", handler.DeleteProductHandler(productSvc))
		r.Post("/api/products/{productID}/reviews", handler.CreateReviewHandler(reviewSvc))

		r.Get("/api/cart", handler.GetCartHandler(cartSvc))
		r.Post("/api/cart/{productID}", handler.AddToCartHandler(cartSvc))
		r.Delete("/api/cart/{productID}", handler.RemoveFromCartHandler(cartSvc))
		r.Delete("/api/cart", handler.ClearCartHandler(cartSvc))

		r.Get("/api/wishlist", handler.ListWishlistHandler(wishlistSvc))
		r.Post("/api/wishlist/{productID}", handler.AddToWishlistHandler(wishlistSvc))
		r.Delete("/api/wishlist/{productID}", handler.RemoveFromWishlistHandler(wishlistSvc))
		r.Get("/api/wishlist/{productID}/contains", handler.WishlistContainsHandler(wishlistSvc))

		r.Post("/api/payments/checkout", handler.CreateCheckoutHandler(txSvc))
		r.Post("/api/payments/cart-checkout", handler.CreateCartCheckoutHandler(txSvc))
		r.Get("/api/payments/status/{sessionID}", handler.CheckoutStatusHandler(txSvc))

		r.Get("/api/transactions", handler.ListTransactionsHandler(txSvc))
		r.Get("/api/transactions/history", handler.TransactionHistoryHandler(txSvc))
		r.Post("/api/transactions/{transactionID}/confirm-delivery", handler.ConfirmDeliveryHandler(txSvc))
		r.Post("/api/transactions/{transactionID}/release", handler.ReleaseFundsHandler(txSvc))
		r.Post("/api/transactions/{transactionID}/cancel", handler.CancelTransactionHandler(txSvc))

		r.Post("/api/conversations", handler.StartConversationHandler(messageSvc))
		r.Get("/api/conversations", handler.ListConversationsHandler(messageSvc))
		r.Get("/api/conversations/{conversationID}/messages", handler.GetMessagesHandler(messageSvc))
		r.Post("/api/conversations/{conversationID}/messages", handler.SendMessageHandler(messageSvc))
		r.Post("/api/conversations/{conversationID}/read", handler.MarkConversationReadHandler(messageSvc))
		r.Post("/api/conversations/{conversationID}/typing", handler.SetTypingHandler(messageSvc))

		r.Get("/api/notifications", handler.ListNotificationsHandler(notifySvc))
		r.Get("/api/notifications/unread-count", handler.UnreadNotificationsHandler(notifySvc))
		r.Post("/api/notifications/{notificationID}/read", handler.MarkNotificationReadHandler(notifySvc))
		r.Post("/api/notifications/read-all", handler.MarkAllNotificationsReadHandler(notifySvc))
		r.Delete("/api/notifications/{notificationID}", handler.DeleteNotificationHandler(notifySvc))
		r.Get("/api/notifications/preferences", handler.GetNotificationPreferencesHandler(notifySvc))
		r.Put("/api/notifications/preferences", handler.UpdateNotificationPreferencesHandler(notifySvc))

		r.Get("/api/invoices", handler.ListInvoicesHandler(invoiceSvc))
		r.Get("/api/invoices/{invoiceID}", handler.GetInvoiceHandler(invoiceSvc, authSvc))
		r.Get("/api/invoices/{invoiceID}/pdf", handler.DownloadInvoicePDFHandler(invoiceSvc, authSvc))
	})

	srv := &http.Server{
		Addr:         cfg.RunAddress,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	go escrowWorker.Start(ctx)
	if err := cartReminder.Start(); err != nil {
		slog.Error("failed to start cart reminder", "error", err)
		os.Exit(1)
	}

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

	cancel() // stop workers
	cartReminder.Stop()
	authLimiter.Stop()
	ctxShut, cancelShut := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShut()

	if err := srv.Shutdown(ctxShut); err != nil {
		slog.Error("server shutdown failed", "error", err)
	}

	slog.Info("server stopped")
}
