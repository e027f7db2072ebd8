package main

import (
	"database/sql"
	"log"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/stockyardhq/stockyard-backend/internal/modules/auth"
	"github.com/stockyardhq/stockyard-backend/internal/modules/broadcast"
	"github.com/stockyardhq/stockyard-backend/internal/modules/catalog"
	"github.com/stockyardhq/stockyard-backend/internal/modules/checkout"
	"github.com/stockyardhq/stockyard-backend/internal/modules/ledger"
	"github.com/stockyardhq/stockyard-backend/internal/modules/notification"
	"github.com/stockyardhq/stockyard-backend/internal/modules/settings"
	"github.com/stockyardhq/stockyard-backend/internal/modules/user"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file, using environment")
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	db, err := sql.Open("postgres", os.Getenv("DATABASE_URL"))
	if err != nil {
		logger.Fatal("open database", zap.Error(err))
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatal("ping database", zap.Error(err))
	}
	logger.Info("connected to database")

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		logger.Fatal("JWT_SECRET is required")
	}

	// ── Router ──────────────────────────────────────────────
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.RequestID)

	// ── Phase 1: Identity ───────────────────────────────────
	userRepo := user.NewPostgresRepository(db)
	authService := auth.NewService(userRepo, jwtSecret)
	auth.NewHandler(authService).RegisterRoutes(router)

	// ── Phase 2: Settings & Broadcast ───────────────────────
	settingsProvider := settings.NewPostgresProvider(db)

	hub := broadcast.NewHub(logger)
	broadcast.NewHandler(hub).RegisterRoutes(router)

	// ── Phase 3: Notification Authority ─────────────────────
	notificationRepo := notification.NewPostgresRepository(db)
	authority := notification.NewAuthority(notificationRepo, settingsProvider, hub, logger)
	authority.Start()
	defer authority.Close()
	notification.NewHandler(authority).RegisterRoutes(router)

	// ── Phase 4: Catalog ────────────────────────────────────
	catalogRepo := catalog.NewPostgresRepository(db)
	catalogService := catalog.NewService(catalogRepo)

	// ── Phase 5: Ledger & Checkout ──────────────────────────
	ledgerRepo := ledger.NewPostgresRepository(db)
	ledgerService := ledger.NewService(ledgerRepo, authority, logger)

	checkoutRepo := checkout.NewPostgresRepository(db)
	checkoutService := checkout.NewService(checkoutRepo, settingsProvider, authority, logger)

	// Mutating engine routes require an authenticated user.
	router.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(jwtSecret))
		catalog.NewHandler(catalogService).RegisterRoutes(r)
		ledger.NewHandler(ledgerService).RegisterRoutes(r)
		checkout.NewHandler(checkoutService).RegisterRoutes(r)
	})

	// ── Start Server ────────────────────────────────────────
	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}
	logger.Info("stockyard API server starting", zap.String("port", port))
	if err := http.ListenAndServe(":"+port, router); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}
