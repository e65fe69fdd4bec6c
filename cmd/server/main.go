package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/nishant/auction-app/backend/internal/auction"
	"github.com/nishant/auction-app/backend/internal/auth"
	"github.com/nishant/auction-app/backend/internal/config"
	"github.com/nishant/auction-app/backend/internal/logger"
	"github.com/nishant/auction-app/backend/internal/middleware"
	"github.com/nishant/auction-app/backend/internal/store"
)

func main() {
	logger.Setup()
	cfg := config.Load()
	ctx := context.Background()

	// ── PostgreSQL ────────────────────────────────────────────
	pgPool, err := pgxpool.New(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("postgres connect: %v", err)
	}
	defer pgPool.Close()
	pgStore := store.NewPostgresStore(pgPool)
	if err := pgStore.Migrate(ctx); err != nil {
		log.Fatalf("postgres migrate: %v", err)
	}

	// ── MongoDB ──────────────────────────────────────────────
	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("mongo connect: %v", err)
	}
	defer mongoClient.Disconnect(ctx)
	mongoStore := store.NewMongoStore(mongoClient.Database(cfg.MongoDB))

	// ── Redis ────────────────────────────────────────────────
	rdb, err := store.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		log.Fatalf("redis connect: %v", err)
	}
	defer rdb.Close()
	blacklist := store.NewTokenBlacklist(rdb)

	// ── MinIO ────────────────────────────────────────────────
	minioStore, err := store.NewMinioStore(
		ctx, cfg.MinioEndpoint, cfg.MinioAccessKey,
		cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL,
	)
	if err != nil {
		log.Fatalf("minio connect: %v", err)
	}

	// ── Tokens ───────────────────────────────────────────────
	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		log.Fatalf("token service: %v", err)
	}

	// ── Handlers ─────────────────────────────────────────────
	authHandler := auth.NewHandler(pgStore, mongoStore, tokens, blacklist)
	auctionService := auction.NewService(mongoStore, pgStore, minioStore)
	auctionHandler := auction.NewHandler(auctionService, auction.NewIntake(minioStore), minioStore)

	// ── Closing sweep ────────────────────────────────────────
	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go auction.NewCloser(mongoStore, pgStore, cfg.SweepInterval).Run(sweepCtx)

	// ── Router ───────────────────────────────────────────────
	requireAuth := middleware.RequireAuth(tokens, blacklist)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Post("/signup", authHandler.Signup)
		r.Post("/signin", authHandler.Signin)
		r.Get("/auctions", auctionHandler.List)
		r.Get("/auctions/{id}", auctionHandler.Get)
		r.Get("/users/{id}", auctionHandler.SellerProfile)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/logout", authHandler.Logout)
			r.Get("/profile", authHandler.Profile)
			r.Get("/user/posted-auctions", authHandler.PostedAuctions)
			r.Get("/user/participated-auctions", authHandler.ParticipatedAuctions)
			r.Get("/user/won-auctions", authHandler.WonAuctions)
			r.Post("/auction", auctionHandler.Create)
			r.Put("/auction/{id}", auctionHandler.Update)
			r.Delete("/auction/{id}", auctionHandler.Delete)
			r.Post("/bid/{auctionId}", auctionHandler.PlaceBid)
		})
	})

	// Uploaded media (images and STL models)
	r.Get("/uploads/{key}", auctionHandler.ServeUpload)

	// ── Server ───────────────────────────────────────────────
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 5 * time.Minute,
	}

	go func() {
		log.Infof("Backend listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down...")
	stopSweep()
	shutCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	srv.Shutdown(shutCtx)
}
