package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"github.com/adhikramm/CertWallet/internal/db"
	"github.com/adhikramm/CertWallet/internal/handlers"
	"github.com/adhikramm/CertWallet/internal/middleware"
	"github.com/adhikramm/CertWallet/internal/services"
	"github.com/adhikramm/CertWallet/internal/storage"
	"github.com/adhikramm/CertWallet/internal/store"
)

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found or error loading it, using environment variables")
	}

	// Initialize Fiber
	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New())

	jwtSecret := getenv("JWT_SECRET", "dev-secret-change-me")
	baseURL := getenv("BASE_URL", "http://localhost:8080")
	middleware.InitAuth(jwtSecret)

	var (
		shareStore store.ShareStore
		logStore   store.AccessLogStore
		certStore  store.CertificateStore
		userStore  store.UserStore
	)

	// DEMO_MODE keeps everything in process memory: an explicit offline
	// mode, never a silent fallback on store errors.
	if os.Getenv("DEMO_MODE") == "1" {
		log.Println("DEMO_MODE=1: using in-memory stores, nothing will be persisted")
		shareStore = store.NewMemoryShareStore()
		logStore = store.NewMemoryAccessLogStore()
		certStore = store.NewMemoryCertificateStore()
		userStore = store.NewMemoryUserStore()
	} else {
		mongoURI := getenv("MONGO_URI", "mongodb://localhost:27017/cert_wallet")
		database := db.ConnectMongoDB(mongoURI, "cert_wallet")

		shares := store.NewMongoShareStore(database)
		logs := store.NewMongoAccessLogStore(database)
		certs := store.NewMongoCertificateStore(database)
		users := store.NewMongoUserStore(database)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		for _, ensure := range []func(context.Context) error{
			shares.EnsureIndexes, logs.EnsureIndexes, certs.EnsureIndexes, users.EnsureIndexes,
		} {
			if err := ensure(ctx); err != nil {
				log.Fatalf("failed to ensure indexes: %v", err)
			}
		}

		shareStore, logStore, certStore, userStore = shares, logs, certs, users
	}

	// Initialize MinIO-backed certificate file storage
	blobs, err := storage.NewBlobStore(storage.Config{
		Endpoint:  getenv("MINIO_ENDPOINT", "localhost:9000"),
		AccessKey: getenv("MINIO_ACCESS_KEY", "minioadmin"),
		SecretKey: getenv("MINIO_SECRET_KEY", "minioadmin"),
		Bucket:    getenv("MINIO_BUCKET", "certificates"),
	})
	if err != nil {
		log.Fatalf("MinIO initialization failed: %v", err)
	}

	authSvc := services.NewAuthService(userStore, jwtSecret)
	certSvc := services.NewCertificateService(certStore, blobs)
	accessSvc := services.NewAccessService(logStore, shareStore)
	shareSvc := services.NewShareService(shareStore, certStore, baseURL)
	// SHARE_EPHEMERAL_FALLBACK=1 degrades share creation to an in-process
	// store when the durable one is down; such shares come back flagged
	// unsynced.
	if os.Getenv("SHARE_EPHEMERAL_FALLBACK") == "1" {
		shareSvc = shareSvc.WithEphemeralFallback(store.NewMemoryShareStore())
	}

	handlers.InitAuthHandler(authSvc)
	handlers.InitCertHandler(certSvc, accessSvc)
	handlers.InitShareHandler(shareSvc, services.LogMailer{})
	handlers.InitAdminHandler(userStore, shareStore)

	// Auth Routes
	auth := app.Group("/auth")
	auth.Post("/register", handlers.RegisterHandler)
	auth.Post("/login", handlers.LoginHandler)

	// Profile
	app.Get("/profile", middleware.AuthMiddleware, handlers.ProfileHandler)

	// Certificate (wallet) Routes
	cert := app.Group("/certificates", middleware.AuthMiddleware)
	cert.Post("/upload", handlers.UploadCertificateHandler)
	cert.Get("/list", handlers.ListCertificatesHandler)
	cert.Get("/metadata/:id", handlers.GetCertificateMetadataHandler)
	cert.Get("/download/:id", handlers.DownloadCertificateHandler)
	cert.Get("/history/:id", handlers.CertificateHistoryHandler)
	cert.Delete("/:id", handlers.DeleteCertificateHandler)

	// Share management Routes (owner)
	share := app.Group("/shares", middleware.AuthMiddleware)
	share.Post("/", handlers.CreateShareHandler)
	share.Get("/list", handlers.ListSharesHandler)
	share.Get("/:id/history", handlers.ShareHistoryHandler)
	share.Post("/:id/email", handlers.EmailShareHandler)
	share.Delete("/:id", handlers.RevokeShareHandler)

	// Public share Routes (anonymous)
	app.Get("/s/:token", handlers.ResolveShareHandler)
	app.Post("/s/:token/verify", handlers.VerifySharePasswordHandler)
	app.Get("/s/:token/download/:cert_id", handlers.DownloadSharedCertificateHandler)

	// Admin Routes
	admin := app.Group("/admin", middleware.AdminMiddleware)
	admin.Get("/users", handlers.ListUsers)
	admin.Get("/user/:userid", handlers.GetUserByID)
	admin.Get("/user/:userid/shares", handlers.ListUserShares)

	// Get port from environment
	port := getenv("PORT", "8080")

	// Start server
	log.Fatal(app.Listen(":" + port))
}
