package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chat-backend/cmd"
	"chat-backend/internal/api"
	"chat-backend/internal/chat"
	"chat-backend/internal/database"
	"chat-backend/internal/export"
	"chat-backend/internal/gateway"
	"chat-backend/internal/prompt"
	"chat-backend/internal/storage"
	"chat-backend/internal/store"

	"github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type APIConfig struct {
	DatabaseURL string `env:"DATABASE_URL" envDefault:"sqlite:///chat_backend/chat.db"`
	APIPort     string `env:"API_PORT" envDefault:"8001"`

	AIProvider       string        `env:"AI_PROVIDER" envDefault:"gemini"`
	GeminiAPIKey     string        `env:"GEMINI_API_KEY"`
	GeminiModel      string        `env:"GEMINI_MODEL" envDefault:"gemini-2.0-flash"`
	PerplexityAPIKey string        `env:"PERPLEXITY_API_KEY"`
	PerplexityModel  string        `env:"PERPLEXITY_MODEL" envDefault:"sonar"`
	ProviderTimeout  time.Duration `env:"PROVIDER_TIMEOUT" envDefault:"30s"`

	AssistantName   string `env:"ASSISTANT_NAME" envDefault:"AnuragBot"`
	AssistantDomain string `env:"ASSISTANT_DOMAIN" envDefault:"Anurag University"`

	MaxUploadMB int64 `env:"MAX_UPLOAD_MB" envDefault:"16"`

	AttachmentDir     string `env:"ATTACHMENT_DIR" envDefault:"chat_backend/uploads"`
	AttachmentBucket  string `env:"ATTACHMENT_BUCKET"`
	S3EndpointURL     string `env:"S3_ENDPOINT_URL"`
	S3AccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
	S3Region          string `env:"AWS_REGION"`
}

func main() {
	log.Println("Starting API Server...")

	cmd.LoadEnvFile()

	var cfg APIConfig
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("error parsing config: %v", err)
	}

	db, err := database.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	conversationStore := store.NewGormStore(db)

	gw := createGateway(cfg)

	attachments := createAttachmentStore(cfg)

	assembler := prompt.NewAssembler(cfg.AssistantName, cfg.AssistantDomain)
	chatService := chat.NewService(conversationStore, gw, assembler, attachments, cfg.ProviderTimeout)
	exporter := export.NewExporter(conversationStore)

	// --- Chi Router Setup ---
	r := chi.NewRouter()

	// Middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"}, // Allow all origins (TODO: make this an env var)
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300, // Cache preflight response for 5 minutes
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)                    // Log requests
	r.Use(middleware.Recoverer)                 // Recover from panics
	r.Use(middleware.Timeout(60 * time.Second)) // Set request timeout

	maxUploadBytes := cfg.MaxUploadMB << 20
	r.Use(middleware.RequestSize(maxUploadBytes))

	apiHandler := api.NewService(db, conversationStore, chatService, exporter, maxUploadBytes)

	r.Route("/api", func(r chi.Router) {
		apiHandler.AddRoutes(r)
	})

	// --- Start HTTP Server ---
	server := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: r,
	}

	// Goroutine for graceful shutdown
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("Shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			log.Fatalf("Server forced to shutdown: %v", err)
		}
	}()

	log.Printf("API server listening on port %s", cfg.APIPort)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Could not listen on %s: %v\n", cfg.APIPort, err)
	}

	log.Println("Server stopped.")
}

// createGateway picks the provider from config. A missing API key is not
// fatal: the server still runs, and chat requests report the missing
// configuration.
func createGateway(cfg APIConfig) gateway.Gateway {
	switch cfg.AIProvider {
	case "perplexity":
		if cfg.PerplexityAPIKey == "" {
			log.Printf("PERPLEXITY_API_KEY not set, chat endpoints will report a configuration error")
			return nil
		}
		return gateway.NewPerplexity(cfg.PerplexityAPIKey, cfg.PerplexityModel)
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			log.Printf("GEMINI_API_KEY not set, chat endpoints will report a configuration error")
			return nil
		}
		return gateway.NewGemini(cfg.GeminiAPIKey, cfg.GeminiModel)
	default:
		log.Fatalf("unknown AI_PROVIDER %q, expected 'gemini' or 'perplexity'", cfg.AIProvider)
		return nil
	}
}

func createAttachmentStore(cfg APIConfig) storage.ObjectStore {
	if cfg.AttachmentBucket != "" {
		s3Store, err := storage.NewS3ObjectStore(storage.S3ClientConfig{
			Endpoint:        cfg.S3EndpointURL,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
		}, cfg.AttachmentBucket)
		if err != nil {
			log.Fatalf("Failed to create S3 attachment store: %v", err)
		}
		return s3Store
	}

	localStore, err := storage.NewLocalObjectStore(cfg.AttachmentDir)
	if err != nil {
		log.Fatalf("Failed to create local attachment store: %v", err)
	}
	return localStore
}
