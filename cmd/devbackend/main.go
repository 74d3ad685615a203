// Command devbackend runs a local implementation of the OneMinuteCloud
// provider API on top of a MinIO/S3 bucket. Point the relay's
// OMC_BACKEND_URL at it for end-to-end development without the hosted
// backend.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/One-Minute-Stack/oneminutecloud-storage-bucket-next/internal/backend"
	"github.com/One-Minute-Stack/oneminutecloud-storage-bucket-next/internal/config"
	"github.com/One-Minute-Stack/oneminutecloud-storage-bucket-next/internal/tracing"
)

func main() {
	log.Println("Starting OneMinuteCloud dev backend...")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if cfg.APIKey == "" {
		log.Fatal("OMC_API_KEY must be set")
	}

	// Initialize OpenTelemetry tracing
	shutdownTracer, err := tracing.InitTracer(cfg.ServiceName+"-backend", cfg.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	// Initialize the object store
	log.Println("Connecting to MinIO...")
	store, err := backend.NewMinioStore(
		cfg.MinIOEndpoint,
		cfg.MinIOAccessKey,
		cfg.MinIOSecretKey,
		cfg.MinIOBucketName,
		cfg.MinIOUseSSL,
	)
	if err != nil {
		log.Fatalf("Failed to initialize MinIO store: %v", err)
	}
	log.Println("MinIO store initialized")

	// Initialize the session store
	var sessions backend.SessionStore
	if cfg.RedisEnabled {
		log.Println("Connecting to Redis...")
		redisSessions, err := backend.NewRedisSessionStore(cfg.GetRedisAddr(), cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Fatalf("Failed to initialize Redis session store: %v", err)
		}
		defer redisSessions.Close()
		sessions = redisSessions
		log.Println("Redis session store initialized")
	} else {
		sessions = backend.NewMemorySessionStore()
		log.Println("Using in-memory session store")
	}

	// Initialize the upload ledger
	var ledger *backend.UploadLedger
	if cfg.LedgerEnabled {
		log.Println("Connecting to MySQL...")
		ledger, err = backend.NewUploadLedger(cfg.GetDSN())
		if err != nil {
			log.Fatalf("Failed to initialize upload ledger: %v", err)
		}
		defer ledger.Close()
		log.Println("Upload ledger initialized")
	}

	handler := backend.NewHandler(
		cfg.APIKey,
		store,
		sessions,
		ledger,
		time.Duration(cfg.PartURLTTLMinutes)*time.Minute,
		time.Duration(cfg.PreviewTTLMinutes)*time.Minute,
	)

	// Setup HTTP router
	router := mux.NewRouter()

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	api := mux.NewRouter()
	handler.Routes(api)
	router.PathPrefix("/v1/").Handler(otelhttp.NewHandler(api, "provider-api"))

	srv := &http.Server{
		Addr:         ":" + cfg.BackendPort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Dev backend listening on port %s", cfg.BackendPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down dev backend...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Dev backend exited")
}
