package backend

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jghoshh/arise/backend/notifications/email"
	"github.com/jghoshh/arise/backend/queue"
	"github.com/jghoshh/arise/backend/server"
	"github.com/jghoshh/arise/backend/server/auth"
	"github.com/jghoshh/arise/backend/store"
	cache "github.com/jghoshh/arise/backend/storage/cache"
	storage "github.com/jghoshh/arise/backend/storage/persistent"
	"github.com/joho/godotenv"
)

// RunBackend sets up and runs the backend server.
//
// Every dependency is constructed here and injected downward: the persistent
// backend (MongoDB, or the in-memory fallback when no credentials are
// configured or the server is unreachable), the cache (Redis or a no-op),
// the optional reward notification queue, the auth service, and the HTTP
// server. Missing optional infrastructure degrades the deployment instead of
// failing it, so the product stays demoable with nothing but the binary.
func RunBackend() {

	// Load the .env file.
	err := godotenv.Load("backend/.env")
	if err != nil {
		fmt.Println("Error loading .env file")
	}

	// Read the environment variables from the .env file using os.Getenv.
	signingKey := os.Getenv("JWT_SIGNING_KEY") // JWT signing key for token generation
	serverURL := os.Getenv("SERVER_URL")       // The URL where the server is running
	dbURI := os.Getenv("MONGODB_URI")          // MongoDB database URI
	dbName := os.Getenv("DB_NAME")             // The name of the MongoDB database
	smtpEmail := os.Getenv("GOOGLE_EMAIL")     // The email address used for sending notifications
	smtpPassword := os.Getenv("GOOGLE_PASS")   // The password for the email account
	redisURL := os.Getenv("REDIS_URL")         // The Redis URL for caching user documents
	rabbitMQURL := os.Getenv("RABBITMQ_URL")   // The URL for the RabbitMQ message broker
	numRewardProducers := 1                    // The number of reward notification producers
	numRewardConsumers := 2                    // The number of reward notification consumers
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if signingKey == "" {
		log.Fatal("JWT_SIGNING_KEY must be set")
	}
	if serverURL == "" {
		serverURL = "http://localhost:8080"
	}

	// Set up the persistent backend, degrading to the ephemeral in-memory
	// store when MongoDB is not available.
	var backendStorage storage.StorageInterface
	if dbURI == "" {
		log.Println("MONGODB_URI not set, using in-memory storage (data will not persist)")
		backendStorage = storage.NewMemoryStorage()
	} else {
		backendStorage, err = storage.NewStorage(dbName, dbURI)
		if err != nil {
			log.Printf("error connecting to MongoDB, using in-memory storage (data will not persist): %v", err)
			backendStorage = storage.NewMemoryStorage()
		}
	}

	// Set up the cache, degrading to a no-op cache without Redis.
	var docCache cache.CacheInterface
	if redisURL == "" {
		docCache = cache.NewNoopCache()
	} else {
		docCache, err = cache.NewCache(redisURL)
		if err != nil {
			log.Printf("error connecting to Redis, running without a cache: %v", err)
			docCache = cache.NewNoopCache()
		}
	}

	// Set up the reward notification queue; without a broker or SMTP
	// credentials level-up notifications are skipped entirely.
	var rewardQueue *queue.Queue
	if rabbitMQURL != "" && smtpEmail != "" {
		sender, err := email.NewSender(smtpEmail, smtpPassword)
		if err != nil {
			log.Printf("error initializing email sender, running without notifications: %v", err)
		} else {
			rewardQueue, err = queue.BuildRewardQueue(rabbitMQURL, numRewardProducers, numRewardConsumers, sender, docCache)
			if err != nil {
				log.Printf("error connecting to RabbitMQ, running without notifications: %v", err)
				rewardQueue = nil
			} else {
				if _, _, err := rewardQueue.StartConsumers(ctx); err != nil {
					log.Printf("error starting queue consumers: %v", err)
				}
			}
		}
	}

	documentStore := store.NewStore(backendStorage, docCache)
	authService := auth.NewAuth(backendStorage, signingKey)
	srv := server.NewServer(documentStore, authService, rewardQueue, signingKey)

	if err := srv.Start(ctx, serverURL); err != nil {
		log.Fatalf("server error: %v", err)
	}

	if err := backendStorage.Disconnect(); err != nil {
		log.Printf("error disconnecting storage: %v", err)
	}
	if err := docCache.Disconnect(); err != nil {
		log.Printf("error disconnecting cache: %v", err)
	}
}
