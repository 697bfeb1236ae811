package main

import (
	"context"
	"log"
	"os"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"google.golang.org/api/option"

	fbapp "firebase.google.com/go/v4"

	"lapakchat/internal/adapter/api"
	"lapakchat/internal/adapter/api/handler"
	apimiddleware "lapakchat/internal/adapter/api/middleware"
	"lapakchat/internal/adapter/api/router"
	"lapakchat/internal/adapter/repository"
	"lapakchat/internal/infrastructure/firebase"
	"lapakchat/internal/infrastructure/storage"
	"lapakchat/internal/infrastructure/websocket"
	"lapakchat/internal/usecase"
	"lapakchat/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()

	var opts []option.ClientOption
	serviceAccountPath := os.Getenv("FIREBASE_SERVICE_ACCOUNT_PATH")
	if serviceAccountJSON := os.Getenv("FIREBASE_SERVICE_ACCOUNT_JSON"); serviceAccountJSON != "" {
		log.Printf("Using Firebase service account from environment variable")
		opts = append(opts, option.WithCredentialsJSON([]byte(serviceAccountJSON)))
		serviceAccountPath = ""
	} else if serviceAccountPath != "" {
		if _, err := os.Stat(serviceAccountPath); os.IsNotExist(err) {
			log.Fatalf("Service account file does not exist: %s", serviceAccountPath)
		}
		log.Printf("Using Firebase service account from file: %s", serviceAccountPath)
		opts = append(opts, option.WithCredentialsFile(serviceAccountPath))
	}

	firebaseApp, err := fbapp.NewApp(ctx, &fbapp.Config{ProjectID: cfg.FirebaseProject}, opts...)
	if err != nil {
		log.Fatalf("Failed to initialize Firebase: %v", err)
	}

	authClient, err := firebaseApp.Auth(ctx)
	if err != nil {
		log.Fatalf("Failed to initialize Firebase Auth: %v", err)
	}

	firestoreClient, err := firestore.NewClient(ctx, cfg.FirebaseProject, opts...)
	if err != nil {
		log.Fatalf("Failed to create Firestore client: %v", err)
	}
	defer firestoreClient.Close()

	storageClient, err := storage.NewCloudStorageClient(ctx, cfg.StorageBucket, serviceAccountPath)
	if err != nil {
		log.Fatalf("Failed to initialize Cloud Storage: %v", err)
	}
	defer storageClient.Close()

	chatRepo := repository.NewFirestoreChatRepository(firestoreClient)
	fileMetadataRepo := repository.NewFirestoreFileMetadataRepository(firestoreClient)

	identityProvider := firebase.NewFirebaseAuthClient(authClient)

	wsManager := websocket.NewManager()

	chatUseCase := usecase.NewChatUseCase(chatRepo, fileMetadataRepo, identityProvider, wsManager)

	e := echo.New()

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	e.Validator = api.NewValidator()

	authMiddleware := apimiddleware.NewAuthMiddleware(identityProvider)

	uploadLimiter := apimiddleware.NewIPRateLimiter(30, time.Minute)

	chatHandler := handler.NewChatHandler(chatUseCase)
	wsHandler := handler.NewWebSocketHandler(chatUseCase, identityProvider, wsManager, cfg)
	fileHandler := handler.NewFileHandler(storageClient, fileMetadataRepo)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})

	router.Setup(e, chatHandler, wsHandler, fileHandler, authMiddleware, uploadLimiter)

	log.Printf("Starting server on port %s (env=%s)", cfg.ServerPort, cfg.Environment)
	if err := e.Start(":" + cfg.ServerPort); err != nil {
		log.Fatalf("Server stopped: %v", err)
	}
}
