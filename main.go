package main

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/filevault/filevault/internal/api"
	"github.com/filevault/filevault/internal/blob"
	"github.com/filevault/filevault/internal/queue"
	"github.com/filevault/filevault/internal/service"
	"github.com/filevault/filevault/internal/session"
	"github.com/filevault/filevault/internal/store"
	"github.com/filevault/filevault/internal/thumb"
)

func main() {
	config := LoadConfig()

	meta, err := store.Open(config.Storage.Database)
	if err != nil {
		log.Fatal("Failed to open metadata store:", err)
	}
	defer meta.Close()

	blobs, err := blob.New(config.Storage.Path)
	if err != nil {
		log.Fatal("Failed to create blob store:", err)
	}

	queueConfig := queue.DefaultConfig()
	queueConfig.Workers = config.Queue.Workers
	queueConfig.MaxAttempts = config.Queue.MaxAttempts

	jobs, err := queue.New(meta.DB(), queueConfig)
	if err != nil {
		log.Fatal("Failed to initialize job queue:", err)
	}

	generator := thumb.New(meta, blobs)
	jobs.Start(generator.Process)
	defer jobs.Stop()

	sessions := session.NewRedisStore(config.Redis.Addr)
	defer sessions.Close()

	files := service.NewFiles(meta, blobs, jobs)
	users := service.NewUsers(meta)

	tokenTTL := time.Duration(config.API.TokenTTLHours) * time.Hour
	handler := api.New(files, users, meta, sessions, tokenTTL)

	router := gin.Default()
	handler.RegisterRoutes(router)

	log.Printf("Starting server on port %s", config.API.Port)
	if err := router.Run(":" + config.API.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
