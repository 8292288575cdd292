package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ethos/internal/config"
	"ethos/internal/evidence"
	"ethos/internal/inference"
	"ethos/internal/queue"
	"ethos/internal/store"
)

// Worker consumes rescore jobs, re-runs owner inference for unresolved
// cards, and refreshes the cached predictions the dashboard reads.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)
	cache := store.NewPredictionCache(redisClient.Client, cfg.PredictionTTL)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "ethos:rescore")
	}

	repo := evidence.NewRepository(db.Client)
	owner := inference.NewService(repo, inference.Weights{
		Wifi:    cfg.WeightWifi,
		Booking: cfg.WeightBooking,
		Face:    cfg.WeightFace,
		Alibi:   cfg.WeightAlibi,
	}, cfg.EvidenceWindow, cfg.PredictTopN)

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for rescore jobs...")
	for msg := range messages {
		if msg.Type != "rescore" {
			continue
		}

		cardID := string(msg.Body)
		log.Printf("rescoring card %s", cardID)

		preds, err := owner.Predict(ctx, cardID)
		if err != nil {
			log.Printf("rescore for card %s failed: %v", cardID, err)
			continue
		}
		if preds == nil {
			preds = []inference.Prediction{}
		}

		if err := cache.Set(ctx, cardID, map[string]any{"predictions": preds}); err != nil {
			log.Printf("cache write for card %s failed: %v", cardID, err)
			continue
		}
		log.Printf("card %s rescored, %d candidate(s) cached", cardID, len(preds))

		time.Sleep(10 * time.Millisecond) // Small delay between jobs
	}

	log.Println("worker stopped")
}
