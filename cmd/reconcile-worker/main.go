package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/campusfound/backend/internal/config"
	"github.com/campusfound/backend/internal/services"
)

// The reconcile worker repairs the crash window between a claim approval
// and the item status write: an item can be left claim_pending while one
// of its claims is already approved. Each pass finishes those
// transitions, rebuilds derived claim stats, and refreshes category item
// counts. Every step is idempotent, so overlapping runs are harmless.

func main() {
	cfg := config.Load()
	if cfg.MongoURI == "" {
		log.Fatal("MONGODB_URI is required for the reconcile worker")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	items, err := services.NewMongoItemService(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		cancel()
		log.Fatalf("item service: %v", err)
	}
	categories, err := services.NewMongoCategoryService(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		cancel()
		log.Fatalf("category service: %v", err)
	}
	cancel()
	categories.SetItemService(items)

	interval := 5 * time.Minute
	if raw := os.Getenv("RECONCILE_INTERVAL"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			interval = d
		}
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for range ticker.C {
			runPass(items, categories)
		}
	}()

	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// Manual trigger, used by ops and deploy hooks.
	http.HandleFunc("/reconcile", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		runPass(items, categories)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	addr := ":" + getEnv("PORT", "8081")
	log.Printf("reconcile-worker listening on %s (interval %s)", addr, interval)
	log.Fatal(http.ListenAndServe(addr, nil))
}

func runPass(items *services.MongoItemService, categories *services.MongoCategoryService) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	start := time.Now()
	log.Printf("[worker] reconcile pass starting")

	stuck, err := items.FindStuckItems(ctx)
	if err != nil {
		log.Printf("[worker] stuck item scan failed: %v", err)
	} else {
		for _, itemID := range stuck {
			if err := items.RepairStuckItem(ctx, itemID); err != nil {
				log.Printf("[worker] repair failed item=%s: %v", itemID, err)
				continue
			}
			log.Printf("[worker] repaired item=%s", itemID)
		}
	}

	all, err := items.ListAllItems(ctx)
	if err != nil {
		log.Printf("[worker] item list failed: %v", err)
	} else {
		for _, item := range all {
			if err := items.RecomputeItemStats(ctx, item.ID); err != nil {
				log.Printf("[worker] stats recompute failed item=%s: %v", item.ID, err)
			}
		}
	}

	if err := categories.RefreshCounts(ctx); err != nil {
		log.Printf("[worker] category count refresh failed: %v", err)
	}

	log.Printf("[worker] reconcile pass done in %s (stuck=%d)", time.Since(start).Round(time.Millisecond), len(stuck))
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
