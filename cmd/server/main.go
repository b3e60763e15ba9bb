package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/campusfound/backend/internal/config"
	"github.com/campusfound/backend/internal/handlers"
	appMiddleware "github.com/campusfound/backend/internal/middleware"
	"github.com/campusfound/backend/internal/services"
	"github.com/campusfound/backend/internal/storage"
)

func main() {
	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var (
		itemService     services.ItemService
		userService     services.UserService
		categoryService services.CategoryService
		watchService    services.WatchService
		analytics       services.AnalyticsService
		saveSnapshot    func()
		closers         []func(context.Context) error
	)

	var mailer services.Mailer
	if cfg.SendGridAPIKey != "" {
		mailer = services.NewSendGridMailer(cfg.SendGridAPIKey, cfg.MailFromEmail, cfg.MailFromName)
	}

	if cfg.MongoURI != "" {
		items, err := services.NewMongoItemService(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			log.Fatalf("item service: %v", err)
		}
		users, err := services.NewMongoUserService(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			log.Fatalf("user service: %v", err)
		}
		categories, err := services.NewMongoCategoryService(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			log.Fatalf("category service: %v", err)
		}
		watches, err := services.NewMongoWatchService(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			log.Fatalf("watch service: %v", err)
		}
		reports, err := services.NewMongoAnalyticsService(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			log.Fatalf("analytics service: %v", err)
		}

		users.SetAdminEmail(cfg.AdminEmail)
		items.SetNotifier(users)
		items.SetMailer(mailer)
		categories.SetItemService(items)
		watches.SetItemService(items)
		if err := categories.SeedDefaults(ctx); err != nil {
			log.Printf("category seed failed: %v", err)
		}

		itemService = items
		userService = users
		categoryService = categories
		watchService = watches
		analytics = reports
		closers = append(closers, items.Close, users.Close, categories.Close, watches.Close, reports.Close)
	} else {
		log.Println("MONGODB_URI not set, using in-memory services")

		items := services.NewMemoryItemService()
		users := services.NewMemoryUserService()
		categories := services.NewMemoryCategoryService()
		watches := services.NewMemoryWatchService()

		users.SetAdminEmail(cfg.AdminEmail)
		items.SetNotifier(users)
		items.SetMailer(mailer)
		categories.SetItemService(items)
		watches.SetItemService(items)

		store, err := storage.NewSnapshotStore(cfg.DataDir, "campusfound.json")
		if err != nil {
			log.Fatalf("snapshot store: %v", err)
		}
		snap, err := store.Load()
		if err != nil {
			log.Fatalf("snapshot load: %v", err)
		}
		users.Restore(snap.Users)
		items.Restore(snap.Items, snap.Claims)
		categories.Restore(snap.Categories)
		watches.Restore(snap.Watches)

		if len(snap.Categories) == 0 {
			categories.SeedDefaults()
		}

		saveSnapshot = func() {
			snapItems, snapClaims := items.Snapshot()
			err := store.Save(&storage.Snapshot{
				Users:      users.Snapshot(),
				Items:      snapItems,
				Claims:     snapClaims,
				Categories: categories.Snapshot(),
				Watches:    watches.Snapshot(),
			})
			if err != nil {
				log.Printf("snapshot save failed: %v", err)
			}
		}

		itemService = items
		userService = users
		categoryService = categories
		watchService = watches
		analytics = services.NewBasicAnalyticsService(items, users)
	}

	imageService := services.NewImageService(cfg.UploadDir)
	captcha := services.NewCaptchaVerifier(cfg.CaptchaSecret)

	authHandler := handlers.NewAuthHandler(userService, captcha, cfg.JWTSecret, cfg.JWTExpiration)
	itemHandler := handlers.NewItemHandler(itemService, watchService)
	claimHandler := handlers.NewClaimHandler(itemService)
	notificationHandler := handlers.NewNotificationHandler(userService)
	categoryHandler := handlers.NewCategoryHandler(categoryService)
	watchHandler := handlers.NewWatchHandler(watchService)
	adminHandler := handlers.NewAdminHandler(userService, itemService, watchService)
	analyticsHandler := handlers.NewAnalyticsHandler(analytics)
	exportHandler := handlers.NewExportHandler(itemService, userService)
	imageHandler := handlers.NewImageHandler(imageService, cfg.MaxUploadSizeMB)

	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)

		// Authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(appMiddleware.JWTAuth(cfg.JWTSecret))
			r.Use(appMiddleware.LoadActor(userService))

			r.Get("/auth/me", authHandler.GetProfile)
			r.Put("/auth/me", authHandler.UpdateProfile)

			r.Route("/items", func(r chi.Router) {
				r.Get("/", itemHandler.ListItems)
				r.Post("/", itemHandler.ReportItem)
				r.Get("/mine", itemHandler.MyItems)

				r.Route("/{itemID}", func(r chi.Router) {
					r.Get("/", itemHandler.GetItem)
					r.Put("/", itemHandler.UpdateItem)
					r.Delete("/", itemHandler.DeleteItem)

					r.Post("/claims", claimHandler.SubmitClaim)
					r.Get("/claims", claimHandler.ListClaimsForItem)
					r.Post("/claims/{claimID}/returned", claimHandler.MarkReturned)

					r.Post("/watch", watchHandler.Add)
					r.Delete("/watch", watchHandler.Remove)
				})
			})

			r.Route("/claims", func(r chi.Router) {
				r.Get("/mine", claimHandler.MyClaims)
				r.Post("/{claimID}/approve", claimHandler.ApproveClaim)
				r.Post("/{claimID}/reject", claimHandler.RejectClaim)
				r.Post("/{claimID}/contact", claimHandler.ContactClaimant)
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", notificationHandler.List)
				r.Post("/read-all", notificationHandler.MarkAllRead)
				r.Post("/{notificationID}/read", notificationHandler.MarkRead)
				r.Delete("/", notificationHandler.Clear)
			})

			r.Get("/categories", categoryHandler.List)
			r.Get("/watchlist", watchHandler.List)

			r.Post("/upload", imageHandler.Upload)
			r.Delete("/upload/{imageID}", imageHandler.Delete)

			// Admin routes
			r.Group(func(r chi.Router) {
				r.Use(appMiddleware.RequireAdmin)

				r.Post("/categories", categoryHandler.Create)
				r.Put("/categories/{categoryID}", categoryHandler.Update)
				r.Delete("/categories/{categoryID}", categoryHandler.Delete)

				r.Route("/admin", func(r chi.Router) {
					r.Get("/users", adminHandler.ListUsers)
					r.Get("/users/{userID}", adminHandler.GetUser)
					r.Put("/users/{userID}/role", adminHandler.SetRole)
					r.Post("/users/{userID}/suspend", adminHandler.Suspend)
					r.Post("/users/{userID}/unsuspend", adminHandler.Unsuspend)
					r.Post("/users/{userID}/ban", adminHandler.Ban)
					r.Post("/users/{userID}/unban", adminHandler.Unban)
					r.Delete("/users/{userID}", adminHandler.DeleteUser)

					r.Delete("/items/{itemID}", adminHandler.RemoveItem)
					r.Put("/items/{itemID}/status", adminHandler.SetItemStatus)

					r.Route("/analytics", func(r chi.Router) {
						r.Get("/overview", analyticsHandler.Overview)
						r.Get("/items-by-status", analyticsHandler.ItemsByStatus)
						r.Get("/items-by-type", analyticsHandler.ItemsByType)
						r.Get("/items-by-category", analyticsHandler.ItemsByCategory)
						r.Get("/claims-by-status", analyticsHandler.ClaimsByStatus)
						r.Get("/items-over-time", analyticsHandler.ItemsOverTime)
						r.Get("/top-reporters", analyticsHandler.TopReporters)
						r.Get("/most-claimed", analyticsHandler.MostClaimedItems)
						r.Get("/popular-tags", analyticsHandler.PopularTags)
					})

					r.Route("/export", func(r chi.Router) {
						r.Get("/items", exportHandler.Items)
						r.Get("/claims", exportHandler.Claims)
						r.Get("/users", exportHandler.Users)
					})
				})
			})
		})
	})

	// Serve uploaded files
	workDir, _ := os.Getwd()
	filesDir := http.Dir(workDir + "/" + cfg.UploadDir)
	r.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(filesDir)))

	srv := &http.Server{
		Addr:    cfg.ServerAddress,
		Handler: r,
	}

	go func() {
		log.Printf("CampusFound API server starting on %s", cfg.ServerAddress)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	if saveSnapshot != nil {
		saveSnapshot()
	}
	for _, close := range closers {
		if err := close(shutdownCtx); err != nil {
			log.Printf("close: %v", err)
		}
	}
	log.Println("server stopped")
}
