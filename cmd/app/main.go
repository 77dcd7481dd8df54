package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/tasksync/internal/config"
	"github.com/BuzzLyutic/tasksync/internal/gtasks"
	"github.com/BuzzLyutic/tasksync/internal/handler"
	"github.com/BuzzLyutic/tasksync/internal/logging"
	"github.com/BuzzLyutic/tasksync/internal/repo"
	"github.com/BuzzLyutic/tasksync/internal/service"
)

func main() {
	// Загрузка конфигурации
	cfg := config.Load()

	// Подключаем логгер
	logger := logging.New(cfg.LogFile)
	defer logger.Sync()

	// Выбор хранилища: Postgres если задан DATABASE_URL, иначе файлы
	var factory service.StoreFactory
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
		if err != nil {
			log.Fatal("Failed to connect to Database.")
		}
		defer pool.Close()

		if err := pool.Ping(context.Background()); err != nil {
			log.Fatal("Failed to ping the Database.")
		}
		logger.Info("Successfully connected to the Database!")

		factory = func(userID string) (repo.Store, error) {
			return repo.NewPostgresStore(pool, userID), nil
		}
	} else {
		logger.Info("Using file storage", zap.String("dir", cfg.DataDir))
		factory = func(userID string) (repo.Store, error) {
			return repo.NewFileStore(cfg.DataDir, userID)
		}
	}

	registry := service.NewRegistry(factory, logger)

	// Внешний провайдер задач, опционально
	var provider service.Provider
	if cfg.ProviderURL != "" {
		provider = gtasks.New(cfg.ProviderURL, cfg.ProviderToken, cfg.SyncTimeout, logger)
		logger.Info("Task provider configured", zap.String("url", cfg.ProviderURL))
	}

	h := handler.New(registry, provider, cfg.SyncTimeout, cfg.DefaultCollection, logger)

	r := chi.NewRouter() // Создаем роутер
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"ok"}`)
	})

	h.Register(r)

	srv := http.Server{ // Создаем сервер
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() { // Запуск сервера и обработка ошибок
		logger.Info("Server started at ", zap.String("port", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed: ", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	<-quit

	logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Shutdown error: ", zap.Error(err))
	}
	registry.Close() // отпускаем файловые блокировки
	logger.Info("Server stopped succsessfully!")
}
