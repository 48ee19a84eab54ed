package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"roadwatch.mg/internal/audit"
	"roadwatch.mg/internal/auth"
	"roadwatch.mg/internal/blob"
	"roadwatch.mg/internal/config"
	"roadwatch.mg/internal/httpapi"
	"roadwatch.mg/internal/obs"
	"roadwatch.mg/internal/roads"
	"roadwatch.mg/internal/store/pg"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	obs.Init()
	obs.InitBuildInfo(version, commit)

	// PostgreSQL when a DSN is configured, otherwise a process-local store
	var store roads.Store
	var pgStore *pg.Store
	if cfg.DatabaseDSN != "" {
		pgStore, err = pg.Open(cfg.DatabaseDSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		store = pgStore
	} else {
		obs.Warn("memory_store", map[string]any{"reason": "ROADWATCH_PG_DSN is not set; data is not persisted"})
		store = roads.NewInMemory()
	}

	if err := ensureAdmin(context.Background(), store, cfg); err != nil {
		log.Fatalf("bootstrap admin: %v", err)
	}

	tokens, err := auth.NewTokens(cfg.JWTSecret, auth.WithIssuer(cfg.JWTIssuer), auth.WithTTL(cfg.TokenTTL))
	if err != nil {
		log.Fatalf("tokens: %v", err)
	}
	blobs, err := blob.NewDisk(cfg.UploadDir, cfg.MaxUploadBytes)
	if err != nil {
		log.Fatalf("uploads: %v", err)
	}
	recorder := audit.NewRecorder(store)

	api := httpapi.New(httpapi.Options{
		Store:    store,
		Tokens:   tokens,
		Blobs:    blobs,
		Recorder: recorder,
		Config:   cfg,
		Version:  version,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadTimeout:       60 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	obs.Info("starting", map[string]any{"version": version, "http_addr": srv.Addr, "grpc_addr": cfg.GRPCAddr})

	// graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	var grpcSrv *grpc.Server
	if cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			log.Fatalf("grpc listen: %v", err)
		}
		grpcSrv = httpapi.NewGRPCServer(store.Ping)
		go func() {
			if err := grpcSrv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				log.Fatalf("grpc serve: %v", err)
			}
		}()
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	obs.Info("shutting_down", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if grpcSrv != nil {
		grpcSrv.GracefulStop()
	}
	recorder.Wait()
	if pgStore != nil {
		_ = pgStore.Close()
	}
	obs.Info("stopped", nil)
}

// ensureAdmin creates the configured administrator when it does not exist yet.
func ensureAdmin(ctx context.Context, store roads.Store, cfg config.Config) error {
	if cfg.AdminPassword == "" {
		return nil
	}
	if _, err := store.FindUserByLogin(ctx, cfg.AdminUsername); err == nil {
		return nil
	} else if !errors.Is(err, roads.ErrNotFound) {
		return err
	}
	username, email, role, err := roads.NormalizeAccount(cfg.AdminUsername, cfg.AdminEmail, auth.RoleAdmin)
	if err != nil {
		return err
	}
	hash, err := auth.HashPassword(cfg.AdminPassword)
	if err != nil {
		return err
	}
	u, err := store.CreateUser(ctx, roads.NewUser{Username: username, Email: email, PasswordHash: hash, Role: role})
	if err != nil {
		return err
	}
	obs.Info("admin_created", map[string]any{"user_id": u.ID, "username": u.Username})
	return nil
}
