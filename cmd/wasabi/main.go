package main

import (
	"log"
	"net/http"
	"os"

	"golang.org/x/time/rate"

	"wasabi/internal/auth"
	"wasabi/internal/config"
	"wasabi/internal/db"
	"wasabi/internal/files"
	"wasabi/internal/handlers"
	"wasabi/internal/middleware"
	"wasabi/internal/sftpserver"
	"wasabi/internal/tls"
)

func main() {
	cfg := config.Load()

	if err := os.MkdirAll(cfg.UploadDir, 0755); err != nil {
		log.Fatal("Failed to create upload directory:", err)
	}

	store, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer store.Close()

	if err := store.InitSchema(); err != nil {
		log.Fatal("Failed to initialize schema:", err)
	}

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTExpiration)
	authSvc := auth.NewService(store, tokens)
	fileSvc := files.NewService(store, cfg)
	h := handlers.New(authSvc, fileSvc, store, cfg)

	limiter := middleware.NewRateLimiter(rate.Limit(5), 10)

	mux := http.NewServeMux()

	mux.HandleFunc("/auth/register", h.Register)
	mux.HandleFunc("/auth/login", h.Login)

	mux.HandleFunc("/profile-pic/upload", authSvc.Middleware(h.ProfilePicUpload))

	mux.HandleFunc("/api/files/upload", authSvc.Middleware(h.Upload))
	mux.HandleFunc("/api/files/uploads", authSvc.Middleware(h.UploadMultiple))
	mux.HandleFunc("/api/files/user", authSvc.Middleware(h.UserFiles))
	mux.HandleFunc("/api/files/download/", h.Download)
	mux.HandleFunc("/api/files/info/", h.FileInfo)
	mux.HandleFunc("/api/files/public", h.PublicFiles)
	mux.HandleFunc("/api/files/type", h.FilesByType)
	mux.HandleFunc("/api/files/", h.FileByName)

	handler := middleware.SecurityHeaders(limiter.Limit(mux))

	sftpSrv, err := sftpserver.NewServer(cfg, store, fileSvc, store)
	if err != nil {
		log.Fatal("Failed to create SFTP server:", err)
	}
	go func() {
		log.Printf("SFTP server starting on %s\n", cfg.SFTPPort)
		if err := sftpSrv.Start(cfg.SFTPPort); err != nil {
			log.Printf("SFTP server error: %v\n", err)
		}
	}()

	log.Printf("File server starting on https://localhost%s\n", cfg.Port)
	log.Printf("Upload directory: %s\n", cfg.UploadDir)
	log.Printf("JWT token expiration: %v\n", cfg.JWTExpiration)
	log.Println("Using self-signed certificate - browser will show security warning")

	if err := tls.GenerateCertificates(cfg.CertFile, cfg.KeyFile); err != nil {
		log.Fatal("Failed to generate certificates:", err)
	}

	if err := http.ListenAndServeTLS(cfg.Port, cfg.CertFile, cfg.KeyFile, handler); err != nil {
		log.Fatal("Server error:", err)
	}
}
