package main

import (
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/ytfetch/ytfetch/internal/config"
	"github.com/ytfetch/ytfetch/internal/download"
	"github.com/ytfetch/ytfetch/internal/handler"
	"github.com/ytfetch/ytfetch/internal/postproc"
	"github.com/ytfetch/ytfetch/internal/registry"
	"github.com/ytfetch/ytfetch/internal/ws"
	"github.com/ytfetch/ytfetch/internal/ytdlp"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatal("config: ", err)
	}
	if err := cfg.EnsureDirs(); err != nil {
		log.Fatal("config: ", err)
	}

	hub := ws.NewHub()
	go hub.Run()

	service := download.NewService(
		registry.New(),
		ytdlp.NewClient(cfg.CookieFile),
		postproc.New(),
		hub,
		download.Config{
			DownloadDir:         cfg.AbsDownloadDir(),
			OutputDir:           cfg.AbsOutputDir(),
			MaxTransientRetries: cfg.MaxTransientRetries,
			BaseDelay:           cfg.BaseDelay,
		},
	)

	router := gin.Default()
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:5173", "http://localhost:3000"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	handler.New(service, hub).Register(router)

	go sweepOldFiles(cfg.CleanupTTL, cfg.AbsDownloadDir(), cfg.AbsOutputDir())

	log.Printf("Server starting on %s", cfg.ServerAddr)
	if err := router.Run(cfg.ServerAddr); err != nil {
		log.Fatal("Failed to run server: ", err)
	}
}

// sweepOldFiles removes artifacts older than ttl from the working
// directories once an hour.
func sweepOldFiles(ttl time.Duration, dirs ...string) {
	ticker := time.NewTicker(1 * time.Hour)
	for range ticker.C {
		for _, dir := range dirs {
			files, err := filepath.Glob(filepath.Join(dir, "*"))
			if err != nil {
				continue
			}
			for _, f := range files {
				info, err := os.Stat(f)
				if err != nil || info.IsDir() {
					continue
				}
				if time.Since(info.ModTime()) > ttl {
					if err := os.Remove(f); err == nil {
						log.Println("Deleted old file:", f)
					}
				}
			}
		}
	}
}
