package main

import (
	"flag"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"newslens/internal/headlines"
)

// mirror-server serves data/mirror.json as a NewsAPI-compatible
// /top-headlines endpoint. Point NEWSLENS_NEWSAPI_URL at it and set any
// NEWS_API_KEY to develop without network access.
func main() {
	var (
		addr     = flag.String("addr", ":9000", "listen address")
		dataPath = flag.String("data", "data/mirror.json", "snapshot file written by export-mirror")
	)
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Str("component", "mirror").Logger()

	// fail fast on a bad file
	if _, err := headlines.LoadMirror(*dataPath); err != nil {
		logger.Fatal().Err(err).Str("path", *dataPath).Msg("load mirror")
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/top-headlines", headlines.MirrorHandler(func() (headlines.Mirror, error) {
		return headlines.LoadMirror(*dataPath)
	}))
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	logger.Info().Str("addr", *addr).Str("data", *dataPath).Msg("mirror-server listening")
	if err := r.Run(*addr); err != nil {
		logger.Fatal().Err(err).Msg("mirror-server stopped")
	}
}
