// =============================================================================
// main.go - Presse Relay APIサーバーのエントリーポイント
// =============================================================================
//
// フロントエンド（React）向けのHTTP APIサーバー。SSEで検索結果を
// ストリーミング配信し、地名キャッシュの参照・再生成も提供します。
//
// 環境変数:
//   - PORT:               リッスンポート (デフォルト: 3001)
//   - LOG_LEVEL:          ログレベル (デフォルト: info)
//   - COMMUNES_CACHE_DIR: 地名キャッシュの保存先 (デフォルト: data)
//   - COMMUNES_TTL_HOURS: メモリキャッシュTTL (デフォルト: 24)
//   - COMMUNES_CRON:      キャッシュ再生成スケジュール (デフォルト: "0 4 * * *"、空で無効)
//   - GIN_MODE:           release / debug
//
// =============================================================================
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"presse-relay/internal/api"
	"presse-relay/internal/logger"
	"presse-relay/internal/presse"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "INFO: no .env file found, using environment variables")
	}

	log, err := logger.New(envOr("LOG_LEVEL", "info"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: invalid log level: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ttlHours, err := strconv.Atoi(envOr("COMMUNES_TTL_HOURS", "24"))
	if err != nil || ttlHours <= 0 {
		ttlHours = 24
	}

	fetch := presse.DefaultFetchConfig()
	gaz := presse.NewGazetteer(
		envOr("COMMUNES_CACHE_DIR", "data"),
		time.Duration(ttlHours)*time.Hour,
		nil, fetch.Client, log,
	)
	sources := presse.NewSourceRegistry(gaz, fetch, nil, log)
	agg := presse.NewAggregator(sources, log)

	router := api.NewRouter(&api.Handler{
		Agg: agg,
		Gaz: gaz,
		Log: log,
	})

	// 毎朝、地名キャッシュを温め直す
	var scheduler *cron.Cron
	if spec := envOr("COMMUNES_CRON", "0 4 * * *"); spec != "" {
		scheduler = cron.New()
		if _, err := scheduler.AddFunc(spec, func() {
			stats := gaz.PopulateAll(context.Background())
			log.Infow("caches communes régénérés",
				"generated", len(stats.Generated),
				"errors", len(stats.Errors),
				"uniqueCommunes", stats.UniqueCommunes,
			)
		}); err != nil {
			log.Fatalw("planification cron invalide", "spec", spec, "error", err)
		}
		scheduler.Start()
	}

	addr := ":" + envOr("PORT", "3001")
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
		// SSEストリームは長時間開くのでWriteTimeoutは設定しない
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infow("serveur démarré", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("serveur arrêté", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Infow("arrêt en cours")
	if scheduler != nil {
		scheduler.Stop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warnw("arrêt forcé", "error", err)
	}
}
