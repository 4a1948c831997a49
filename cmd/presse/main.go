// =============================================================================
// main.go - Presse Relay CLIのエントリーポイント
// =============================================================================
//
// フランス地方紙3紙（Le Progrès / L'Alsace / L'Est Républicain）を
// キーワード検索し、地域関連の記事だけをJSONで出力するCLIツールです。
//
// 【処理フロー】
//
//   ┌─────────────┐    ┌─────────────┐    ┌─────────────┐
//   │  1. 設定    │ -> │  2. クロール │ -> │  3. 出力    │
//   │  読み込み   │    │  3紙並行    │    │  JSON/Notion│
//   └─────────────┘    └─────────────┘    └─────────────┘
//          │                  │                  │
//          v                  v                  v
//   .env読み込み        検索ページ巡回      日付降順ソート
//   CLIフラグ解析       地域分類・本文抽出  ファイル/stdout
//
// 【使用例】
//   ./presse -keyword=éolien -startDate=2025-01-01 -endDate=2025-03-31
//   ./presse -keyword=éolien -sources=progres,alsace -out=articles.json
//   ./presse -keyword=solaire -notionClip
//   ./presse -populateCaches
//
// 進捗は標準エラー出力へ。stdoutはJSONのみ。
//
// =============================================================================
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv" // .env ファイル読み込み
	"go.uber.org/zap"

	"presse-relay/internal/logger"
	"presse-relay/internal/presse"
)

func main() {
	// .envは無くてもよい（本番はLambda/コンテナの環境変数を使う）
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "INFO: no .env file found, using environment variables")
	}

	cfg := ParseFlags()

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: invalid log level %q: %v\n", cfg.LogLevel, err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fetch := presse.DefaultFetchConfig()
	gaz := presse.NewGazetteer(cfg.Cache.Dir, cfg.Cache.TTL(), nil, fetch.Client, log)

	// キャッシュ再生成モード
	if cfg.Cache.Populate {
		stats := gaz.PopulateAll(ctx)
		writeJSON(cfg.Output.OutFile, stats, log)
		if len(stats.Errors) > 0 {
			os.Exit(1)
		}
		return
	}

	if cfg.Search.Keyword == "" {
		fmt.Fprintln(os.Stderr, "ERROR: -keyword is required")
		flagUsage()
		os.Exit(2)
	}

	sources := presse.NewSourceRegistry(gaz, fetch, nil, log)
	if cfg.Search.Feeds {
		feeds := presse.NewFeedSource(nil, fetch, nil, log)
		sources[feeds.ID()] = feeds
	}
	if wanted := cfg.Search.Sources(); len(wanted) > 0 {
		filtered := map[string]presse.Searcher{}
		for _, id := range wanted {
			src, ok := sources[id]
			if !ok {
				fmt.Fprintf(os.Stderr, "ERROR: unknown source %q\n", id)
				os.Exit(2)
			}
			filtered[id] = src
		}
		sources = filtered
	}

	agg := presse.NewAggregator(sources, log)
	params := presse.SearchParams{
		Keyword:   cfg.Search.Keyword,
		StartDate: cfg.Search.StartDate,
		EndDate:   cfg.Search.EndDate,
	}

	articles, err := agg.SearchAll(ctx, params)
	if err != nil {
		log.Errorw("recherche interrompue", "error", err)
		os.Exit(1)
	}

	if cfg.Output.NotionClip {
		clipToNotion(ctx, cfg, articles, log)
	}

	writeJSON(cfg.Output.OutFile, searchResult{
		Keyword:   params.Keyword,
		StartDate: params.StartDate,
		EndDate:   params.EndDate,
		Count:     len(articles),
		Articles:  articles,
	}, log)
}

// searchResult is the CLI's JSON output envelope.
type searchResult struct {
	Keyword   string           `json:"keyword"`
	StartDate string           `json:"startDate,omitempty"`
	EndDate   string           `json:"endDate,omitempty"`
	Count     int              `json:"count"`
	Articles  []presse.Article `json:"articles"`
}

// writeJSON marshals v to the output file, or stdout when path is empty.
func writeJSON(path string, v any, log *zap.SugaredLogger) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatalw("sérialisation JSON impossible", "error", err)
	}
	b = append(b, '\n')

	if path == "" {
		os.Stdout.Write(b)
		return
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		log.Fatalw("écriture du fichier de sortie impossible", "path", path, "error", err)
	}
	fmt.Fprintf(os.Stderr, "INFO: output written to %s\n", path)
}

// clipToNotion saves the result set to Notion, creating the database first
// when only a parent page is configured.
func clipToNotion(ctx context.Context, cfg *CLIConfig, articles []presse.Article, log *zap.SugaredLogger) {
	nc, err := presse.NewNotionClipper(os.Getenv("NOTION_TOKEN"), cfg.Output.NotionDatabaseID, log)
	if err != nil {
		log.Errorw("client Notion indisponible", "error", err)
		return
	}
	if cfg.Output.NotionDatabaseID == "" {
		if err := nc.CreateDatabase(ctx, cfg.Output.NotionPageID); err != nil {
			log.Errorw("création de la base Notion impossible", "error", err)
			return
		}
	}
	clipped, err := nc.ClipAll(ctx, articles)
	if err != nil {
		log.Errorw("clip Notion impossible", "error", err)
		return
	}
	log.Infow("articles enregistrés dans Notion", "clipped", clipped, "total", len(articles))
}

// flagUsage prints a short usage reminder to stderr.
func flagUsage() {
	fmt.Fprintln(os.Stderr, "usage: presse -keyword=<mot-clé> [-startDate=YYYY-MM-DD] [-endDate=YYYY-MM-DD] [-sources=progres,alsace,estrepublicain] [-out=fichier.json]")
}
