// =============================================================================
// config.go - CLI設定
// =============================================================================
//
// このファイルはCLIフラグの解析と設定管理を行います。
//
// 【設定グループ】
//   - SearchConfig: 検索条件（キーワード・期間・ソース）
//   - CacheConfig:  地名キャッシュ設定
//   - OutputConfig: 出力設定（JSON / Notion）
//
// =============================================================================
package main

import (
	"flag"
	"os"
	"strings"
	"time"
)

// CLIConfig はCLIの全設定を保持する
type CLIConfig struct {
	Search SearchConfig
	Cache  CacheConfig
	Output OutputConfig

	// LogLevel はログ出力レベル（debug/info/warn/error）
	LogLevel string
}

// SearchConfig は検索条件に関する設定
type SearchConfig struct {
	// Keyword は検索キーワード（必須、-populateCaches時を除く）
	Keyword string

	// StartDate / EndDate は ISO形式（YYYY-MM-DD）の両端含む期間
	StartDate string
	EndDate   string

	// SourcesRaw はカンマ区切りのソース文字列（空 = 全ソース）
	SourcesRaw string

	// Feeds がtrueの場合、France 3のRSSフィードも検索対象に加える
	Feeds bool
}

// Sources はSourcesRawをパースしてスライスで返す
func (c *SearchConfig) Sources() []string {
	var result []string
	for _, s := range strings.Split(c.SourcesRaw, ",") {
		s = strings.TrimSpace(strings.ToLower(s))
		if s != "" {
			result = append(result, s)
		}
	}
	return result
}

// CacheConfig は地名キャッシュに関する設定
type CacheConfig struct {
	// Dir はキャッシュファイルの保存先ディレクトリ
	Dir string

	// TTLHours はメモリキャッシュの有効期間（時間）
	TTLHours int

	// Populate がtrueの場合、検索せずキャッシュ再生成のみ実行
	Populate bool
}

// TTL returns the in-memory cache lifetime as a Duration.
func (c *CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLHours) * time.Hour
}

// OutputConfig は出力に関する設定
type OutputConfig struct {
	// OutFile が指定された場合、ファイルに出力（空の場合はstdout）
	OutFile string

	// NotionClip がtrueの場合、Notionに保存
	NotionClip bool

	// NotionPageID は新規データベース作成時の親ページID
	NotionPageID string

	// NotionDatabaseID は既存のデータベースID
	NotionDatabaseID string
}

// envOr は環境変数が空ならフォールバック値を返す
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// ParseFlags はCLIフラグを解析してCLIConfigを返す
func ParseFlags() *CLIConfig {
	cfg := &CLIConfig{}

	// Search flags
	flag.StringVar(&cfg.Search.Keyword, "keyword", "", "search keyword (required unless -populateCaches)")
	flag.StringVar(&cfg.Search.StartDate, "startDate", "", "optional: inclusive lower bound, YYYY-MM-DD")
	flag.StringVar(&cfg.Search.EndDate, "endDate", "", "optional: inclusive upper bound, YYYY-MM-DD")
	flag.StringVar(&cfg.Search.SourcesRaw, "sources", "", "comma-separated source IDs (default: all)")
	flag.BoolVar(&cfg.Search.Feeds, "feeds", false, "also search France 3 RSS feeds")

	// Cache flags
	flag.StringVar(&cfg.Cache.Dir, "cacheDir", envOr("COMMUNES_CACHE_DIR", "data"), "directory for commune cache files")
	flag.IntVar(&cfg.Cache.TTLHours, "cacheTTL", 24, "in-memory commune cache TTL in hours")
	flag.BoolVar(&cfg.Cache.Populate, "populateCaches", false, "regenerate commune caches and exit")

	// Output flags
	flag.StringVar(&cfg.Output.OutFile, "out", "", "optional: write output JSON to this path (default: stdout)")
	flag.BoolVar(&cfg.Output.NotionClip, "notionClip", false, "clip articles to Notion database")
	flag.StringVar(&cfg.Output.NotionPageID, "notionPageID", os.Getenv("NOTION_PAGE_ID"), "parent page ID for creating new Notion database")
	flag.StringVar(&cfg.Output.NotionDatabaseID, "notionDatabaseID", os.Getenv("NOTION_DATABASE_ID"), "existing Notion database ID")

	flag.StringVar(&cfg.LogLevel, "logLevel", envOr("LOG_LEVEL", "info"), "log level: debug, info, warn, error")

	flag.Parse()
	return cfg
}
