// =============================================================================
// Lambda: search-articles
// =============================================================================
//
// 3紙を検索し、結果をNotion DBに保存するLambda関数。
// EventBridgeのスケジュールから定期実行する想定（例: 平日朝に前日分を検索）。
//
// 環境変数:
//   - NOTION_TOKEN:       Notion API Token (必須)
//   - NOTION_DATABASE_ID: NotionデータベースID (必須)
//   - KEYWORD:            検索キーワード (イベントで上書き可)
//   - DAYS_BACK:          何日前からの記事を取得するか (デフォルト: 1)
//   - COMMUNES_CACHE_DIR: 地名キャッシュ保存先 (デフォルト: /tmp/communes)
//
// =============================================================================
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/lambda"

	"presse-relay/internal/logger"
	"presse-relay/internal/presse"
)

// Event is the Lambda invocation payload. Every field is optional and
// overrides the corresponding environment variable.
type Event struct {
	Keyword   string `json:"keyword"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

// Response はLambdaレスポンス
type Response struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Found      int    `json:"found"`
	Clipped    int    `json:"clipped"`
}

// LambdaConfig は環境変数から読み込む設定
type LambdaConfig struct {
	Keyword          string
	DaysBack         int
	CacheDir         string
	NotionToken      string
	NotionDatabaseID string
}

func loadConfig() LambdaConfig {
	daysBack := 1
	if v := os.Getenv("DAYS_BACK"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			daysBack = n
		}
	}
	cacheDir := os.Getenv("COMMUNES_CACHE_DIR")
	if cacheDir == "" {
		cacheDir = "/tmp/communes" // Lambdaで書き込めるのは/tmpだけ
	}
	return LambdaConfig{
		Keyword:          os.Getenv("KEYWORD"),
		DaysBack:         daysBack,
		CacheDir:         cacheDir,
		NotionToken:      os.Getenv("NOTION_TOKEN"),
		NotionDatabaseID: os.Getenv("NOTION_DATABASE_ID"),
	}
}

// Handler はLambdaのメインハンドラー
func Handler(ctx context.Context, event Event) (Response, error) {
	log, err := logger.New("info")
	if err != nil {
		return Response{StatusCode: 500, Message: err.Error()}, err
	}
	defer log.Sync()

	cfg := loadConfig()
	if cfg.NotionToken == "" {
		err := fmt.Errorf("NOTION_TOKEN is required")
		return Response{StatusCode: 400, Message: err.Error()}, err
	}
	if cfg.NotionDatabaseID == "" {
		err := fmt.Errorf("NOTION_DATABASE_ID is required")
		return Response{StatusCode: 400, Message: err.Error()}, err
	}

	keyword := event.Keyword
	if keyword == "" {
		keyword = cfg.Keyword
	}
	if keyword == "" {
		err := fmt.Errorf("keyword is required (event payload or KEYWORD env)")
		return Response{StatusCode: 400, Message: err.Error()}, err
	}

	params := presse.SearchParams{
		Keyword:   keyword,
		StartDate: event.StartDate,
		EndDate:   event.EndDate,
	}
	if params.StartDate == "" {
		params.StartDate = time.Now().UTC().AddDate(0, 0, -cfg.DaysBack).Format("2006-01-02")
	}

	log.Infow("recherche lancée", "keyword", keyword, "startDate", params.StartDate, "endDate", params.EndDate)

	fetch := presse.DefaultFetchConfig()
	gaz := presse.NewGazetteer(cfg.CacheDir, 24*time.Hour, nil, fetch.Client, log)
	sources := presse.NewSourceRegistry(gaz, fetch, nil, log)
	agg := presse.NewAggregator(sources, log)

	articles, err := agg.SearchAll(ctx, params)
	if err != nil {
		return Response{StatusCode: 500, Message: err.Error(), Found: len(articles)}, err
	}

	nc, err := presse.NewNotionClipper(cfg.NotionToken, cfg.NotionDatabaseID, log)
	if err != nil {
		return Response{StatusCode: 500, Message: err.Error(), Found: len(articles)}, err
	}
	clipped, err := nc.ClipAll(ctx, articles)
	if err != nil {
		return Response{StatusCode: 500, Message: err.Error(), Found: len(articles), Clipped: clipped}, err
	}

	log.Infow("recherche terminée", "found", len(articles), "clipped", clipped)
	return Response{
		StatusCode: 200,
		Message:    fmt.Sprintf("%d articles trouvés, %d enregistrés dans Notion", len(articles), clipped),
		Found:      len(articles),
		Clipped:    clipped,
	}, nil
}

func main() {
	lambda.Start(Handler)
}
