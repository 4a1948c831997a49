// =============================================================================
// crawler.go - 検索結果のページネーションクロール
// =============================================================================
//
// 1つのCrawler型が3紙すべてを担当し、差分はSourceConfigに寄せています：
// 検索URLの組み立て、抽出戦略の順序、バッチサイズ、待機時間、分類器。
//
// 【クロールの流れ】
//   ページ取得 → ティーザー抽出 → 地域分類（詳細取得の前！） →
//   詳細ページをバッチ処理 → 日付範囲チェック → sink へ emit → 次ページ
//
// 【停止条件】
//   - 開始日より古い記事を検出（検索結果は新しい順なのでそれ以降は不要）
//   - ティーザーが1件も無いページ
//   - EmptyStopAfterページを超えても有効記事ゼロ
//   - MaxPages 到達、または ctx キャンセル
//
// =============================================================================
package presse

import (
	"context"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// DefaultMaxPages bounds a single crawl regardless of configuration.
const DefaultMaxPages = 100

// DeptTagger assigns department codes to an article from its headline and
// its parsed detail page. Must run before ExtractContent, which may mutate
// the document.
type DeptTagger func(headline string, doc *goquery.Document) []string

// SourceConfig is everything that differs between the three newspapers.
type SourceConfig struct {
	ID      string // 安定ID（"progres" など、APIパスにも使う）
	Name    string // 表示名（"Le Progrès"）
	BaseURL string

	// SearchURL builds the results-page URL for a keyword and 1-based page.
	SearchURL func(keyword string, page int) string

	BatchSize      int           // 詳細ページの同時取得数（1 = 逐次）
	PageDelay      time.Duration // ページ間の待機
	BatchDelay     time.Duration // バッチ間の待機
	ErrorDelay     time.Duration // ページ取得失敗後のペナルティ待機
	StopOnPageErr  bool          // true: ページ取得失敗で打ち切り / false: 次ページへ
	EmptyStopAfter int           // このページ数を超えて有効記事ゼロなら打ち切り
	MaxPages       int           // 0 = DefaultMaxPages

	DateStrategies  []DateStrategy
	TitleStrategies []TitleStrategy
	Content         ContentConfig
	Classifier      Classifier
	Departments     DeptTagger
}

// Crawler walks one newspaper's search results. Stateless between calls:
// the per-crawl dedup set lives in Search.
type Crawler struct {
	cfg   SourceConfig
	fetch FetchConfig
	clock Clock
	log   *zap.SugaredLogger
}

// NewCrawler builds a crawler for one source. Nil clock/logger get safe
// defaults.
func NewCrawler(cfg SourceConfig, fetch FetchConfig, clock Clock, log *zap.SugaredLogger) *Crawler {
	if cfg.MaxPages == 0 {
		cfg.MaxPages = DefaultMaxPages
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1
	}
	if clock == nil {
		clock = SystemClock()
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Crawler{cfg: cfg, fetch: fetch, clock: clock, log: log}
}

// ID returns the source's stable identifier.
func (c *Crawler) ID() string { return c.cfg.ID }

// Name returns the source's display name.
func (c *Crawler) Name() string { return c.cfg.Name }

// sleep waits d unless the context ends first.
func (c *Crawler) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Search crawls the source for params.Keyword, returning every in-range
// article. When sink is non-nil each processed batch is also sent to it as
// soon as it is ready; Search never closes sink.
func (c *Crawler) Search(ctx context.Context, params SearchParams, sink chan<- []Article) ([]Article, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	log := c.log.With("source", c.cfg.ID, "keyword", params.Keyword)
	log.Infow("crawl démarré", "startDate", params.StartDate, "endDate", params.EndDate)

	var results []Article
	seen := map[string]bool{}
	foundOlder := false

	for page := 1; page <= c.cfg.MaxPages && !foundOlder; page++ {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		pageURL := c.cfg.SearchURL(params.Keyword, page)
		doc, err := FetchDoc(ctx, c.fetch, pageURL)
		if err != nil {
			if ctx.Err() != nil {
				return results, ctx.Err()
			}
			log.Warnw("page de résultats inaccessible", "page", page, "error", err)
			if c.cfg.StopOnPageErr {
				break
			}
			// ペナルティ待機してから次ページを試す
			if err := c.sleep(ctx, c.cfg.ErrorDelay); err != nil {
				return results, err
			}
			continue
		}

		teasers := ExtractTeasers(doc, c.cfg.BaseURL)
		if len(teasers) == 0 {
			log.Infow("page sans résultats, arrêt", "page", page)
			break
		}

		// 分類は詳細取得の前。無関係な記事にHTTPリクエストを使わない。
		var relevant []TeaserItem
		for _, t := range teasers {
			if seen[t.URL] {
				continue
			}
			seen[t.URL] = true
			title := ResolveTitle(c.cfg.TitleStrategies, t.Block, t.URL)
			if c.cfg.Classifier.IsRelevant(ctx, Teaser{Headline: t.Headline, Title: title}) {
				relevant = append(relevant, t)
			}
		}
		log.Infow("page analysée", "page", page, "teasers", len(teasers), "retenus", len(relevant))

		for start := 0; start < len(relevant); start += c.cfg.BatchSize {
			end := start + c.cfg.BatchSize
			if end > len(relevant) {
				end = len(relevant)
			}

			batch, older := c.processBatch(ctx, relevant[start:end], params)
			if older {
				foundOlder = true
			}
			if len(batch) > 0 {
				results = append(results, batch...)
				if sink != nil {
					select {
					case sink <- batch:
					case <-ctx.Done():
						return results, ctx.Err()
					}
				}
			}
			if foundOlder {
				break
			}
			if end < len(relevant) {
				if err := c.sleep(ctx, c.cfg.BatchDelay); err != nil {
					return results, err
				}
			}
		}

		if page > c.cfg.EmptyStopAfter && len(results) == 0 {
			log.Infow("aucun article pertinent, abandon", "page", page)
			break
		}
		if !foundOlder {
			if err := c.sleep(ctx, c.cfg.PageDelay); err != nil {
				return results, err
			}
		}
	}

	log.Infow("crawl terminé", "articles", len(results))
	return results, nil
}

// processBatch fetches a slice of teasers concurrently. older reports whether
// any article predates the requested start date, which ends the crawl.
func (c *Crawler) processBatch(ctx context.Context, batch []TeaserItem, params SearchParams) ([]Article, bool) {
	type outcome struct {
		article *Article
		older   bool
	}
	outcomes := make([]outcome, len(batch))

	done := make(chan int, len(batch))
	for i, t := range batch {
		go func(i int, t TeaserItem) {
			a, older := c.processTeaser(ctx, t, params)
			outcomes[i] = outcome{article: a, older: older}
			done <- i
		}(i, t)
	}
	for range batch {
		<-done
	}

	var articles []Article
	older := false
	for _, o := range outcomes {
		if o.older {
			older = true
		}
		if o.article != nil {
			articles = append(articles, *o.article)
		}
	}
	return articles, older
}

// processTeaser fetches one article page and builds the Article. Returns
// (nil, false) on skip, (nil, true) when the article predates the window.
func (c *Crawler) processTeaser(ctx context.Context, t TeaserItem, params SearchParams) (*Article, bool) {
	doc, err := FetchDoc(ctx, c.fetch, t.URL)
	if err != nil {
		c.log.Warnw("article inaccessible, ignoré", "source", c.cfg.ID, "url", t.URL, "error", err)
		return nil, false
	}

	now := c.clock.Now()
	date := ResolveDate(c.cfg.DateStrategies, doc, t.URL, now)

	// 壊れた下限で全記事を「古い」と誤判定しないようにする
	if params.StartDate != "" && isISODay(params.StartDate) && normalizeDate(date) < params.StartDate {
		c.log.Debugw("article antérieur à la fenêtre, fin de crawl", "url", t.URL, "date", date)
		return nil, true
	}
	if !DateInRange(date, params.StartDate, params.EndDate) {
		return nil, false
	}

	// 県タグ付けは本文抽出より先（readabilityがDOMを書き換えるため）
	var depts []string
	if c.cfg.Departments != nil {
		depts = c.cfg.Departments(t.Headline, doc)
	}

	title := ResolveTitle(c.cfg.TitleStrategies, t.Block, t.URL)
	if title == "" {
		title = t.Headline
	}
	content := ExtractContent(doc, t.URL, t.Description, c.cfg.Content)

	return &Article{
		ID:            GenerateID(t.URL),
		URL:           t.URL,
		Headline:      t.Headline,
		Title:         title,
		Description:   t.Description,
		Content:       content,
		Date:          date,
		Departements:  depts,
		SourceJournal: c.cfg.ID,
		SourceName:    c.cfg.Name,
	}, false
}
