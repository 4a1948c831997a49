// =============================================================================
// feeds.go - RSSフィードソース（France 3 régions）
// =============================================================================
//
// 新聞3紙のスクレイピングを補完するRSSソースです。
// gofeed ライブラリを使用してRSS/Atomフィードを解析します。
//
// 【含まれるフィード】
//   1. France 3 Bourgogne-Franche-Comté - 県 25/39/70/90 をカバー
//   2. France 3 Grand Est              - 県 67/68 をカバー
//
// フィードには地域分類器を通す一覧ページが無いので、キーワードを
// タイトル＋説明文に対して直接照合します。デフォルトでは無効
// （-feeds フラグで有効化）。
//
// =============================================================================
package presse

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"regexp"
	"strings"

	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"
)

// RegionFeed is one RSS feed with its department coverage.
type RegionFeed struct {
	URL    string
	Region string   // フィードの地域名（headlineとして使う）
	Depts  []string // この地域に対応する県コード
}

// DefaultRegionFeeds covers the same departments as the three newspapers.
var DefaultRegionFeeds = []RegionFeed{
	{
		URL:    "https://france3-regions.francetvinfo.fr/bourgogne-franche-comte/rss",
		Region: "Bourgogne-Franche-Comté",
		Depts:  []string{"25", "39", "70", "90"},
	},
	{
		URL:    "https://france3-regions.francetvinfo.fr/grand-est/rss",
		Region: "Grand Est",
		Depts:  []string{"67", "68"},
	},
}

var (
	reScriptTags = regexp.MustCompile(`(?is)<script.*?</script>`)
	reHTMLTags   = regexp.MustCompile(`<[^>]*>`)
)

// stripHTML removes tags and decodes entities from feed item HTML.
func stripHTML(s string) string {
	s = reScriptTags.ReplaceAllString(s, "")
	s = reHTMLTags.ReplaceAllString(s, "")
	return normalizeWhitespace(html.UnescapeString(s))
}

// FeedSource is a Searcher backed by RSS feeds instead of search-page
// crawling. Keyword matching happens client-side against title and
// description.
type FeedSource struct {
	feeds []RegionFeed
	fetch FetchConfig
	clock Clock
	log   *zap.SugaredLogger
}

// NewFeedSource builds the RSS source. Nil feeds means DefaultRegionFeeds.
func NewFeedSource(feeds []RegionFeed, fetch FetchConfig, clock Clock, log *zap.SugaredLogger) *FeedSource {
	if feeds == nil {
		feeds = DefaultRegionFeeds
	}
	if clock == nil {
		clock = SystemClock()
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &FeedSource{feeds: feeds, fetch: fetch, clock: clock, log: log}
}

// ID implements Searcher.
func (f *FeedSource) ID() string { return "france3" }

// Name implements Searcher.
func (f *FeedSource) Name() string { return "France 3 Régions" }

// fetchFeed retrieves and parses one RSS feed through the shared client.
func (f *FeedSource) fetchFeed(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, err
	}
	setBrowserHeaders(req)

	resp, err := f.fetch.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: status %d", feedURL, resp.StatusCode)
	}
	return gofeed.NewParser().Parse(resp.Body)
}

// Search scans every feed for keyword matches inside the date window. Each
// feed's matches go to sink as one batch.
func (f *FeedSource) Search(ctx context.Context, params SearchParams, sink chan<- []Article) ([]Article, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	keyword := strings.ToLower(params.Keyword)

	var results []Article
	seen := map[string]bool{}

	for _, rf := range f.feeds {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		feed, err := f.fetchFeed(ctx, rf.URL)
		if err != nil {
			f.log.Warnw("flux RSS inaccessible", "feed", rf.URL, "error", err)
			continue
		}

		var batch []Article
		for _, item := range feed.Items {
			title := strings.TrimSpace(item.Title)
			if title == "" || item.Link == "" || seen[item.Link] {
				continue
			}

			desc := stripHTML(item.Description)
			if !strings.Contains(strings.ToLower(title), keyword) &&
				!strings.Contains(strings.ToLower(desc), keyword) {
				continue
			}

			date := isoDay(f.clock.Now())
			if item.PublishedParsed != nil {
				date = isoDay(*item.PublishedParsed)
			} else if item.UpdatedParsed != nil {
				date = isoDay(*item.UpdatedParsed)
			}
			if !DateInRange(date, params.StartDate, params.EndDate) {
				continue
			}

			content := stripHTML(item.Content)
			if content == "" {
				content = desc
			}
			if content == "" {
				content = NoContentSentinel
			}

			seen[item.Link] = true
			batch = append(batch, Article{
				ID:            GenerateID(item.Link),
				URL:           item.Link,
				Headline:      rf.Region,
				Title:         title,
				Description:   desc,
				Content:       content,
				Date:          date,
				Departements:  rf.Depts,
				SourceJournal: f.ID(),
				SourceName:    f.Name(),
			})
		}

		f.log.Infow("flux RSS analysé", "feed", rf.URL, "items", len(feed.Items), "retenus", len(batch))
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
	}
	return results, nil
}
