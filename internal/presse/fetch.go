// =============================================================================
// fetch.go - HTTP取得共通ロジック
// =============================================================================
//
// 検索結果ページ・記事詳細ページの取得を担当します。
//
// 【リトライ方針】
//   - HTTP 429 / 503 のみリトライ対象（レート制限・一時的過負荷）
//   - 最大3回、指数バックオフ（1s, 2s, 4s）
//   - その他のエラーは即座に伝播（呼び出し側が記事/ページ単位でスキップ）
//
// =============================================================================
package presse

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const (
	maxRetries     = 3
	requestTimeout = 10 * time.Second
)

// 自然なブラウザに見せるためのUser-Agentローテーション
var userAgents = []string{
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/115.0.0.0 Safari/537.36 Edg/115.0.1901.188",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/115.0.0.0 Safari/537.36",
}

// FetchConfig groups what every outbound request needs: a pooled client and
// the header set that keeps the newspaper sites from rejecting us outright.
type FetchConfig struct {
	Client *http.Client
}

// DefaultFetchConfig returns the shared HTTP configuration.
// コネクションプーリング有効（3ソース同時クロールでコネクションを使い回す）
func DefaultFetchConfig() FetchConfig {
	return FetchConfig{
		Client: &http.Client{
			Timeout: requestTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// setBrowserHeaders applies a realistic desktop-browser header set with a
// randomly rotated User-Agent.
func setBrowserHeaders(req *http.Request) {
	host := req.URL.Hostname()
	req.Header.Set("User-Agent", userAgents[rand.Intn(len(userAgents))])
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "fr-FR,fr;q=0.9,en-US;q=0.8,en;q=0.7")
	req.Header.Set("Cache-Control", "max-age=0")
	req.Header.Set("Referer", "https://"+host+"/")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
}

// retryStatus reports whether the HTTP status is worth retrying.
func retryStatus(code int) bool {
	return code == http.StatusTooManyRequests || code == http.StatusServiceUnavailable
}

// FetchDoc retrieves u and parses it into a goquery document, retrying
// transient failures with exponential backoff (1s, 2s, 4s).
func FetchDoc(ctx context.Context, cfg FetchConfig, u string) (*goquery.Document, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			// 2^(attempt-1) 秒待ってから再試行
			wait := time.Duration(1<<(attempt-1)) * time.Second
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		setBrowserHeaders(req)

		resp, err := cfg.Client.Do(req)
		if err != nil {
			// ネットワークエラーはリトライしない（呼び出し側でスキップ）
			return nil, err
		}

		if retryStatus(resp.StatusCode) {
			resp.Body.Close()
			lastErr = fmt.Errorf("GET %s: status %d", u, resp.StatusCode)
			continue
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			resp.Body.Close()
			return nil, fmt.Errorf("GET %s: status %s", u, resp.Status)
		}

		doc, err := goquery.NewDocumentFromReader(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, err
		}
		return doc, nil
	}
	return nil, fmt.Errorf("GET %s: retries exhausted: %w", u, lastErr)
}

// ResolveURL turns a possibly relative href into an absolute URL against the
// source's base. Empty string on any parse failure.
func ResolveURL(baseURL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return base.ResolveReference(u).String()
}
