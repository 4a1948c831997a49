// =============================================================================
// dates.go - 公開日の解決と日付範囲判定
// =============================================================================
//
// 記事ページから公開日を抽出する戦略チェーンと、日付範囲フィルタを提供します。
//
// 【日付解決の戦略（ソースごとに順序が異なる）】
//   - JSON-LD の datePublished（配列・単一オブジェクト両対応）
//   - meta[property="article:published_time"]
//   - time[datetime]
//   - body class の date-YYYY-MM-DD トークン
//   - span.publish（"Hier" / "Aujourd'hui" / JJ/MM/AAAA）
//   - p.date（"lun. 28/04/2025" 形式）
//   - 記事URLの /YYYY/MM/DD/ パス
//
// どれも一致しなければクロール時点の日付（UTC）にフォールバックします。
// すべて純粋関数：ネットワークアクセスなし、時刻は引数で受け取る。
//
// =============================================================================
package presse

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Package-level compiled regex for performance (avoid recompiling on every call)
var (
	reISOPrefix = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})`)
	reBodyDate  = regexp.MustCompile(`date-(\d{4}-\d{2}-\d{2})`)
	reFRDate    = regexp.MustCompile(`(\d{2})/(\d{2})/(\d{4})`)
	reURLDate   = regexp.MustCompile(`/(\d{4})/(\d{2})/(\d{2})/`)
)

// DateStrategy extracts an ISO YYYY-MM-DD date from a parsed article page.
// Returns "" when the strategy does not apply. now is the crawl wall-clock
// used to resolve relative terms.
type DateStrategy func(doc *goquery.Document, pageURL string, now time.Time) string

// isoDay formats t as YYYY-MM-DD in UTC.
func isoDay(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// DateFromJSONLD reads datePublished out of ld+json blocks. Both the array
// form and the single-object form appear in the wild.
func DateFromJSONLD(doc *goquery.Document, _ string, _ time.Time) string {
	var found string
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var single struct {
			DatePublished string `json:"datePublished"`
		}
		raw := s.Text()

		var items []struct {
			DatePublished string `json:"datePublished"`
		}
		if err := json.Unmarshal([]byte(raw), &items); err == nil {
			for _, item := range items {
				if m := reISOPrefix.FindStringSubmatch(item.DatePublished); m != nil {
					found = m[1]
					return false
				}
			}
			return true
		}

		if err := json.Unmarshal([]byte(raw), &single); err == nil {
			if m := reISOPrefix.FindStringSubmatch(single.DatePublished); m != nil {
				found = m[1]
				return false
			}
		}
		// 壊れたJSON-LDは無視して次のブロックへ
		return true
	})
	return found
}

// DateFromMetaPublished reads the article:published_time meta property.
func DateFromMetaPublished(doc *goquery.Document, _ string, _ time.Time) string {
	content, ok := doc.Find(`meta[property="article:published_time"]`).Attr("content")
	if !ok {
		return ""
	}
	if m := reISOPrefix.FindStringSubmatch(content); m != nil {
		return m[1]
	}
	return ""
}

// DateFromTimeTag reads the first machine-readable time element.
func DateFromTimeTag(doc *goquery.Document, _ string, _ time.Time) string {
	var found string
	doc.Find("time[datetime]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		dt, _ := s.Attr("datetime")
		if m := reISOPrefix.FindStringSubmatch(dt); m != nil {
			found = m[1]
			return false
		}
		return true
	})
	return found
}

// DateFromBodyClass finds a date-YYYY-MM-DD token in the body class list.
func DateFromBodyClass(doc *goquery.Document, _ string, _ time.Time) string {
	class, ok := doc.Find("body").Attr("class")
	if !ok {
		return ""
	}
	if m := reBodyDate.FindStringSubmatch(class); m != nil {
		return m[1]
	}
	return ""
}

// DateFromPublishSpan reads the human-readable span.publish label.
// "Hier" / "Aujourd'hui" are resolved against the crawl clock; otherwise a
// JJ/MM/AAAA pattern is accepted.
func DateFromPublishSpan(doc *goquery.Document, _ string, now time.Time) string {
	sel := doc.Find("span.publish").First()
	if sel.Length() == 0 {
		return ""
	}
	text := normalizeWhitespace(sel.Text())

	switch {
	case strings.Contains(text, "Hier"):
		return isoDay(now.AddDate(0, 0, -1))
	case strings.Contains(text, "Aujourd'hui"):
		return isoDay(now)
	}
	if m := reFRDate.FindStringSubmatch(text); m != nil {
		return m[3] + "-" + m[2] + "-" + m[1]
	}
	return ""
}

// DateFromDateParagraph reads a p.date element ("lun. 28/04/2025").
func DateFromDateParagraph(doc *goquery.Document, _ string, _ time.Time) string {
	sel := doc.Find("p.date").First()
	if sel.Length() == 0 {
		return ""
	}
	if m := reFRDate.FindStringSubmatch(sel.Text()); m != nil {
		return m[3] + "-" + m[2] + "-" + m[1]
	}
	return ""
}

// DateFromURL extracts a /YYYY/MM/DD/ path segment from the article URL.
func DateFromURL(_ *goquery.Document, pageURL string, _ time.Time) string {
	if m := reURLDate.FindStringSubmatch(pageURL); m != nil {
		return m[1] + "-" + m[2] + "-" + m[3]
	}
	return ""
}

// ResolveDate runs the strategies in order and returns the first hit,
// defaulting to today's UTC date when none apply.
func ResolveDate(strategies []DateStrategy, doc *goquery.Document, pageURL string, now time.Time) string {
	for _, strat := range strategies {
		if d := strat(doc, pageURL, now); d != "" {
			return d
		}
	}
	return isoDay(now)
}

// normalizeDate converts JJ/MM/AAAA to ISO; anything else passes through.
func normalizeDate(d string) string {
	if m := reFRDate.FindStringSubmatch(d); m != nil && len(d) == 10 && d[2] == '/' {
		return m[3] + "-" + m[2] + "-" + m[1]
	}
	return d
}

// DateInRange reports whether d (ISO or JJ/MM/AAAA) falls inside the
// inclusive [start, end] window. An empty d or an absent window is always in
// range. The end bound is made inclusive by advancing it one UTC calendar day
// and rejecting with >=. An unparseable bound on either side is treated as
// absent: the caller warns, the filter stays total.
//
// Comparisons are lexicographic, which is correct for well-formed ISO dates.
func DateInRange(d, start, end string) bool {
	if d == "" {
		return true
	}
	if start == "" && end == "" {
		return true
	}

	d = normalizeDate(d)

	if start != "" && isISODay(start) && d < start {
		return false
	}

	if end != "" {
		if adjusted, ok := addOneDay(end); ok && d >= adjusted {
			return false
		}
	}
	return true
}

// addOneDay returns end + 1 calendar day in UTC. ok is false when end is not
// a parseable ISO date, which callers treat as "no upper bound".
func addOneDay(end string) (string, bool) {
	t, err := time.Parse("2006-01-02", end)
	if err != nil {
		return "", false
	}
	return isoDay(t.AddDate(0, 0, 1)), true
}

// isISODay reports whether s is a parseable YYYY-MM-DD calendar date.
func isISODay(s string) bool {
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}
