// =============================================================================
// extract.go - 一覧ページ・記事ページからの抽出
// =============================================================================
//
// 【ティーザー抽出】
//   検索結果ページの記事ブロック（article.tertiary ほか）から
//   URL / headline / 説明 / 一覧上の日付ラベル を取り出します。
//
// 【タイトル解決】
//   順序付きの戦略リスト。ソースごとに並びが異なります：
//   - Le Progrès はURLスラッグ優先（HTML側タイトルとの整合チェック付き）
//   - L'Alsace / L'Est Républicain はHTML優先、スラッグは最後の砦
//
// 【本文抽出】
//   ソース固有のセレクタチェーン → readability → 説明文 → 代替文言
//   段落は最大5つ。L'Alsace系は20文字以下の段落を捨てます。
//
// =============================================================================
package presse

import (
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

// Package-level compiled regex for performance (avoid recompiling on every call)
var (
	rePremium   = regexp.MustCompile(`(?i)premium`)
	reAbonnes   = regexp.MustCompile(`(?i)abonnés`)
	reFirstWord = regexp.MustCompile(`^\s*\S+\s+`)
	reHTMLExt   = regexp.MustCompile(`\.html?$`)
)

// TeaserItem is one article block lifted off a search-results page.
type TeaserItem struct {
	URL         string
	Headline    string
	Description string
	ListDate    string // span.publish の生テキスト（"Hier", "12/05/2025" など）
	Block       *goquery.Selection
}

// teaserBlocks collects the candidate article blocks of a listing page.
// The three selectors overlap on purpose: the papers share a template family
// but tag their blocks inconsistently.
func teaserBlocks(doc *goquery.Document) []*goquery.Selection {
	var blocks []*goquery.Selection
	seen := map[*html.Node]bool{}

	add := func(s *goquery.Selection) {
		if s.Length() == 0 || seen[s.Get(0)] {
			return
		}
		seen[s.Get(0)] = true
		blocks = append(blocks, s)
	}

	doc.Find("article.tertiary").Each(func(_ int, s *goquery.Selection) {
		add(s)
	})
	doc.Find("span.headline").Each(func(_ int, s *goquery.Selection) {
		add(s.Closest("article"))
	})
	doc.Find("h2:has(span.flagPaid)").Each(func(_ int, s *goquery.Selection) {
		add(s.Closest("article"))
	})
	return blocks
}

// ExtractTeasers pulls the article teasers out of a search-results page,
// deduplicated by resolved URL.
func ExtractTeasers(doc *goquery.Document, baseURL string) []TeaserItem {
	var items []TeaserItem
	seenURL := map[string]bool{}

	for _, block := range teaserBlocks(doc) {
		href, ok := block.Find("a[href]").First().Attr("href")
		if !ok {
			continue
		}
		u := ResolveURL(baseURL, href)
		if u == "" || seenURL[u] {
			continue
		}
		seenURL[u] = true

		items = append(items, TeaserItem{
			URL:         u,
			Headline:    normalizeWhitespace(block.Find("span.headline").First().Text()),
			Description: normalizeWhitespace(block.Find("span.desc").First().Text()),
			ListDate:    normalizeWhitespace(block.Find("span.publish").First().Text()),
			Block:       block,
		})
	}
	return items
}

// -----------------------------------------------------------------------------
// タイトル解決
// -----------------------------------------------------------------------------

// CleanTitle strips the paywall markers and collapses whitespace.
func CleanTitle(s string) string {
	s = rePremium.ReplaceAllString(s, "")
	s = reAbonnes.ReplaceAllString(s, "")
	return normalizeWhitespace(s)
}

// TitleStrategy derives an article title from a teaser block and/or the
// article URL. Returns "" when it does not apply.
type TitleStrategy func(block *goquery.Selection, pageURL string) string

// ResolveTitle runs the strategies in order and returns the first hit.
func ResolveTitle(strategies []TitleStrategy, block *goquery.Selection, pageURL string) string {
	for _, strat := range strategies {
		if t := strat(block, pageURL); t != "" {
			return t
		}
	}
	return ""
}

// TitleFromSlug rebuilds a title from the URL's last path segment:
// hyphens become spaces, each word is capitalized. Too-short results are
// rejected (IDs, section stubs).
func TitleFromSlug(_ *goquery.Selection, pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	segs := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segs) == 0 {
		return ""
	}
	slug := reHTMLExt.ReplaceAllString(segs[len(segs)-1], "")
	words := strings.Split(slug, "-")
	for i, w := range words {
		if w == "" {
			continue
		}
		r := []rune(w)
		words[i] = strings.ToUpper(string(r[0])) + string(r[1:])
	}
	title := normalizeWhitespace(strings.Join(words, " "))
	if utf8.RuneCountInString(title) <= 5 {
		return ""
	}
	return title
}

// TitleFromFlagPaidH2 reads the h2 that carries a paywall flag, flag text
// removed.
func TitleFromFlagPaidH2(block *goquery.Selection, _ string) string {
	sel := block.Find("h2:has(span.flagPaid)").First()
	if sel.Length() == 0 {
		return ""
	}
	clone := sel.Clone()
	clone.Find("span.flagPaid").Remove()
	return CleanTitle(clone.Text())
}

// TitleFromAnyH2 reads the first h2 and strips its leading word, which on
// these sites is a category tag glued to the title.
func TitleFromAnyH2(block *goquery.Selection, _ string) string {
	sel := block.Find("h2").First()
	if sel.Length() == 0 {
		return ""
	}
	return CleanTitle(reFirstWord.ReplaceAllString(strings.TrimSpace(sel.Text()), ""))
}

// slugStopWords are too common to count as evidence that a title matches its
// URL slug.
var slugStopWords = []string{"avec", "pour", "dans", "cette", "entre", "plus"}

// slugCoherent reports whether at least two significant words of title appear
// in the URL slug. Guards against listing templates that reuse a stale h2.
func slugCoherent(title, pageURL string) bool {
	u, err := url.Parse(pageURL)
	if err != nil {
		return false
	}
	slug := strings.ToLower(u.Path)
	matches := 0
	for _, w := range strings.Fields(strings.ToLower(title)) {
		if utf8.RuneCountInString(w) <= 3 || containsString(slugStopWords, w) {
			continue
		}
		if strings.Contains(slug, w) {
			matches++
		}
	}
	return matches >= 2
}

// TitlePreferSlug is the Le Progrès strategy: the HTML title is only trusted
// when it is coherent with the URL slug, otherwise the slug-derived title
// wins.
func TitlePreferSlug(block *goquery.Selection, pageURL string) string {
	urlTitle := TitleFromSlug(block, pageURL)
	htmlTitle := TitleFromFlagPaidH2(block, pageURL)
	if htmlTitle == "" {
		htmlTitle = TitleFromAnyH2(block, pageURL)
	}

	if htmlTitle == "" {
		return urlTitle
	}
	if slugCoherent(htmlTitle, pageURL) {
		return htmlTitle
	}
	if utf8.RuneCountInString(urlTitle) > 10 {
		return urlTitle
	}
	return htmlTitle
}

// -----------------------------------------------------------------------------
// 本文抽出
// -----------------------------------------------------------------------------

const maxContentParagraphs = 5

// ContentConfig parameterizes per-source body extraction.
type ContentConfig struct {
	Selectors       []string // 優先順のCSSセレクタ
	MinParagraphLen int      // これ以下の長さの段落は捨てる（0 = 全部拾う）
}

// paragraphsFrom collects up to maxContentParagraphs texts matching sel.
func paragraphsFrom(doc *goquery.Document, sel string, minLen int) []string {
	var paras []string
	doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := normalizeWhitespace(s.Text())
		if utf8.RuneCountInString(text) > minLen {
			paras = append(paras, text)
		}
		return len(paras) < maxContentParagraphs
	})
	return paras
}

// ExtractContent resolves the article body:
//
//	セレクタチェーン → readability抽出 → メタ説明/ティーザー説明 → 代替文言
//
// Never returns "": the sentinel keeps downstream consumers total.
func ExtractContent(doc *goquery.Document, pageURL, teaserDescription string, cfg ContentConfig) string {
	for _, sel := range cfg.Selectors {
		if paras := paragraphsFrom(doc, sel, cfg.MinParagraphLen); len(paras) > 0 {
			return strings.Join(paras, "\n\n")
		}
	}

	// セレクタが全滅したらreadabilityに本文推定させる
	if text := readableText(doc, pageURL); text != "" {
		return text
	}

	if desc, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok {
		if d := normalizeWhitespace(desc); d != "" {
			return d
		}
	}
	if teaserDescription != "" {
		return teaserDescription
	}
	return NoContentSentinel
}

// readableText runs go-readability over the already-parsed document and
// returns its first paragraphs. readability mutates the tree, so this must
// stay the last extraction that touches doc.
func readableText(doc *goquery.Document, pageURL string) string {
	node := doc.Get(0)
	if node == nil {
		return ""
	}
	u, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	art, err := readability.FromDocument(node, u)
	if err != nil {
		return ""
	}

	var paras []string
	for _, line := range strings.Split(art.TextContent, "\n") {
		line = normalizeWhitespace(line)
		if utf8.RuneCountInString(line) > 20 {
			paras = append(paras, line)
		}
		if len(paras) == maxContentParagraphs {
			break
		}
	}
	return strings.Join(paras, "\n\n")
}
