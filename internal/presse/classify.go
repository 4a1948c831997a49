// =============================================================================
// classify.go - 地域関連性の判定
// =============================================================================
//
// 一覧ページのheadline（地域/カテゴリタグ）から、記事が対象地域に関連するか
// を判定します。判定は短絡評価：最初に一致したルールで確定します。
//
// 【2種類の分類器】
//   - CommuneClassifier: Le Progrès（Jura）と L'Est Républicain（25/70/90）用。
//     地域名 → 主要都市 → 関心テーマ → コミューン完全一致 → 単語/接頭辞一致
//   - AlsaceClassifier:  L'Alsace用。完全一致リスト中心で、固有名詞らしい
//     headlineのみコミューン辞書を引く追加プローブを持つ。
//
// テーマ一致（"Énergie"等）は再現率を優先した意図的なヒューリスティックです。
//
// =============================================================================
package presse

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

// Teaser is the listing-page signal the classifiers operate on.
type Teaser struct {
	Headline string
	Title    string
}

// Classifier decides whether a teaser belongs to a target region.
type Classifier interface {
	IsRelevant(ctx context.Context, t Teaser) bool
}

// CommuneSource provides the gazetteer place names a classifier matches
// against. Both classifiers take it as a function so the gazetteer stays
// injectable.
type CommuneSource func(ctx context.Context) ([]string, error)

// compoundInfixes guards the commune-prefix rule against compound commune
// names ("Lons-le-Saunier" must not match on "Lons" alone).
var compoundInfixes = []string{"-le-", "-la-", "-les-", "-sur-", "-sous-", "-en-", "-de-", "-du-", "-des-"}

// tokenPunct strips the punctuation the tokenizer ignores.
var tokenPunct = strings.NewReplacer(",", "", ".", "", ";", "", ":", "", "!", "", "?", "")

// tokenizeHeadline splits a lowercased headline into significant words:
// punctuation stripped, tokens of 2 runes or fewer dropped.
func tokenizeHeadline(headline string) []string {
	var words []string
	for _, w := range strings.Fields(strings.ToLower(headline)) {
		w = tokenPunct.Replace(w)
		if utf8.RuneCountInString(w) > 2 {
			words = append(words, w)
		}
	}
	return words
}

// matchCommune applies the exact-equality, whole-token and guarded-prefix
// rules shared by the commune-based classifiers.
func matchCommune(headline string, communes []string) (string, bool) {
	headlineLower := strings.ToLower(headline)

	// 完全一致
	for _, commune := range communes {
		if headlineLower == strings.ToLower(commune) {
			return commune, true
		}
	}

	words := tokenizeHeadline(headline)
	for _, commune := range communes {
		// 3文字以下のコミューンは誤検知が多いので飛ばす
		if utf8.RuneCountInString(commune) <= 3 {
			continue
		}
		communeLower := strings.ToLower(commune)

		// headline内の単語として一致
		for _, w := range words {
			if w == communeLower {
				return commune, true
			}
		}

		// headlineがこのコミューンで始まる（複合地名の一部は除外）
		if strings.HasPrefix(headlineLower, communeLower+" ") || strings.HasPrefix(headlineLower, communeLower+"-") {
			partOfCompound := false
			for _, infix := range compoundInfixes {
				if strings.HasPrefix(headlineLower, communeLower+infix) {
					partOfCompound = true
					break
				}
			}
			if !partOfCompound {
				return commune, true
			}
		}
	}
	return "", false
}

// -----------------------------------------------------------------------------
// CommuneClassifier
// -----------------------------------------------------------------------------

// CommuneClassifier is the substring-oriented classifier used by Le Progrès
// and L'Est Républicain.
type CommuneClassifier struct {
	MainPlaces []string // 地域・県名のバリエーション（部分一致）
	MainCities []string // 主要都市（部分一致）
	Themes     []string // 関心テーマ（部分一致、再現率優先）
	Communes   CommuneSource
	Log        *zap.SugaredLogger
}

func (c *CommuneClassifier) logger() *zap.SugaredLogger {
	if c.Log == nil {
		return zap.NewNop().Sugar()
	}
	return c.Log
}

// IsRelevant applies the decision order documented in the file header.
func (c *CommuneClassifier) IsRelevant(ctx context.Context, t Teaser) bool {
	if t.Headline == "" {
		return false
	}

	for _, place := range c.MainPlaces {
		if strings.Contains(t.Headline, place) {
			c.logger().Debugw("headline contient une région", "headline", t.Headline, "match", place)
			return true
		}
	}
	for _, city := range c.MainCities {
		if strings.Contains(t.Headline, city) {
			c.logger().Debugw("headline contient une ville principale", "headline", t.Headline, "match", city)
			return true
		}
	}
	for _, theme := range c.Themes {
		if strings.Contains(t.Headline, theme) {
			c.logger().Debugw("headline contient un thème d'intérêt", "headline", t.Headline, "match", theme)
			return true
		}
	}

	communes, err := c.Communes(ctx)
	if err != nil {
		c.logger().Warnw("liste des communes indisponible", "error", err)
		return false
	}
	if match, ok := matchCommune(t.Headline, communes); ok {
		c.logger().Debugw("headline correspond à une commune", "headline", t.Headline, "commune", match)
		return true
	}
	return false
}

// -----------------------------------------------------------------------------
// AlsaceClassifier
// -----------------------------------------------------------------------------

// reProperNoun matches a capitalized word sequence ("Kaysersberg",
// "Sainte-Marie-aux-Mines" fails on lowercase infix - intentionally strict).
var reProperNoun = regexp.MustCompile(`^[A-Z][a-zéèêëàâäôöùûüç]+([-\s][A-Z][a-zéèêëàâäôöùûüç]+)*$`)

// AlsaceClassifier is the exact-match-oriented classifier used by L'Alsace,
// whose listing tags are cleaner than the other two papers'.
type AlsaceClassifier struct {
	ExactHeadlines   []string // 地域を示すheadlineの完全一致リスト
	MajorCities      []string // 主要都市（完全一致）
	CommonCategories []string // タイトル照合が必要な汎用カテゴリ
	ThemesOfInterest []string // タイトルに地域言及があれば通すテーマ
	Communes         CommuneSource
	Log              *zap.SugaredLogger
}

func (c *AlsaceClassifier) logger() *zap.SugaredLogger {
	if c.Log == nil {
		return zap.NewNop().Sugar()
	}
	return c.Log
}

// titleMentionsRegion reports whether the title names a region token or a
// major city.
func (c *AlsaceClassifier) titleMentionsRegion(title string) bool {
	for _, region := range c.ExactHeadlines {
		if strings.Contains(title, region) {
			return true
		}
	}
	for _, city := range c.MajorCities {
		if strings.Contains(title, city) {
			return true
		}
	}
	return false
}

// IsRelevant applies the L'Alsace decision order.
func (c *AlsaceClassifier) IsRelevant(ctx context.Context, t Teaser) bool {
	if t.Headline == "" {
		return false
	}

	if containsString(c.ExactHeadlines, t.Headline) {
		c.logger().Debugw("headline régional exact", "headline", t.Headline)
		return true
	}
	if containsString(c.MajorCities, t.Headline) {
		c.logger().Debugw("headline est une ville majeure", "headline", t.Headline)
		return true
	}

	// 汎用カテゴリはタイトル側で地域言及を確認する
	if containsString(c.CommonCategories, t.Headline) && t.Title != "" && c.titleMentionsRegion(t.Title) {
		c.logger().Debugw("catégorie commune avec mention régionale dans le titre", "headline", t.Headline, "title", t.Title)
		return true
	}

	// 固有名詞らしいheadlineだけコミューン辞書を引く
	if reProperNoun.MatchString(t.Headline) {
		communes, err := c.Communes(ctx)
		if err != nil {
			c.logger().Warnw("liste des communes indisponible", "error", err)
		} else {
			headlineLower := strings.ToLower(t.Headline)
			for _, commune := range communes {
				if headlineLower == strings.ToLower(commune) {
					c.logger().Debugw("headline est une commune", "headline", t.Headline, "commune", commune)
					return true
				}
			}
		}
	}

	if containsString(c.ThemesOfInterest, t.Headline) && t.Title != "" {
		for _, region := range c.ExactHeadlines {
			if strings.Contains(t.Title, region) {
				c.logger().Debugw("thème d'intérêt avec mention régionale", "headline", t.Headline, "region", region)
				return true
			}
		}
	}

	return false
}
