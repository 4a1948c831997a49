// =============================================================================
// sources.go - 3紙のソース定義とレジストリ
// =============================================================================
//
// 各紙の差分（検索URL、抽出戦略の順序、分類器、待機時間、県タグ付け）を
// SourceConfig に落とし込みます。新しい新聞を足すときはここに定義を1つ
// 追加するだけです。
//
//   progres        Le Progrès           Jura (39)          逐次・慎重
//   alsace         L'Alsace             Bas/Haut-Rhin      バッチ2・リトライあり
//   estrepublicain L'Est Républicain    Doubs/H-Saône/TdB  バッチ2・リトライあり
//
// =============================================================================
package presse

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// regionalThemes are the section tags accepted by the substring classifiers.
var regionalThemes = []string{"Énergie", "Energie", "Vie quotidienne", "Social"}

// sharedContentSelectors is the selector chain of the L'Alsace template
// family (also used by L'Est Républicain).
var sharedContentSelectors = []string{
	"p.article__paragraph",
	"div.article-content p",
	"div.article p",
	"p",
}

// -----------------------------------------------------------------------------
// 県タグ付け
// -----------------------------------------------------------------------------

// deptIndicators maps a department code to the lowercased tokens whose
// presence in headline or article text tags the article with that code.
type deptIndicators struct {
	code   string
	tokens []string
}

// tagDepartments scans headline plus the article's full text for each
// department's indicator tokens. No hit tags every candidate: an article from
// a regional paper belongs somewhere in its own region.
func tagDepartments(indicators []deptIndicators, headline string, doc *goquery.Document) []string {
	haystack := strings.ToLower(headline + " " + doc.Text())

	var depts []string
	for _, ind := range indicators {
		for _, tok := range ind.tokens {
			if strings.Contains(haystack, tok) {
				depts = append(depts, ind.code)
				break
			}
		}
	}
	if len(depts) == 0 {
		for _, ind := range indicators {
			depts = append(depts, ind.code)
		}
	}
	return depts
}

var alsaceIndicators = []deptIndicators{
	{code: "67", tokens: []string{"bas-rhin", "bas rhin", "67", "nord alsace", "strasbourg", "haguenau", "schiltigheim", "sélestat", "saverne", "obernai", "wissembourg", "erstein"}},
	{code: "68", tokens: []string{"haut-rhin", "haut rhin", "68", "sud alsace", "mulhouse", "colmar", "saint-louis", "guebwiller", "thann", "altkirch", "cernay", "ensisheim"}},
}

var estIndicators = []deptIndicators{
	{code: "25", tokens: []string{"doubs", "25", "besançon", "montbéliard"}},
	{code: "70", tokens: []string{"haute-saône", "haute saône", "70", "vesoul"}},
	{code: "90", tokens: []string{"territoire de belfort", "90", "belfort"}},
}

// -----------------------------------------------------------------------------
// ソース定義
// -----------------------------------------------------------------------------

// LeProgresConfig targets the Jura coverage of Le Progrès. The site is the
// most aggressive about rate limiting, hence sequential fetches, the longest
// page delay, and giving up on the first page error.
func LeProgresConfig(gaz *Gazetteer, log *zap.SugaredLogger) SourceConfig {
	return SourceConfig{
		ID:      "progres",
		Name:    "Le Progrès",
		BaseURL: "https://www.leprogres.fr",
		SearchURL: func(keyword string, page int) string {
			return fmt.Sprintf("https://www.leprogres.fr/recherche?q=%s&x=0&y=0&page=%d", url.QueryEscape(keyword), page)
		},
		BatchSize:      1,
		PageDelay:      2 * time.Second,
		StopOnPageErr:  true,
		EmptyStopAfter: 1,
		DateStrategies: []DateStrategy{
			DateFromJSONLD,
			DateFromMetaPublished,
			DateFromTimeTag,
			DateFromBodyClass,
			DateFromURL,
		},
		TitleStrategies: []TitleStrategy{TitlePreferSlug, TitleFromSlug},
		Content: ContentConfig{
			Selectors: []string{"p.article__paragraph", "p"},
		},
		Classifier: &CommuneClassifier{
			MainPlaces: []string{"Jura", "Jura Nord", "Jura Sud", "Haut-Jura", "Haut Jura", "39"},
			Themes:     regionalThemes,
			Communes: func(ctx context.Context) ([]string, error) {
				return gaz.GroupCommunes(ctx, "jura")
			},
			Log: log,
		},
		Departments: func(string, *goquery.Document) []string {
			return []string{"39"}
		},
	}
}

// LAlsaceConfig targets the Bas-Rhin and Haut-Rhin coverage of L'Alsace.
func LAlsaceConfig(gaz *Gazetteer, log *zap.SugaredLogger) SourceConfig {
	return SourceConfig{
		ID:      "alsace",
		Name:    "L'Alsace",
		BaseURL: "https://www.lalsace.fr",
		SearchURL: func(keyword string, page int) string {
			return fmt.Sprintf("https://www.lalsace.fr/recherche?q=%s&r=&zr=&page=%d", url.QueryEscape(keyword), page)
		},
		BatchSize:      2,
		PageDelay:      time.Second,
		BatchDelay:     500 * time.Millisecond,
		ErrorDelay:     2 * time.Second,
		EmptyStopAfter: 5,
		DateStrategies: []DateStrategy{
			DateFromMetaPublished,
			DateFromJSONLD,
			DateFromTimeTag,
			DateFromPublishSpan,
			DateFromDateParagraph,
			DateFromURL,
		},
		TitleStrategies: []TitleStrategy{TitleFromFlagPaidH2, TitleFromAnyH2, TitleFromSlug},
		Content: ContentConfig{
			Selectors:       sharedContentSelectors,
			MinParagraphLen: 20,
		},
		Classifier: &AlsaceClassifier{
			ExactHeadlines: []string{
				"Alsace", "Centre-Alsace", "Nord Alsace", "Sud Alsace",
				"Bas-Rhin", "Haut-Rhin", "Région", "Régional", "Grand Est",
				"67", "68", "Eurométropole", "Strasbourgeois", "Mulhousien",
				"Colmarien", "Région de Guebwiller", "Markstein", "Politique",
			},
			MajorCities: []string{
				"Strasbourg", "Haguenau", "Schiltigheim", "Illkirch-Graffenstaden",
				"Sélestat", "Bischwiller", "Saverne", "Lingolsheim", "Obernai",
				"Mulhouse", "Colmar", "Saint-Louis", "Wittenheim", "Illzach",
				"Kingersheim", "Guebwiller", "Cernay", "Thann", "Altkirch",
			},
			CommonCategories: regionalThemes,
			ThemesOfInterest: []string{"Énergie", "Vie quotidienne", "Agriculture", "Emploi", "Logement"},
			Communes: func(ctx context.Context) ([]string, error) {
				return gaz.GroupCommunes(ctx, "alsace")
			},
			Log: log,
		},
		Departments: func(headline string, doc *goquery.Document) []string {
			return tagDepartments(alsaceIndicators, headline, doc)
		},
	}
}

// LEstRepublicainConfig targets the Franche-Comté coverage of
// L'Est Républicain (Doubs, Haute-Saône, Territoire de Belfort).
func LEstRepublicainConfig(gaz *Gazetteer, log *zap.SugaredLogger) SourceConfig {
	return SourceConfig{
		ID:      "estrepublicain",
		Name:    "L'Est Républicain",
		BaseURL: "https://www.estrepublicain.fr",
		SearchURL: func(keyword string, page int) string {
			return fmt.Sprintf("https://www.estrepublicain.fr/recherche?q=%s&page=%d", url.QueryEscape(keyword), page)
		},
		BatchSize:      2,
		PageDelay:      time.Second,
		BatchDelay:     500 * time.Millisecond,
		ErrorDelay:     2 * time.Second,
		EmptyStopAfter: 5,
		DateStrategies: []DateStrategy{
			DateFromMetaPublished,
			DateFromJSONLD,
			DateFromTimeTag,
			DateFromPublishSpan,
			DateFromDateParagraph,
			DateFromURL,
		},
		TitleStrategies: []TitleStrategy{TitleFromFlagPaidH2, TitleFromAnyH2, TitleFromSlug},
		Content: ContentConfig{
			Selectors:       sharedContentSelectors,
			MinParagraphLen: 20,
		},
		Classifier: &CommuneClassifier{
			MainPlaces: []string{
				"Doubs", "Haute-Saône", "Haute Saône", "Territoire de Belfort",
				"25", "70", "90", "Franche-Comté", "Franche Comté",
			},
			MainCities: []string{
				"Besançon", "Montbéliard", "Pontarlier", "Morteau", "Vesoul",
				"Gray", "Luxeuil-les-Bains", "Lure", "Belfort", "Delle", "Giromagny",
			},
			Themes: regionalThemes,
			Communes: func(ctx context.Context) ([]string, error) {
				return gaz.GroupCommunes(ctx, "est")
			},
			Log: log,
		},
		Departments: func(headline string, doc *goquery.Document) []string {
			return tagDepartments(estIndicators, headline, doc)
		},
	}
}

// SourceOrder is the canonical listing order for aggregate output.
var SourceOrder = []string{"progres", "alsace", "estrepublicain"}

// NewSourceRegistry builds the crawler for every known source, keyed by ID.
func NewSourceRegistry(gaz *Gazetteer, fetch FetchConfig, clock Clock, log *zap.SugaredLogger) map[string]Searcher {
	return map[string]Searcher{
		"progres":        NewCrawler(LeProgresConfig(gaz, log), fetch, clock, log),
		"alsace":         NewCrawler(LAlsaceConfig(gaz, log), fetch, clock, log),
		"estrepublicain": NewCrawler(LEstRepublicainConfig(gaz, log), fetch, clock, log),
	}
}
