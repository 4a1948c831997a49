package presse

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listingHTML = `<html><body>
<article class="tertiary">
  <a href="/economie/2025/04/28/le-parc-eolien-de-champagnole-inaugure.html">
    <span class="headline">Jura</span>
    <h2><span class="flagPaid">Abonnés</span> Le parc éolien de Champagnole inauguré</h2>
    <span class="desc">Le chantier aura duré deux ans.</span>
    <span class="publish">Hier à 18:02</span>
  </a>
</article>
<article class="tertiary">
  <a href="https://www.leprogres.fr/sport/2025/04/28/psg-om-le-resume.html">
    <span class="headline">Football</span>
    <h2>Sport PSG-OM, le résumé</h2>
  </a>
</article>
<article>
  <span class="headline">Jura</span>
  <a href="/economie/2025/04/28/le-parc-eolien-de-champagnole-inaugure.html">doublon</a>
</article>
</body></html>`

func TestExtractTeasers(t *testing.T) {
	doc := docFromHTML(t, listingHTML)
	items := ExtractTeasers(doc, "https://www.leprogres.fr")

	require.Len(t, items, 2, "duplicate URLs collapse to one teaser")

	first := items[0]
	assert.Equal(t, "https://www.leprogres.fr/economie/2025/04/28/le-parc-eolien-de-champagnole-inaugure.html", first.URL)
	assert.Equal(t, "Jura", first.Headline)
	assert.Equal(t, "Le chantier aura duré deux ans.", first.Description)
	assert.Equal(t, "Hier à 18:02", first.ListDate)

	assert.Equal(t, "Football", items[1].Headline)
}

func TestExtractTeasersEmptyPage(t *testing.T) {
	doc := docFromHTML(t, `<html><body><div>Aucun résultat</div></body></html>`)
	assert.Empty(t, ExtractTeasers(doc, "https://www.leprogres.fr"))
}

func TestCleanTitle(t *testing.T) {
	assert.Equal(t, "Un titre propre", CleanTitle("  Un   titre PREMIUM propre "))
	assert.Equal(t, "Réservé", CleanTitle("Réservé abonnés"))
}

func TestTitleFromSlug(t *testing.T) {
	t.Run("rebuilds from last segment", func(t *testing.T) {
		got := TitleFromSlug(nil, "https://www.leprogres.fr/economie/2025/04/28/le-parc-eolien-inaugure.html")
		assert.Equal(t, "Le Parc Eolien Inaugure", got)
	})

	t.Run("rejects short segments", func(t *testing.T) {
		assert.Empty(t, TitleFromSlug(nil, "https://www.leprogres.fr/eco.html"))
	})
}

func TestTitleStrategiesOrder(t *testing.T) {
	doc := docFromHTML(t, `<article>
		<h2><span class="flagPaid">Premium</span> Titre payant complet</h2>
	</article>`)
	block := doc.Find("article").First()

	t.Run("flagPaid h2 wins", func(t *testing.T) {
		title := ResolveTitle(
			[]TitleStrategy{TitleFromFlagPaidH2, TitleFromAnyH2, TitleFromSlug},
			block, "https://www.lalsace.fr/article-quelconque.html")
		assert.Equal(t, "Titre payant complet", title)
	})

	t.Run("plain h2 drops its category prefix", func(t *testing.T) {
		doc := docFromHTML(t, `<article><h2>Région Une nouvelle ligne de bus</h2></article>`)
		block := doc.Find("article").First()
		title := ResolveTitle(
			[]TitleStrategy{TitleFromFlagPaidH2, TitleFromAnyH2, TitleFromSlug},
			block, "https://www.lalsace.fr/x.html")
		assert.Equal(t, "Une nouvelle ligne de bus", title)
	})

	t.Run("slug is the last resort", func(t *testing.T) {
		doc := docFromHTML(t, `<article><a href="#">sans titre</a></article>`)
		block := doc.Find("article").First()
		title := ResolveTitle(
			[]TitleStrategy{TitleFromFlagPaidH2, TitleFromAnyH2, TitleFromSlug},
			block, "https://www.lalsace.fr/une-nouvelle-ligne-de-bus.html")
		assert.Equal(t, "Une Nouvelle Ligne De Bus", title)
	})
}

func TestTitlePreferSlug(t *testing.T) {
	pageURL := "https://www.leprogres.fr/economie/2025/04/28/le-parc-eolien-de-champagnole-inaugure.html"

	t.Run("coherent html title is kept", func(t *testing.T) {
		doc := docFromHTML(t, `<article><h2>Rubrique Le parc éolien de Champagnole inauguré</h2></article>`)
		block := doc.Find("article").First()
		got := TitlePreferSlug(block, pageURL)
		assert.Equal(t, "Le parc éolien de Champagnole inauguré", got)
	})

	t.Run("stale html title loses to the slug", func(t *testing.T) {
		doc := docFromHTML(t, `<article><h2>Rubrique Horoscope du jour et météo</h2></article>`)
		block := doc.Find("article").First()
		got := TitlePreferSlug(block, pageURL)
		assert.Equal(t, "Le Parc Eolien De Champagnole Inaugure", got)
	})

	t.Run("no html title falls back to slug", func(t *testing.T) {
		doc := docFromHTML(t, `<article></article>`)
		block := doc.Find("article").First()
		got := TitlePreferSlug(block, pageURL)
		assert.Equal(t, "Le Parc Eolien De Champagnole Inaugure", got)
	})
}

func TestExtractContentSelectorChain(t *testing.T) {
	cfg := ContentConfig{
		Selectors:       sharedContentSelectors,
		MinParagraphLen: 20,
	}

	t.Run("primary selector", func(t *testing.T) {
		doc := docFromHTML(t, `<html><body>
			<p class="article__paragraph">Premier paragraphe de l'article, assez long pour passer.</p>
			<p class="article__paragraph">Deuxième paragraphe de l'article, également assez long.</p>
			<p>Texte de navigation hors article mais suffisamment long aussi.</p>
		</body></html>`)
		content := ExtractContent(doc, "https://www.lalsace.fr/a.html", "", cfg)
		assert.True(t, strings.HasPrefix(content, "Premier paragraphe"))
		assert.Contains(t, content, "Deuxième paragraphe")
		assert.NotContains(t, content, "navigation")
	})

	t.Run("short paragraphs are skipped", func(t *testing.T) {
		doc := docFromHTML(t, `<html><body>
			<p class="article__paragraph">Court.</p>
			<p class="article__paragraph">Celui-ci est assez long pour être retenu dans le corps.</p>
		</body></html>`)
		content := ExtractContent(doc, "https://www.lalsace.fr/a.html", "", cfg)
		assert.NotContains(t, content, "Court.")
		assert.Contains(t, content, "assez long")
	})

	t.Run("caps at five paragraphs", func(t *testing.T) {
		var sb strings.Builder
		sb.WriteString("<html><body>")
		for i := 0; i < 8; i++ {
			sb.WriteString(`<p class="article__paragraph">Paragraphe numéroté suffisamment long pour être retenu ici.</p>`)
		}
		sb.WriteString("</body></html>")
		doc := docFromHTML(t, sb.String())
		content := ExtractContent(doc, "https://www.lalsace.fr/a.html", "", cfg)
		assert.Equal(t, 5, strings.Count(content, "Paragraphe numéroté"))
	})

	t.Run("teaser description as fallback", func(t *testing.T) {
		doc := docFromHTML(t, `<html><body><nav>menu</nav></body></html>`)
		content := ExtractContent(doc, "https://www.lalsace.fr/a.html", "Une description courte.", cfg)
		assert.Equal(t, "Une description courte.", content)
	})

	t.Run("sentinel when everything fails", func(t *testing.T) {
		doc := docFromHTML(t, `<html><body></body></html>`)
		content := ExtractContent(doc, "https://www.lalsace.fr/a.html", "", cfg)
		assert.Equal(t, NoContentSentinel, content)
	})
}

func TestResolveURL(t *testing.T) {
	base := "https://www.leprogres.fr"
	assert.Equal(t, "https://www.leprogres.fr/a/b.html", ResolveURL(base, "/a/b.html"))
	assert.Equal(t, "https://autre.fr/x", ResolveURL(base, "https://autre.fr/x"))
	assert.Empty(t, ResolveURL(base, "  "))
}

func TestGenerateIDIsStable(t *testing.T) {
	a := GenerateID("https://www.leprogres.fr/a.html")
	b := GenerateID("https://www.leprogres.fr/a.html")
	c := GenerateID("https://www.leprogres.fr/b.html")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 32)
}
