package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"presse-relay/internal/presse"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubSource replays canned batches through the Searcher contract.
type stubSource struct {
	id      string
	name    string
	batches [][]presse.Article
}

func (s *stubSource) ID() string   { return s.id }
func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Search(ctx context.Context, params presse.SearchParams, sink chan<- []presse.Article) ([]presse.Article, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	var all []presse.Article
	for _, batch := range s.batches {
		all = append(all, batch...)
		if sink != nil {
			select {
			case sink <- batch:
			case <-ctx.Done():
				return all, ctx.Err()
			}
		}
	}
	return all, nil
}

// offlineGazetteer builds a gazetteer whose geo API is unreachable, so every
// lookup resolves through the hardcoded alias lists.
func offlineGazetteer(t *testing.T) *presse.Gazetteer {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // 即close：接続拒否で高速に失敗する

	g := presse.NewGazetteer(t.TempDir(), time.Hour, nil, &http.Client{Timeout: time.Second}, nil)
	return g.WithBaseURL(srv.URL)
}

func testRouter(t *testing.T) *gin.Engine {
	t.Helper()
	sources := map[string]presse.Searcher{
		"progres": &stubSource{id: "progres", name: "Le Progrès", batches: [][]presse.Article{
			{{ID: "a", URL: "https://example.fr/a", Date: "2025-04-10", SourceJournal: "progres"}},
			{{ID: "b", URL: "https://example.fr/b", Date: "2025-04-28", SourceJournal: "progres"}},
		}},
		"alsace": &stubSource{id: "alsace", name: "L'Alsace", batches: [][]presse.Article{
			{{ID: "c", URL: "https://example.fr/c", Date: "2025-04-20", SourceJournal: "alsace"}},
		}},
	}
	return NewRouter(&Handler{
		Agg: presse.NewAggregator(sources, nil),
		Gaz: offlineGazetteer(t),
	})
}

func doRequest(router *gin.Engine, method, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestBanner(t *testing.T) {
	w := doRequest(testRouter(t), http.MethodGet, "/api")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "API Revue Presse Multi-Départements", body["message"])
	assert.Equal(t, "operational", body["status"])
	assert.NotEmpty(t, body["version"])
}

func TestStreamArticlesRequiresKeyword(t *testing.T) {
	w := doRequest(testRouter(t), http.MethodGet, "/api/articles/all/search/stream")
	require.Equal(t, http.StatusBadRequest, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Le mot-clé est requis", body["message"])
}

func TestSearchAllBatch(t *testing.T) {
	w := doRequest(testRouter(t), http.MethodGet, "/api/articles/all/search?keyword=test")
	require.Equal(t, http.StatusOK, w.Code)

	var articles []presse.Article
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &articles))
	require.Len(t, articles, 3)
	// 日付降順
	assert.Equal(t, "b", articles[0].ID)
	assert.Equal(t, "c", articles[1].ID)
	assert.Equal(t, "a", articles[2].ID)
}

// parseSSE splits an SSE body into decoded events, ignoring comments.
func parseSSE(t *testing.T, body string) []presse.Event {
	t.Helper()
	var events []presse.Event
	for _, chunk := range strings.Split(body, "\n\n") {
		chunk = strings.TrimSpace(chunk)
		if chunk == "" || strings.HasPrefix(chunk, ":") {
			continue
		}
		require.True(t, strings.HasPrefix(chunk, "data: "), "unexpected SSE chunk: %q", chunk)
		var ev presse.Event
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(chunk, "data: ")), &ev))
		events = append(events, ev)
	}
	return events
}

func TestStreamArticles(t *testing.T) {
	w := doRequest(testRouter(t), http.MethodGet, "/api/articles/all/search/stream?keyword=%C3%A9olien")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	events := parseSSE(t, w.Body.String())
	require.NotEmpty(t, events)

	assert.Equal(t, presse.EventInit, events[0].Type)
	assert.NotEmpty(t, events[0].SearchID)
	assert.Equal(t, "Recherche démarrée", events[0].Message)

	last := events[len(events)-1]
	assert.Equal(t, presse.EventComplete, last.Type)
	assert.Equal(t, 3, last.Total)

	streamed := 0
	for _, ev := range events[1 : len(events)-1] {
		require.Equal(t, presse.EventArticles, ev.Type)
		assert.Equal(t, events[0].SearchID, ev.SearchID, "searchId is stable across the stream")
		streamed += ev.Count
	}
	assert.Equal(t, 3, streamed)
}

func TestSearchSource(t *testing.T) {
	t.Run("known source", func(t *testing.T) {
		w := doRequest(testRouter(t), http.MethodGet, "/api/articles/progres/search?keyword=test")
		require.Equal(t, http.StatusOK, w.Code)

		var body struct {
			Source   string           `json:"source"`
			Count    int              `json:"count"`
			Articles []presse.Article `json:"articles"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "progres", body.Source)
		assert.Equal(t, 2, body.Count)
		// 日付降順
		assert.Equal(t, "b", body.Articles[0].ID)
	})

	t.Run("unknown source", func(t *testing.T) {
		w := doRequest(testRouter(t), http.MethodGet, "/api/articles/figaro/search?keyword=test")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("missing keyword", func(t *testing.T) {
		w := doRequest(testRouter(t), http.MethodGet, "/api/articles/progres/search")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestDeptCommunes(t *testing.T) {
	t.Run("known department falls back to aliases offline", func(t *testing.T) {
		w := doRequest(testRouter(t), http.MethodGet, "/api/communes-unified/39")
		require.Equal(t, http.StatusOK, w.Code)

		var body struct {
			Departement string   `json:"departement"`
			Count       int      `json:"count"`
			Communes    []string `json:"communes"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "39", body.Departement)
		assert.Contains(t, body.Communes, "Jura")
	})

	t.Run("unknown department", func(t *testing.T) {
		w := doRequest(testRouter(t), http.MethodGet, "/api/communes-unified/75")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestAllCommunes(t *testing.T) {
	w := doRequest(testRouter(t), http.MethodGet, "/api/communes-unified")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Count    int      `json:"count"`
		Communes []string `json:"communes"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Positive(t, body.Count)
	assert.Contains(t, body.Communes, "France")
}

func TestPopulateCommunesReportsErrorsOffline(t *testing.T) {
	w := doRequest(testRouter(t), http.MethodPost, "/api/communes-unified/populate")
	require.Equal(t, http.StatusMultiStatus, w.Code)

	var stats presse.PopulateStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.NotEmpty(t, stats.Errors)
}

func TestUIPathExport(t *testing.T) {
	w := doRequest(testRouter(t), http.MethodGet, "/api/uipath/articles")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Count   int `json:"count"`
		Targets []struct {
			URL    string `json:"url"`
			Source string `json:"source"`
		} `json:"targets"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, 3, body.Count)
	assert.Contains(t, body.Targets[0].URL, "{keyword}")
}
