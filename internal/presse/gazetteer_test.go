package presse

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock lets tests move time forward without sleeping.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{now: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// geoServer fakes geo.api.gouv.fr, counting requests per department.
func geoServer(t *testing.T, communes map[string][]string, calls map[string]int) *httptest.Server {
	t.Helper()
	var mu sync.Mutex
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// /departements/<code>/communes
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		if len(parts) != 3 || parts[0] != "departements" || parts[2] != "communes" {
			http.NotFound(w, r)
			return
		}
		dept := parts[1]
		mu.Lock()
		calls[dept]++
		mu.Unlock()

		names, ok := communes[dept]
		if !ok {
			http.Error(w, "unknown department", http.StatusNotFound)
			return
		}
		payload := []map[string]string{}
		for _, n := range names {
			payload = append(payload, map[string]string{"nom": n})
		}
		json.NewEncoder(w).Encode(payload)
	}))
}

func newTestGazetteer(t *testing.T, srv *httptest.Server, clock Clock, ttl time.Duration) *Gazetteer {
	t.Helper()
	g := NewGazetteer(t.TempDir(), ttl, clock, srv.Client(), nil)
	return g.WithBaseURL(srv.URL)
}

func TestGazetteerFetchesAndInjectsAliases(t *testing.T) {
	calls := map[string]int{}
	srv := geoServer(t, map[string][]string{"39": {"Dole", "Champagnole"}}, calls)
	defer srv.Close()

	g := newTestGazetteer(t, srv, newFakeClock(testNow), time.Hour)

	names, err := g.Communes(context.Background(), "39")
	require.NoError(t, err)

	assert.Contains(t, names, "Dole")
	assert.Contains(t, names, "Champagnole")
	// Alias tokens ride along with the fetched communes.
	assert.Contains(t, names, "Jura")
	assert.Contains(t, names, "Haut-Jura")
	assert.Contains(t, names, "39")
}

func TestGazetteerMemoryCacheHonorsTTL(t *testing.T) {
	calls := map[string]int{}
	srv := geoServer(t, map[string][]string{"39": {"Dole"}}, calls)
	defer srv.Close()

	clock := newFakeClock(testNow)
	g := newTestGazetteer(t, srv, clock, time.Hour)
	ctx := context.Background()

	_, err := g.Communes(ctx, "39")
	require.NoError(t, err)
	_, err = g.Communes(ctx, "39")
	require.NoError(t, err)
	assert.Equal(t, 1, calls["39"], "second lookup should come from memory")

	clock.Advance(2 * time.Hour)
	_, err = g.Communes(ctx, "39")
	require.NoError(t, err)
	// Expired in memory but still on disk: the file layer absorbs the miss.
	assert.Equal(t, 1, calls["39"])
}

func TestGazetteerFileReadThrough(t *testing.T) {
	calls := map[string]int{}
	srv := geoServer(t, map[string][]string{"39": {"Dole"}}, calls)
	defer srv.Close()

	dir := t.TempDir()
	g := NewGazetteer(dir, time.Hour, newFakeClock(testNow), srv.Client(), nil).WithBaseURL(srv.URL)

	_, err := g.Communes(context.Background(), "39")
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(dir, "communes_39.json"))

	// A fresh gazetteer over the same directory never hits the API.
	g2 := NewGazetteer(dir, time.Hour, newFakeClock(testNow), srv.Client(), nil).WithBaseURL(srv.URL)
	names, err := g2.Communes(context.Background(), "39")
	require.NoError(t, err)
	assert.Contains(t, names, "Dole")
	assert.Equal(t, 1, calls["39"])
}

func TestGazetteerFallsBackToAliasesOnAPIFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	g := newTestGazetteer(t, srv, newFakeClock(testNow), time.Hour)

	names, err := g.Communes(context.Background(), "39")
	require.NoError(t, err, "gazetteer must fail soft")
	assert.ElementsMatch(t, []string{
		"Jura", "Jura Nord", "Jura Sud", "Haut-Jura", "Haut Jura", "39",
		"Lons-le-Saunier", "Dole", "Saint-Claude", "Champagnole", "Morez",
		"Poligny", "Arbois", "Salins-les-Bains",
	}, names)
}

func TestGazetteerFallbackKeepsCommuneClassificationAlive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	g := newTestGazetteer(t, srv, newFakeClock(testNow), time.Hour)

	c := &CommuneClassifier{
		MainPlaces: []string{"Jura", "Jura Nord", "Jura Sud", "Haut-Jura", "Haut Jura", "39"},
		Communes: func(ctx context.Context) ([]string, error) {
			return g.Communes(ctx, "39")
		},
	}

	// geo API停止中でも主要コミューンは判定できる
	assert.True(t, c.IsRelevant(context.Background(), Teaser{Headline: "Dole"}))
	assert.True(t, c.IsRelevant(context.Background(), Teaser{Headline: "Marché de Champagnole annulé"}))
	assert.False(t, c.IsRelevant(context.Background(), Teaser{Headline: "Lyon"}))
}

func TestGazetteerUnknownDepartment(t *testing.T) {
	calls := map[string]int{}
	srv := geoServer(t, nil, calls)
	defer srv.Close()

	g := newTestGazetteer(t, srv, newFakeClock(testNow), time.Hour)
	_, err := g.Communes(context.Background(), "75")
	assert.Error(t, err)
}

func TestGazetteerGroupUnionDeduplicates(t *testing.T) {
	calls := map[string]int{}
	srv := geoServer(t, map[string][]string{
		"25": {"Besançon", "Montbéliard"},
		"70": {"Vesoul", "Besançon"}, // 重複は1つにまとまる
		"90": {"Belfort"},
	}, calls)
	defer srv.Close()

	g := newTestGazetteer(t, srv, newFakeClock(testNow), time.Hour)

	names, err := g.GroupCommunes(context.Background(), "est")
	require.NoError(t, err)

	count := 0
	for _, n := range names {
		if n == "Besançon" {
			count++
		}
	}
	assert.Equal(t, 1, count, "union must deduplicate")
	assert.Contains(t, names, "Franche-Comté")
	assert.Contains(t, names, "Grand Est")
}

func TestGazetteerGroupFallbackIsNotCached(t *testing.T) {
	downSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer downSrv.Close()

	calls := map[string]int{}
	upSrv := geoServer(t, map[string][]string{"39": {"Dole", "Poligny"}}, calls)
	defer upSrv.Close()

	dir := t.TempDir()
	g := NewGazetteer(dir, time.Hour, newFakeClock(testNow), downSrv.Client(), nil).WithBaseURL(downSrv.URL)

	names, err := g.GroupCommunes(context.Background(), "jura")
	require.NoError(t, err, "group lookup must fail soft")
	assert.Contains(t, names, "Dole", "fallback still carries the main communes")
	// 劣化した一覧は永続化しない：復旧後に再取得できるように
	assert.NoFileExists(t, filepath.Join(dir, "communes_jura.json"))

	// API復旧後、同じgazetteerが完全な一覧を取り直す
	g.WithBaseURL(upSrv.URL)
	names, err = g.GroupCommunes(context.Background(), "jura")
	require.NoError(t, err)
	assert.Contains(t, names, "Poligny")
	assert.Equal(t, 1, calls["39"], "recovered lookup goes back to the API")
	assert.FileExists(t, filepath.Join(dir, "communes_jura.json"))
}

func TestGazetteerPopulateAll(t *testing.T) {
	calls := map[string]int{}
	srv := geoServer(t, map[string][]string{
		"25": {"Besançon"},
		"39": {"Dole"},
		"67": {"Strasbourg"},
		"68": {"Mulhouse"},
		"70": {"Vesoul"},
		"90": {"Belfort"},
	}, calls)
	defer srv.Close()

	g := newTestGazetteer(t, srv, newFakeClock(testNow), time.Hour)

	stats := g.PopulateAll(context.Background())
	assert.Empty(t, stats.Errors)
	assert.ElementsMatch(t, []string{"25", "39", "67", "68", "70", "90"}, stats.Generated)
	assert.Positive(t, stats.TotalCommunes)
	assert.Positive(t, stats.UniqueCommunes)
}

func TestGazetteerAllCommunesIncludesGeneralTerms(t *testing.T) {
	calls := map[string]int{}
	srv := geoServer(t, map[string][]string{
		"25": {}, "39": {}, "67": {}, "68": {}, "70": {}, "90": {},
	}, calls)
	defer srv.Close()

	g := newTestGazetteer(t, srv, newFakeClock(testNow), time.Hour)

	names, err := g.AllCommunes(context.Background())
	require.NoError(t, err)
	assert.Contains(t, names, "France")
	assert.Contains(t, names, "Bourgogne-Franche-Comté")
}
