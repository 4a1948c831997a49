// =============================================================================
// gazetteer.go - 地名辞書（コミューンキャッシュ）
// =============================================================================
//
// 県コード → 地名リスト のread-throughキャッシュ。
// geo.api.gouv.fr をバックエンドとし、3層で解決します：
//
//   メモリ（TTL付き） → JSONファイル → API取得（＋エイリアス注入）
//
// API取得に失敗した場合はその県のハードコードされたエイリアスリストを返し、
// 決してエラーを呼び出し側に伝播しません（fails soft）。
// エイリアス（県名・県番号・主要都市名）は分類器の判定材料なので、
// 取得したコミューンリストに必ず追加してからキャッシュします。
//
// =============================================================================
package presse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// GeoAPIBaseURL is the public French geographic reference API.
const GeoAPIBaseURL = "https://geo.api.gouv.fr"

// Clock abstracts wall-clock time so TTL behavior is testable.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the real wall clock.
func SystemClock() Clock { return systemClock{} }

// deptAliases maps each supported department to the synthetic tokens injected
// into its commune list. The classifier depends on these being present.
var deptAliases = map[string][]string{
	"25": {"Doubs", "25", "Besançon", "Montbéliard", "Pontarlier", "Morteau"},
	"39": {"Jura", "Jura Nord", "Jura Sud", "Haut-Jura", "Haut Jura", "39",
		"Lons-le-Saunier", "Dole", "Saint-Claude", "Champagnole", "Morez",
		"Poligny", "Arbois", "Salins-les-Bains"},
	"67": {"Bas-Rhin", "Nord Alsace", "67"},
	"68": {"Haut-Rhin", "Sud Alsace", "68"},
	"70": {"Haute-Saône", "Haute Saône", "70", "Vesoul", "Gray", "Luxeuil-les-Bains", "Lure"},
	"90": {"Territoire de Belfort", "90", "Belfort", "Delle", "Giromagny"},
}

// groupAliases maps each department group to its region-level tokens.
var groupAliases = map[string][]string{
	"est":    {"Franche-Comté", "Franche Comté", "Grand Est"},
	"alsace": {"Alsace", "Grand Est"},
}

// DeptGroups lists the department codes each cache group serves.
var DeptGroups = map[string][]string{
	"jura":   {"39"},
	"est":    {"25", "70", "90"},
	"alsace": {"67", "68"},
}

// generalTerms is appended by AllCommunes on top of every group.
var generalTerms = []string{"France", "Grand Est", "Bourgogne-Franche-Comté"}

type gazEntry struct {
	names     []string
	fetchedAt time.Time
}

// Gazetteer is the read-through place-name cache shared by all crawlers.
// Concurrent population of the same department is harmless: the fetched
// lists are equivalent, last writer wins.
type Gazetteer struct {
	baseURL string
	dir     string
	ttl     time.Duration
	clock   Clock
	client  *http.Client
	log     *zap.SugaredLogger

	mu  sync.RWMutex
	mem map[string]gazEntry
}

// NewGazetteer builds a gazetteer caching to dir with the given in-memory
// TTL. A nil clock means the system clock; a nil logger means no logging.
func NewGazetteer(dir string, ttl time.Duration, clock Clock, client *http.Client, log *zap.SugaredLogger) *Gazetteer {
	if clock == nil {
		clock = SystemClock()
	}
	if client == nil {
		client = &http.Client{Timeout: requestTimeout}
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Gazetteer{
		baseURL: GeoAPIBaseURL,
		dir:     dir,
		ttl:     ttl,
		clock:   clock,
		client:  client,
		log:     log,
		mem:     map[string]gazEntry{},
	}
}

// WithBaseURL points the gazetteer at a different geo API endpoint (tests).
func (g *Gazetteer) WithBaseURL(u string) *Gazetteer {
	g.baseURL = u
	return g
}

// cachePath returns the on-disk cache file for a department or group key.
func (g *Gazetteer) cachePath(key string) string {
	return filepath.Join(g.dir, "communes_"+key+".json")
}

// memGet returns a still-fresh in-memory entry.
func (g *Gazetteer) memGet(key string) ([]string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	e, ok := g.mem[key]
	if !ok || g.clock.Now().Sub(e.fetchedAt) >= g.ttl {
		return nil, false
	}
	return e.names, true
}

func (g *Gazetteer) memPut(key string, names []string) {
	g.mu.Lock()
	g.mem[key] = gazEntry{names: names, fetchedAt: g.clock.Now()}
	g.mu.Unlock()
}

// readFile loads a cache file; ok is false when absent or corrupt.
func (g *Gazetteer) readFile(key string) ([]string, bool) {
	b, err := os.ReadFile(g.cachePath(key))
	if err != nil {
		return nil, false
	}
	var names []string
	if err := json.Unmarshal(b, &names); err != nil {
		g.log.Warnw("cache file corrompu, ignoré", "key", key, "error", err)
		return nil, false
	}
	return names, true
}

func (g *Gazetteer) writeFile(key string, names []string) {
	if err := os.MkdirAll(g.dir, 0o755); err != nil {
		g.log.Warnw("création du répertoire cache impossible", "dir", g.dir, "error", err)
		return
	}
	b, err := json.MarshalIndent(names, "", "  ")
	if err != nil {
		return
	}
	if err := os.WriteFile(g.cachePath(key), b, 0o644); err != nil {
		g.log.Warnw("écriture du cache impossible", "key", key, "error", err)
	}
}

// fetchDept queries the geo API for one department's communes.
func (g *Gazetteer) fetchDept(ctx context.Context, dept string) ([]string, error) {
	u := fmt.Sprintf("%s/departements/%s/communes", g.baseURL, dept)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: status %s", u, resp.Status)
	}

	var communes []struct {
		Nom string `json:"nom"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&communes); err != nil {
		return nil, fmt.Errorf("réponse inattendue de l'API geo: %w", err)
	}

	names := make([]string, 0, len(communes))
	for _, c := range communes {
		names = append(names, c.Nom)
	}
	return names, nil
}

// Communes returns the place names for one department: commune names from
// the geo API plus the department's alias tokens. Never returns an error -
// on fetch failure the alias list alone is returned so the classifier keeps
// a minimal signal.
func (g *Gazetteer) Communes(ctx context.Context, dept string) ([]string, error) {
	names, _, err := g.communes(ctx, dept)
	return names, err
}

// communes resolves one department. degraded reports that the alias
// fallback was used; degraded lists are never cached, so the next lookup
// retries the API.
func (g *Gazetteer) communes(ctx context.Context, dept string) (names []string, degraded bool, err error) {
	aliases, ok := deptAliases[dept]
	if !ok {
		return nil, false, fmt.Errorf("code département non supporté: %s", dept)
	}

	if names, ok := g.memGet(dept); ok {
		return names, false, nil
	}
	if names, ok := g.readFile(dept); ok {
		g.memPut(dept, names)
		return names, false, nil
	}

	fetched, err := g.fetchDept(ctx, dept)
	if err != nil {
		g.log.Warnw("API geo indisponible, repli sur la liste minimale", "dept", dept, "error", err)
		return append([]string{}, aliases...), true, nil
	}

	names = uniqStrings(append(fetched, aliases...))
	g.writeFile(dept, names)
	g.memPut(dept, names)
	g.log.Infow("communes récupérées et mises en cache", "dept", dept, "count", len(names))
	return names, false, nil
}

// CommunesFor unions and deduplicates the place names of the requested
// departments.
func (g *Gazetteer) CommunesFor(ctx context.Context, depts []string) ([]string, error) {
	names, _, err := g.communesFor(ctx, depts)
	return names, err
}

func (g *Gazetteer) communesFor(ctx context.Context, depts []string) ([]string, bool, error) {
	var all []string
	degraded := false
	for _, dept := range depts {
		names, deptDegraded, err := g.communes(ctx, dept)
		if err != nil {
			return nil, false, err
		}
		if deptDegraded {
			degraded = true
		}
		all = append(all, names...)
	}
	return uniqStrings(all), degraded, nil
}

// GroupCommunes returns the union for a named department group with the
// group-level region tokens appended, cached under its own key. A union
// built on any fallback list is returned but not cached, so the group heals
// as soon as the geo API recovers.
func (g *Gazetteer) GroupCommunes(ctx context.Context, group string) ([]string, error) {
	depts, ok := DeptGroups[group]
	if !ok {
		return nil, fmt.Errorf("groupe non supporté: %s", group)
	}

	if names, ok := g.memGet(group); ok {
		return names, nil
	}
	if names, ok := g.readFile(group); ok {
		g.memPut(group, names)
		return names, nil
	}

	union, degraded, err := g.communesFor(ctx, depts)
	if err != nil {
		return nil, err
	}
	names := uniqStrings(append(union, groupAliases[group]...))
	if !degraded {
		g.writeFile(group, names)
		g.memPut(group, names)
	}
	return names, nil
}

// AllCommunes unions every group this gazetteer knows about plus the
// general search terms.
func (g *Gazetteer) AllCommunes(ctx context.Context) ([]string, error) {
	var all []string
	for group := range DeptGroups {
		names, err := g.GroupCommunes(ctx, group)
		if err != nil {
			return nil, err
		}
		all = append(all, names...)
	}
	return uniqStrings(append(all, generalTerms...)), nil
}

// PopulateStats reports the outcome of a forced cache population.
type PopulateStats struct {
	Generated      []string          `json:"generated"`
	Errors         map[string]string `json:"errors"`
	TotalCommunes  int               `json:"totalCommunes"`
	UniqueCommunes int               `json:"uniqueCommunes"`
}

// PopulateAll force-refreshes every department and group cache from the geo
// API. This is the only path that overwrites still-valid caches.
func (g *Gazetteer) PopulateAll(ctx context.Context) PopulateStats {
	stats := PopulateStats{Errors: map[string]string{}}

	for _, depts := range DeptGroups {
		for _, dept := range depts {
			fetched, err := g.fetchDept(ctx, dept)
			if err != nil {
				stats.Errors[dept] = err.Error()
				continue
			}
			names := uniqStrings(append(fetched, deptAliases[dept]...))
			g.writeFile(dept, names)
			g.memPut(dept, names)
			stats.Generated = append(stats.Generated, dept)
			stats.TotalCommunes += len(names)
		}
	}

	// グループキャッシュを作り直す
	for group, depts := range DeptGroups {
		union, err := g.CommunesFor(ctx, depts)
		if err != nil {
			stats.Errors[group] = err.Error()
			continue
		}
		names := uniqStrings(append(union, groupAliases[group]...))
		g.writeFile(group, names)
		g.memPut(group, names)
	}

	if all, err := g.AllCommunes(ctx); err == nil {
		stats.UniqueCommunes = len(all)
	}
	return stats
}
