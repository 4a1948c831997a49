// =============================================================================
// aggregate.go - 3紙同時検索とイベントストリーム
// =============================================================================
//
// すべてのソースを並行にクロールし、結果を1本にまとめます。
//
// 【fan-in】
//   各ソースは自分のsinkチャネルにバッチを流し、ソースごとの転送goroutineが
//   ソースIDを付けて共有チャネルへ中継します。集約goroutineだけが進捗状態を
//   触るので、ロックは不要です。
//
// 【失敗の扱い】
//   ソース単体の失敗は警告ログと0件貢献。検索全体は他のソースで続行します。
//
// =============================================================================
package presse

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// ErrUnknownSource is returned for a source ID absent from the registry.
var ErrUnknownSource = errors.New("source inconnue")

// Searcher is one crawlable news source.
type Searcher interface {
	ID() string
	Name() string
	Search(ctx context.Context, params SearchParams, sink chan<- []Article) ([]Article, error)
}

// Aggregator fans a search out over every registered source.
type Aggregator struct {
	sources map[string]Searcher
	log     *zap.SugaredLogger
}

// NewAggregator wraps a source registry. A nil logger means no logging.
func NewAggregator(sources map[string]Searcher, log *zap.SugaredLogger) *Aggregator {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Aggregator{sources: sources, log: log}
}

// SourceIDs returns the registered source IDs in canonical order.
func (a *Aggregator) SourceIDs() []string {
	var ids []string
	for _, id := range SourceOrder {
		if _, ok := a.sources[id]; ok {
			ids = append(ids, id)
		}
	}
	for id := range a.sources {
		if !containsString(ids, id) {
			ids = append(ids, id)
		}
	}
	return ids
}

// SearchSource runs the search against a single source.
func (a *Aggregator) SearchSource(ctx context.Context, id string, params SearchParams) ([]Article, error) {
	src, ok := a.sources[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, id)
	}
	return src.Search(ctx, params, nil)
}

// SortArticles orders articles by date descending; equal dates keep their
// relative order.
func SortArticles(articles []Article) {
	sort.SliceStable(articles, func(i, j int) bool {
		return articles[i].Date > articles[j].Date
	})
}

// SearchAll runs every source concurrently and returns the merged result,
// newest first. A failing source contributes nothing.
func (a *Aggregator) SearchAll(ctx context.Context, params SearchParams) ([]Article, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	var (
		mu  sync.Mutex
		all []Article
		wg  sync.WaitGroup
	)
	for _, id := range a.SourceIDs() {
		src := a.sources[id]
		wg.Add(1)
		go func() {
			defer wg.Done()
			articles, err := src.Search(ctx, params, nil)
			if err != nil {
				a.log.Warnw("source en échec", "source", src.ID(), "error", err)
			}
			mu.Lock()
			all = append(all, articles...)
			mu.Unlock()
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return all, err
	}
	SortArticles(all)
	return all, nil
}

// taggedBatch is what the per-source forwarders put on the shared channel.
type taggedBatch struct {
	id       string
	name     string
	articles []Article
	done     bool
	err      error
}

// SearchAllStream runs every source concurrently and streams progress events.
// The returned channel closes after the final complete event (or on context
// cancellation). Event order across sources follows arrival order.
func (a *Aggregator) SearchAllStream(ctx context.Context, params SearchParams) (<-chan Event, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	events := make(chan Event, 16)
	merged := make(chan taggedBatch)

	for _, id := range a.SourceIDs() {
		src := a.sources[id]
		go func() {
			sink := make(chan []Article)
			forwarded := make(chan struct{})
			go func() {
				for batch := range sink {
					select {
					case merged <- taggedBatch{id: src.ID(), name: src.Name(), articles: batch}:
					case <-ctx.Done():
					}
				}
				close(forwarded)
			}()

			_, err := src.Search(ctx, params, sink)
			close(sink)
			<-forwarded
			merged <- taggedBatch{id: src.ID(), name: src.Name(), done: true, err: err}
		}()
	}

	go func() {
		defer close(events)

		emit := func(e Event) {
			select {
			case events <- e:
			case <-ctx.Done():
			}
		}

		remaining := len(a.sources)
		total := 0
		progress := map[string]int{}

		for remaining > 0 {
			t := <-merged
			if t.done {
				remaining--
				if t.err != nil && ctx.Err() == nil {
					a.log.Warnw("source en échec", "source", t.id, "error", t.err)
				}
				if _, ok := progress[t.id]; !ok {
					progress[t.id] = 0
				}
				continue
			}

			total += len(t.articles)
			progress[t.id] += len(t.articles)
			emit(Event{
				Type:       EventArticles,
				Source:     t.id,
				SourceName: t.name,
				Count:      len(t.articles),
				Total:      total,
				Progress:   copyProgress(progress),
				Articles:   t.articles,
			})
		}

		if ctx.Err() != nil {
			return
		}
		emit(Event{
			Type:    EventComplete,
			Total:   total,
			Message: fmt.Sprintf("Recherche terminée : %d articles trouvés", total),
		})
	}()

	return events, nil
}

// copyProgress snapshots the progress map so emitted events stay immutable.
func copyProgress(p map[string]int) map[string]int {
	c := make(map[string]int, len(p))
	for k, v := range p {
		c[k] = v
	}
	return c
}
