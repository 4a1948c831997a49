// =============================================================================
// articles.go - 記事検索エンドポイント
// =============================================================================
//
// 【SSEストリーム（/api/articles/all/search/stream）】
//   クロールは数分かかるので、記事バッチが揃うたびに
//   `data: {JSON}\n\n` 形式で順次送信します。イベント種別：
//
//     init     - 検索開始（searchId付き）
//     articles - あるソースからのバッチ到着（進捗マップ付き）
//     complete - 全ソース完了
//     error    - 検索を継続できない失敗
//
//   プロキシにコネクションを切られないよう、15秒ごとにSSEコメント
//   （": keep-alive"）を送ります。クライアント切断でクロールも中断。
//
// =============================================================================
package api

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"presse-relay/internal/presse"
)

// SSE payloads are hot-path: every article batch goes through here.
var fastJSON = jsoniter.ConfigCompatibleWithStandardLibrary

var reISODateParam = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// searchParams reads keyword/startDate/endDate from the query string.
// Malformed dates are logged but passed through: the range filter treats
// unparseable bounds as absent rather than failing the whole search.
func (h *Handler) searchParams(c *gin.Context) (presse.SearchParams, bool) {
	params := presse.SearchParams{
		Keyword:   c.Query("keyword"),
		StartDate: c.Query("startDate"),
		EndDate:   c.Query("endDate"),
	}
	if params.Keyword == "" {
		c.JSON(400, gin.H{"message": "Le mot-clé est requis"})
		return params, false
	}
	for name, v := range map[string]string{"startDate": params.StartDate, "endDate": params.EndDate} {
		if v != "" && !reISODateParam.MatchString(v) {
			h.Log.Warnw("format de date invalide, ignoré comme borne", "param", name, "value", v)
		}
	}
	return params, true
}

// writeSSE sends one event in SSE framing and flushes it to the client.
func writeSSE(c *gin.Context, ev presse.Event) error {
	payload, err := fastJSON.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", payload); err != nil {
		return err
	}
	c.Writer.Flush()
	return nil
}

// SearchAllBatch runs the unified search in blocking mode and returns the
// merged, date-sorted article array in one response.
func (h *Handler) SearchAllBatch(c *gin.Context) {
	params, ok := h.searchParams(c)
	if !ok {
		return
	}

	articles, err := h.Agg.SearchAll(c.Request.Context(), params)
	if err != nil {
		c.JSON(500, gin.H{"message": err.Error()})
		return
	}
	if articles == nil {
		articles = []presse.Article{}
	}
	c.JSON(200, articles)
}

// StreamArticles runs the unified search and streams results over SSE.
func (h *Handler) StreamArticles(c *gin.Context) {
	params, ok := h.searchParams(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	events, err := h.Agg.SearchAllStream(ctx, params)
	if err != nil {
		c.JSON(400, gin.H{"message": err.Error()})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	searchID := uuid.NewString()
	if err := writeSSE(c, presse.Event{
		Type:     presse.EventInit,
		SearchID: searchID,
		Message:  "Recherche démarrée",
	}); err != nil {
		return
	}

	keepAlive := time.NewTicker(h.KeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case ev, open := <-events:
			if !open {
				h.Log.Infow("stream terminé", "searchId", searchID)
				return
			}
			ev.SearchID = searchID
			if err := writeSSE(c, ev); err != nil {
				h.Log.Warnw("client déconnecté pendant l'envoi", "searchId", searchID, "error", err)
				return
			}
		case <-keepAlive.C:
			if _, err := fmt.Fprint(c.Writer, ": keep-alive\n\n"); err != nil {
				return
			}
			c.Writer.Flush()
		case <-ctx.Done():
			h.Log.Infow("client déconnecté, crawl annulé", "searchId", searchID)
			return
		}
	}
}

// SearchSource runs a blocking search against one source and returns the
// whole result set as JSON.
func (h *Handler) SearchSource(c *gin.Context) {
	params, ok := h.searchParams(c)
	if !ok {
		return
	}

	source := c.Param("source")
	articles, err := h.Agg.SearchSource(c.Request.Context(), source, params)
	if err != nil {
		if errors.Is(err, presse.ErrUnknownSource) {
			c.JSON(404, gin.H{"message": err.Error()})
		} else {
			c.JSON(500, gin.H{"message": err.Error()})
		}
		return
	}

	presse.SortArticles(articles)
	c.JSON(200, gin.H{
		"source":   source,
		"count":    len(articles),
		"articles": articles,
	})
}
