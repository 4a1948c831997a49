// =============================================================================
// router.go - HTTP APIのルーティング
// =============================================================================
//
// ginベースのAPIサーバー。フロントエンド（React）とUiPathロボットが
// 利用するエンドポイントを公開します。
//
//   GET  /api                              - バナー（ヘルスチェック兼用）
//   GET  /api/articles/all/search          - 3紙同時検索（JSON一括）
//   GET  /api/articles/all/search/stream   - 3紙同時検索（SSEストリーム）
//   GET  /api/articles/:source/search      - 単一ソース検索（JSON一括）
//   GET  /api/communes-unified             - 全地名リスト
//   GET  /api/communes-unified/:dept       - 県別地名リスト
//   POST /api/communes-unified/populate    - 地名キャッシュの強制再生成
//   GET  /api/uipath/articles              - UiPath用の検索URL一覧
//
// =============================================================================
package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"presse-relay/internal/presse"
)

// Version is reported by the API banner.
const Version = "2.0.0"

// Handler bundles the dependencies of every endpoint.
type Handler struct {
	Agg       *presse.Aggregator
	Gaz       *presse.Gazetteer
	Log       *zap.SugaredLogger
	KeepAlive time.Duration // SSEのkeep-alive間隔（0 = 15秒）
}

// NewRouter wires the endpoints onto a gin engine.
func NewRouter(h *Handler) *gin.Engine {
	if h.Log == nil {
		h.Log = zap.NewNop().Sugar()
	}
	if h.KeepAlive <= 0 {
		h.KeepAlive = 15 * time.Second
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(h.Log))
	r.Use(corsMiddleware())

	api := r.Group("/api")
	{
		api.GET("", h.Banner)
		api.GET("/articles/all/search", h.SearchAllBatch)
		api.GET("/articles/all/search/stream", h.StreamArticles)
		api.GET("/articles/:source/search", h.SearchSource)
		api.GET("/communes-unified", h.AllCommunes)
		api.GET("/communes-unified/:dept", h.DeptCommunes)
		api.POST("/communes-unified/populate", h.PopulateCommunes)
		api.GET("/uipath/articles", h.UIPathExport)
	}
	return r
}

// Banner reports service identity and status.
func (h *Handler) Banner(c *gin.Context) {
	c.JSON(200, gin.H{
		"message": "API Revue Presse Multi-Départements",
		"version": Version,
		"status":  "operational",
	})
}

// requestLogger logs one line per request.
func requestLogger(log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Infow("requête",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

// corsMiddleware allows the frontend dev server to call the API directly.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
