// =============================================================================
// uipath.go - UiPathロボット用エクスポート
// =============================================================================
//
// UiPathの自動化シナリオが巡回する検索ページのURL一覧。
// ロボット側はこのリストを読んでブラウザ自動化でアクセスするため、
// キーワードはプレースホルダ {keyword} のまま返します。
//
// =============================================================================
package api

import (
	"github.com/gin-gonic/gin"
)

// uiPathTarget is one search page a robot should visit.
type uiPathTarget struct {
	URL    string `json:"url"`
	Source string `json:"source"`
}

var uiPathTargets = []uiPathTarget{
	{URL: "https://www.leprogres.fr/recherche?q={keyword}&x=0&y=0&page=1", Source: "Le Progrès"},
	{URL: "https://www.lalsace.fr/recherche?q={keyword}&r=&zr=&page=1", Source: "L'Alsace"},
	{URL: "https://www.estrepublicain.fr/recherche?q={keyword}&page=1", Source: "L'Est Républicain"},
}

// UIPathExport returns the robot target list.
func (h *Handler) UIPathExport(c *gin.Context) {
	c.JSON(200, gin.H{
		"count":   len(uiPathTargets),
		"targets": uiPathTargets,
	})
}
