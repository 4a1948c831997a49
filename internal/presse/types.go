// =============================================================================
// types.go - データ構造定義
// =============================================================================
//
// このファイルはPresse Relayシステム全体で使用するデータ構造（型）を定義します。
//
// 【このファイルで定義している型】
//   - Article:      収集した記事
//   - SearchParams: 検索条件（キーワード＋日付範囲）
//   - Event:        ストリーミング検索のイベント
//
// 【初心者向けポイント】
//   - `json:"フィールド名"`はJSONに変換する際のキー名を指定するタグ
//   - フィールド名はフロントエンドとの互換性のためフランス語のまま
//
// =============================================================================
package presse

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
)

// ErrMissingKeyword is returned when a search is attempted without a keyword.
var ErrMissingKeyword = errors.New("le mot-clé est requis pour la recherche")

// -----------------------------------------------------------------------------
// Article - 収集した記事
// -----------------------------------------------------------------------------
//
// 検索結果ページのteaserブロックから抽出し、記事詳細ページで補完した記事情報。
//
// 【フィールドの説明】
//   ID:            URLのMD5ハッシュ（同じURLなら常に同じID、重複排除に使用）
//   URL:           記事の正規URL（1回のクロール内で一意）
//   Headline:      一覧ページの地域/カテゴリタグ（関連性判定の主要シグナル）
//   Title:         記事タイトル（URLスラグ/見出しタグから優先順位付きで導出）
//   Description:   短い紹介文（本文抽出に失敗した場合のフォールバック）
//   Content:       本文抜粋（最初の約5段落）、なければ "Contenu non disponible"
//   Date:          公開日（ISO形式 YYYY-MM-DD）
//   Departements:  関連する県コード（複数県ソースのみ、判定不能なら全県）
//   SourceJournal: ソース識別子（アグリゲーターが付与）
//   SourceName:    表示用ソース名（アグリゲーターが付与）
//
type Article struct {
	ID            string   `json:"id"`
	URL           string   `json:"url"`
	Headline      string   `json:"headline"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	Content       string   `json:"content"`
	Date          string   `json:"date"`
	Departements  []string `json:"departements,omitempty"`
	SourceJournal string   `json:"sourceJournal,omitempty"`
	SourceName    string   `json:"sourceName,omitempty"`
}

// NoContentSentinel is stored in Article.Content when every extraction
// strategy comes back empty.
const NoContentSentinel = "Contenu non disponible"

// GenerateID returns the lowercase hex MD5 of the canonical article URL.
// Same URL in, same ID out - this is what makes cross-run dedup possible.
func GenerateID(url string) string {
	sum := md5.Sum([]byte(url))
	return hex.EncodeToString(sum[:])
}

// -----------------------------------------------------------------------------
// SearchParams - 検索条件
// -----------------------------------------------------------------------------
//
// StartDate / EndDate はISO形式（YYYY-MM-DD）を想定。両端を含む範囲。
// 空文字列は「制限なし」を意味する。
//
type SearchParams struct {
	Keyword   string
	StartDate string
	EndDate   string
}

// Validate checks the invariants the crawlers rely on.
func (p SearchParams) Validate() error {
	if p.Keyword == "" {
		return ErrMissingKeyword
	}
	return nil
}

// -----------------------------------------------------------------------------
// Event - ストリーミング検索イベント
// -----------------------------------------------------------------------------
//
// アグリゲーターのSearchAllStreamが返すチャネルに流れるイベント。
// Type は "articles"（バッチ到着）または "complete"（全ソース完了）。
//
type Event struct {
	Type       string         `json:"type"`
	SearchID   string         `json:"searchId,omitempty"`
	Source     string         `json:"source,omitempty"`
	SourceName string         `json:"sourceName,omitempty"`
	Count      int            `json:"count,omitempty"`
	Total      int            `json:"total,omitempty"`
	Progress   map[string]int `json:"progress,omitempty"`
	Articles   []Article      `json:"articles,omitempty"`
	Message    string         `json:"message,omitempty"`
}

// Event types emitted by the aggregator and forwarded over SSE.
const (
	EventInit     = "init"
	EventArticles = "articles"
	EventComplete = "complete"
	EventError    = "error"
)
