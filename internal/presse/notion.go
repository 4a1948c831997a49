// =============================================================================
// notion.go - Notionへの記事クリップ
// =============================================================================
//
// 検索結果をNotionデータベースに保存します。レビュー担当者が毎朝
// Notion上で記事を確認するワークフロー用。
//
// 【必要な環境変数】
//   NOTION_TOKEN       - Notion Integration Token
//   NOTION_DATABASE_ID - 既存DBのID（無ければ NOTION_PAGE_ID 配下に新規作成）
//
// =============================================================================
package presse

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/jomei/notionapi"
	"go.uber.org/zap"
)

// notionTextLimit is Notion's rich-text property size limit.
const notionTextLimit = 2000

// NotionClipper saves articles into a Notion database.
type NotionClipper struct {
	client *notionapi.Client
	dbID   notionapi.DatabaseID
	log    *zap.SugaredLogger
}

// NewNotionClipper creates a clipper. databaseID may be empty when the
// database will be created via CreateDatabase.
func NewNotionClipper(token, databaseID string, log *zap.SugaredLogger) (*NotionClipper, error) {
	if token == "" {
		return nil, fmt.Errorf("NOTION_TOKEN is required")
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	nc := &NotionClipper{
		client: notionapi.NewClient(notionapi.Token(token)),
		log:    log,
	}
	if databaseID != "" {
		nc.dbID = notionapi.DatabaseID(databaseID)
	}
	return nc, nil
}

// CreateDatabase creates the clipping database under the given parent page.
func (nc *NotionClipper) CreateDatabase(ctx context.Context, pageID string) error {
	if pageID == "" {
		return fmt.Errorf("NOTION_PAGE_ID is required to create a new database")
	}

	dbRequest := &notionapi.DatabaseCreateRequest{
		Parent: notionapi.Parent{
			Type:   notionapi.ParentTypePageID,
			PageID: notionapi.PageID(pageID),
		},
		Title: []notionapi.RichText{
			{
				Text: &notionapi.Text{
					Content: "Revue de Presse Régionale",
				},
			},
		},
		Properties: notionapi.PropertyConfigs{
			"Title": notionapi.TitlePropertyConfig{
				Type: notionapi.PropertyConfigTypeTitle,
			},
			"URL": notionapi.URLPropertyConfig{
				Type: notionapi.PropertyConfigTypeURL,
			},
			"Source": notionapi.SelectPropertyConfig{
				Type: notionapi.PropertyConfigTypeSelect,
				Select: notionapi.Select{
					Options: []notionapi.Option{
						{Name: "Le Progrès", Color: notionapi.ColorBlue},
						{Name: "L'Alsace", Color: notionapi.ColorGreen},
						{Name: "L'Est Républicain", Color: notionapi.ColorPurple},
						{Name: "France 3 Régions", Color: notionapi.ColorYellow},
					},
				},
			},
			"Date": notionapi.RichTextPropertyConfig{
				Type: notionapi.PropertyConfigTypeRichText,
			},
			"Départements": notionapi.MultiSelectPropertyConfig{
				Type: notionapi.PropertyConfigTypeMultiSelect,
				MultiSelect: notionapi.Select{
					Options: []notionapi.Option{
						{Name: "25", Color: notionapi.ColorBrown},
						{Name: "39", Color: notionapi.ColorOrange},
						{Name: "67", Color: notionapi.ColorBlue},
						{Name: "68", Color: notionapi.ColorGreen},
						{Name: "70", Color: notionapi.ColorPink},
						{Name: "90", Color: notionapi.ColorRed},
					},
				},
			},
			"Extrait": notionapi.RichTextPropertyConfig{
				Type: notionapi.PropertyConfigTypeRichText,
			},
		},
	}

	db, err := nc.client.Database.Create(ctx, dbRequest)
	if err != nil {
		return fmt.Errorf("failed to create Notion database: %w", err)
	}

	nc.dbID = notionapi.DatabaseID(db.ID)
	nc.log.Infow("base Notion créée", "id", db.ID, "url", "https://notion.so/"+string(db.ID))
	return nil
}

// ClipArticle saves one article as a database page.
func (nc *NotionClipper) ClipArticle(ctx context.Context, a Article) error {
	if nc.dbID == "" {
		return fmt.Errorf("database ID not set")
	}

	properties := notionapi.Properties{
		"Title": notionapi.TitleProperty{
			Type: notionapi.PropertyTypeTitle,
			Title: []notionapi.RichText{
				{
					Text: &notionapi.Text{
						Content: a.Title,
					},
				},
			},
		},
		"URL": notionapi.URLProperty{
			Type: notionapi.PropertyTypeURL,
			URL:  a.URL,
		},
		"Source": notionapi.SelectProperty{
			Type: notionapi.PropertyTypeSelect,
			Select: notionapi.Option{
				Name: a.SourceName,
			},
		},
		"Date": notionapi.RichTextProperty{
			Type: notionapi.PropertyTypeRichText,
			RichText: []notionapi.RichText{
				{
					Text: &notionapi.Text{
						Content: a.Date,
					},
				},
			},
		},
	}

	if len(a.Departements) > 0 {
		var opts []notionapi.Option
		for _, dept := range a.Departements {
			opts = append(opts, notionapi.Option{Name: dept})
		}
		properties["Départements"] = notionapi.MultiSelectProperty{
			Type:        notionapi.PropertyTypeMultiSelect,
			MultiSelect: opts,
		}
	}

	if a.Content != "" && a.Content != NoContentSentinel {
		properties["Extrait"] = notionapi.RichTextProperty{
			Type: notionapi.PropertyTypeRichText,
			RichText: []notionapi.RichText{
				{
					Text: &notionapi.Text{
						Content: truncateText(a.Content, notionTextLimit),
					},
				},
			},
		}
	}

	pageRequest := &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: nc.dbID,
		},
		Properties: properties,
	}

	if _, err := nc.client.Page.Create(ctx, pageRequest); err != nil {
		return fmt.Errorf("failed to clip article: %w", err)
	}
	return nil
}

// ClipAll saves every article, continuing past individual failures.
// Returns the number of successfully clipped articles.
func (nc *NotionClipper) ClipAll(ctx context.Context, articles []Article) (int, error) {
	if nc.dbID == "" {
		return 0, fmt.Errorf("database ID not set")
	}

	clipped := 0
	for _, a := range articles {
		if err := nc.ClipArticle(ctx, a); err != nil {
			nc.log.Warnw("clip échoué", "url", a.URL, "error", err)
			continue
		}
		clipped++
	}
	return clipped, nil
}

// truncateText truncates text to at most maxLen bytes with an ellipsis,
// backing up to a rune boundary so accented French text stays valid UTF-8.
func truncateText(text string, maxLen int) string {
	if len(text) <= maxLen {
		return text
	}
	cut := maxLen - 3
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "..."
}
