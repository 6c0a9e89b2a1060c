package tools

import (
	"context"
	"html"
	"strings"

	"github.com/petasbytes/chatloop/internal/naver"
)

// NewsSearcher is the external search capability behind search_news.
type NewsSearcher interface {
	SearchNews(ctx context.Context, q naver.Query) (*naver.Result, error)
}

type SearchNewsInput struct {
	Query   string `json:"query" jsonschema_description:"News keyword or topic to search for."`
	Display int    `json:"display,omitempty" jsonschema_description:"Number of articles to return, 1-100 (default 10)."`
	Sort    string `json:"sort,omitempty" jsonschema:"enum=sim,enum=date" jsonschema_description:"sim for relevance (default), date for newest first."`
}

// Article is the compact per-article shape returned to the model.
type Article struct {
	Title       string `json:"title"`
	Link        string `json:"link"`
	Description string `json:"description,omitempty"`
	Published   string `json:"published,omitempty"`
}

type SearchNewsOutput struct {
	Total    int       `json:"total"`
	Articles []Article `json:"articles"`
}

const SearchNewsName = "search_news"

const maxNewsDisplay = 100

// SearchNewsDefinition builds the search_news tool over s.
func SearchNewsDefinition(s NewsSearcher) ToolDefinition {
	return NewTypedTool(SearchNewsName,
		"Search recent news articles. Use when the user asks for news about a topic or keyword.",
		func(ctx context.Context, in SearchNewsInput) (any, error) {
			return searchNews(ctx, s, in)
		})
}

func searchNews(ctx context.Context, s NewsSearcher, in SearchNewsInput) (SearchNewsOutput, error) {
	q := strings.TrimSpace(in.Query)
	if q == "" {
		return SearchNewsOutput{}, &ArgumentError{Field: "query", Reason: "must not be empty"}
	}
	display := in.Display
	if display > maxNewsDisplay {
		display = maxNewsDisplay
	}
	sort := in.Sort
	if sort != "" && sort != "sim" && sort != "date" {
		return SearchNewsOutput{}, &ArgumentError{Field: "sort", Reason: `must be "sim" or "date"`}
	}

	res, err := s.SearchNews(ctx, naver.Query{Text: q, Display: display, Sort: sort})
	if err != nil {
		return SearchNewsOutput{}, err
	}
	out := SearchNewsOutput{Total: res.Total, Articles: make([]Article, 0, len(res.Items))}
	for _, it := range res.Items {
		link := it.OriginalLink
		if link == "" {
			link = it.Link
		}
		out.Articles = append(out.Articles, Article{
			Title:       plainText(it.Title),
			Link:        link,
			Description: plainText(it.Description),
			Published:   it.PubDate,
		})
	}
	return out, nil
}

var highlightTags = strings.NewReplacer("<b>", "", "</b>", "")

// plainText drops the API's highlight markup and HTML entities.
func plainText(s string) string {
	return html.UnescapeString(highlightTags.Replace(s))
}
