package cleaner

import (
	"log/slog"
	nurl "net/url"
	"strings"
	"unicode/utf8"

	readability "github.com/go-shiori/go-readability"
)

// minArticleRunes is the shortest article text accepted as main content.
const minArticleRunes = 50

// Reasons reported in Document.Fallback when main-content extraction gives
// up and the whole page is rendered instead.
const (
	FallbackBadURL    = "page URL could not be parsed"
	FallbackNoArticle = "no article found"
	FallbackTooShort  = "article text too short"
)

// mainContent narrows rawHTML to its main article with Mozilla Readability.
// When that fails it returns the whole page and the reason.
func mainContent(rawHTML, pageURL string) (readability.Article, string) {
	u, err := nurl.Parse(pageURL)
	if err != nil {
		return wholePage(rawHTML), FallbackBadURL
	}

	article, err := readability.FromReader(strings.NewReader(rawHTML), u)
	if err != nil {
		slog.Debug("main content extraction failed", "url", pageURL, "error", err)
		return wholePage(rawHTML), FallbackNoArticle
	}
	if utf8.RuneCountInString(strings.TrimSpace(article.TextContent)) < minArticleRunes {
		return wholePage(rawHTML), FallbackTooShort
	}
	return article, ""
}

// wholePage wraps the unfiltered page in an Article.
func wholePage(rawHTML string) readability.Article {
	return readability.Article{
		Title:   documentTitle(rawHTML),
		Content: rawHTML,
	}
}
