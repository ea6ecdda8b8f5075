package cleaner

import (
	"errors"
	"fmt"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

// Output formats accepted by Render.
const (
	FormatMarkdown = "markdown"
	FormatText     = "text"
	FormatHTML     = "html"
)

// Cleaner turns fetched HTML into text an LLM client can read:
//
//	Stage 1 (optional readability): extract main content, strip nav/footer/sidebar/ads
//	Stage 2 (format):               convert to Markdown, plain text, or pass HTML through
//
// The converter is created once and reused across all requests (goroutine-safe).
type Cleaner struct {
	mdConverter *converter.Converter
}

// NewCleaner initialises the Cleaner with a pre-configured Markdown converter.
func NewCleaner() *Cleaner {
	return &Cleaner{
		mdConverter: newMarkdownConverter(),
	}
}

// Document is the rendered form of one page. Fallback is empty unless main
// content was requested and could not be isolated, in which case it names
// the reason and Content holds the whole page.
type Document struct {
	Title          string
	Content        string
	Fallback       string
	OriginalTokens int
	CleanedTokens  int
}

// Render converts rawHTML to format. When onlyMain is set, readability
// first narrows the page to its main article.
func (c *Cleaner) Render(rawHTML, sourceURL, format string, onlyMain bool) (*Document, error) {
	if strings.TrimSpace(rawHTML) == "" {
		return nil, errors.New("empty document")
	}

	var (
		article  readability.Article
		fallback string
	)
	if onlyMain {
		article, fallback = mainContent(rawHTML, sourceURL)
	} else {
		article = wholePage(rawHTML)
	}

	var content string
	switch format {
	case FormatMarkdown, "":
		md, err := ToMarkdown(c.mdConverter, article.Content, sourceURL)
		if err != nil {
			return nil, fmt.Errorf("markdown conversion failed: %w", err)
		}
		content = md
	case FormatHTML:
		content = article.Content
	case FormatText:
		content = stripTags(article.Content)
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}

	return &Document{
		Title:          article.Title,
		Content:        content,
		Fallback:       fallback,
		OriginalTokens: EstimateTokens(rawHTML),
		CleanedTokens:  EstimateTokens(content),
	}, nil
}

// stripTags is a simple helper that extracts visible text from an HTML
// fragment by parsing it with goquery. Returns trimmed plain text.
func stripTags(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}
	doc.Find("script, style, noscript").Remove()
	return strings.TrimSpace(doc.Text())
}

func documentTitle(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}
