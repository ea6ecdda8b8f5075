package cleaner

import (
	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
)

// newMarkdownConverter creates a reusable, goroutine-safe Converter. The base
// plugin drops script, style and head noise, commonmark renders the usual
// block and inline elements, and the table plugin keeps tables with minimal
// cell padding.
func newMarkdownConverter() *converter.Converter {
	return converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(
				table.WithCellPaddingBehavior(table.CellPaddingBehaviorMinimal),
			),
		),
	)
}

// ToMarkdown converts HTML to Markdown using html-to-markdown v2.
//
// Relative links and image sources are resolved against pageURL so the
// output stands on its own. An empty pageURL leaves them as they are.
func ToMarkdown(conv *converter.Converter, htmlContent string, pageURL string) (string, error) {
	if pageURL == "" {
		return conv.ConvertString(htmlContent)
	}
	return conv.ConvertString(htmlContent, converter.WithDomain(pageURL))
}
