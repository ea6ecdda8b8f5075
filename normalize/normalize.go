// Package normalize coerces engine results into the fixed response shape.
//
// Every function here is total: malformed engine data degrades to an empty
// value instead of failing the request.
package normalize

import (
	"fmt"
	"log/slog"

	"github.com/use-agent/fetchgate/engine"
	"github.com/use-agent/fetchgate/models"
)

// Normalizer converts engine responses. The zero value is ready to use.
type Normalizer struct {
	// OnSelectorError, when set, is called once per failed selector with
	// "css" or "xpath".
	OnSelectorError func(kind string, err error)
}

// Normalize converts resp with the zero Normalizer.
func Normalize(resp *engine.Response, css, xpath string) models.ScrapeResponse {
	return Normalizer{}.Normalize(resp, css, xpath)
}

// Normalize builds the response for resp. CSS wins over XPath when both
// are given; a failing selector yields one descriptive entry in
// SelectedContent while the other fields are still delivered.
func (n Normalizer) Normalize(resp *engine.Response, css, xpath string) models.ScrapeResponse {
	if resp == nil {
		return models.ScrapeResponse{
			Headers: map[string]string{},
			Cookies: map[string]string{},
		}
	}
	return models.ScrapeResponse{
		URL:             resp.URL,
		Status:          resp.Status,
		Reason:          resp.Reason,
		Headers:         Headers(resp.Headers),
		Cookies:         Cookies(resp.Cookies),
		Body:            Body(resp),
		SelectedContent: n.selected(resp, css, xpath),
	}
}

func (n Normalizer) selected(resp *engine.Response, css, xpath string) []string {
	switch {
	case css != "":
		return n.run("css", "CSS", func() ([]engine.Element, error) { return resp.CSS(css) })
	case xpath != "":
		return n.run("xpath", "XPath", func() ([]engine.Element, error) { return resp.XPath(xpath) })
	}
	return nil
}

func (n Normalizer) run(kind, label string, query func() ([]engine.Element, error)) (out []string) {
	defer func() {
		if r := recover(); r != nil {
			out = n.fail(kind, label, fmt.Errorf("%v", r))
		}
	}()

	elements, err := query()
	if err != nil {
		return n.fail(kind, label, err)
	}
	out = make([]string, 0, len(elements))
	for _, el := range elements {
		out = append(out, elementString(el))
	}
	return out
}

func (n Normalizer) fail(kind, label string, err error) []string {
	slog.Debug("selector failed", "kind", kind, "error", err)
	if n.OnSelectorError != nil {
		n.OnSelectorError(kind, err)
	}
	return []string{fmt.Sprintf("%s selector error: %v", label, err)}
}

func elementString(el engine.Element) string {
	if el == nil {
		return ""
	}
	if h, ok := el.(engine.HTMLElement); ok {
		return h.HTML()
	}
	return el.String()
}
