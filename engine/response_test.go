package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const doc = `<html><head><title>T</title></head><body>
<div class="a"><span>one</span></div>
<div class="a b"><span>two</span></div>
<img src="/x.png" alt="pic">
</body></html>`

func TestResponse_CSS(t *testing.T) {
	r := &Response{Body: []byte(doc)}

	els, err := r.CSS("div.a span")
	require.NoError(t, err)
	require.Len(t, els, 2)

	h, ok := els[0].(HTMLElement)
	require.True(t, ok)
	assert.Equal(t, "<span>one</span>", h.HTML())
	assert.Equal(t, "two", els[1].String())
}

func TestResponse_CSSInvalidSelector(t *testing.T) {
	r := &Response{Body: doc}
	_, err := r.CSS("div[")
	assert.Error(t, err)
}

func TestResponse_XPath(t *testing.T) {
	r := &Response{Body: doc}

	els, err := r.XPath("//div[contains(@class,'b')]/span")
	require.NoError(t, err)
	require.Len(t, els, 1)
	assert.Equal(t, "<span>two</span>", els[0].(HTMLElement).HTML())

	els, err = r.XPath("//img/@alt")
	require.NoError(t, err)
	require.Len(t, els, 1)
	_, isHTML := els[0].(HTMLElement)
	assert.False(t, isHTML, "attribute results are plain text")
	assert.Equal(t, "pic", els[0].String())

	els, err = r.XPath("//title/text()")
	require.NoError(t, err)
	require.Len(t, els, 1)
	assert.Equal(t, "T", els[0].String())
}

func TestResponse_XPathInvalidExpression(t *testing.T) {
	r := &Response{Body: doc}
	_, err := r.XPath("//div[")
	assert.Error(t, err)
}

func TestResponse_TextAndString(t *testing.T) {
	assert.Equal(t, "", (&Response{}).Text())
	assert.Equal(t, "abc", (&Response{Body: []byte("abc")}).Text())
	assert.Equal(t, "7", (&Response{Body: 7}).Text())
	assert.Equal(t, "<404 https://example.com/x>", (&Response{Status: 404, URL: "https://example.com/x"}).String())
}

func TestOptions_Readers(t *testing.T) {
	o := Options{
		"s":   "v",
		"b":   false,
		"i":   5,
		"f":   float64(7),
		"m":   map[string]string{"k": "v"},
		"bad": []int{1},
	}
	assert.Equal(t, "v", o.String("s", "x"))
	assert.Equal(t, "x", o.String("missing", "x"))
	assert.False(t, o.Bool("b", true))
	assert.True(t, o.Bool("bad", true))
	assert.Equal(t, 5, o.Int("i", 0))
	assert.Equal(t, 7, o.Int("f", 0))
	assert.Equal(t, 9, o.Int("s", 9))
	assert.Equal(t, map[string]string{"k": "v"}, o.StringMap("m"))
	assert.Nil(t, o.StringMap("bad"))
	assert.True(t, o.Has("bad"))
}
