package spider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePage = `<html><body>
<div class="item">
	<h1>  Widget One  </h1>
	<a class="more" href="/items/1">more</a>
	<img class="photo" src="../img/one.png">
</div>
<div class="item">
	<h1>Widget Two</h1>
	<a class="more" href="https://other.example.com/items/2">more</a>
</div>
</body></html>`

func TestDocumentSelect(t *testing.T) {
	doc, err := ParseDocument([]byte(samplePage), "https://example.com/list/all")
	require.NoError(t, err)

	items, err := doc.Select("div.item")
	require.NoError(t, err)
	assert.Len(t, items, 2)

	// selecting again yields the same matches
	again, err := doc.Select("div.item")
	require.NoError(t, err)
	assert.Len(t, again, 2)

	none, err := doc.Select("div.absent")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestDocumentSelectInvalidLocator(t *testing.T) {
	doc, err := ParseDocument([]byte(samplePage), "https://example.com/list")
	require.NoError(t, err)

	_, err = doc.Select("div[")
	assert.Error(t, err)
}

func TestElementText(t *testing.T) {
	doc, err := ParseDocument([]byte(samplePage), "https://example.com/list")
	require.NoError(t, err)

	headers, err := doc.Select("h1")
	require.NoError(t, err)
	require.Len(t, headers, 2)
	assert.Equal(t, "Widget One", headers[0].Text())
	assert.Equal(t, "Widget Two", headers[1].Text())
}

func TestElementHrefResolution(t *testing.T) {
	doc, err := ParseDocument([]byte(samplePage), "https://example.com/list/all")
	require.NoError(t, err)

	links, err := doc.Select("a.more")
	require.NoError(t, err)
	require.Len(t, links, 2)

	href, ok := links[0].Href()
	require.True(t, ok)
	assert.Equal(t, "https://example.com/items/1", href)

	href, ok = links[1].Href()
	require.True(t, ok)
	assert.Equal(t, "https://other.example.com/items/2", href)
}

func TestElementImageSrcResolution(t *testing.T) {
	doc, err := ParseDocument([]byte(samplePage), "https://example.com/list/all")
	require.NoError(t, err)

	imgs, err := doc.Select("img.photo")
	require.NoError(t, err)
	require.Len(t, imgs, 1)

	src, ok := imgs[0].ImageSrc()
	require.True(t, ok)
	assert.Equal(t, "https://example.com/img/one.png", src)
}

func TestElementMissingHref(t *testing.T) {
	doc, err := ParseDocument([]byte(`<a class="x">no target</a>`), "https://example.com")
	require.NoError(t, err)

	links, err := doc.Select("a.x")
	require.NoError(t, err)
	require.Len(t, links, 1)

	_, ok := links[0].Href()
	assert.False(t, ok)
}
