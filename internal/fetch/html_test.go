package fetch

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

func TestExtractImgSrcsCollectsAllCandidates(t *testing.T) {
	doc, err := html.Parse(strings.NewReader(`
		<html><body>
			<img src="/a.jpg">
			<div><img src="/b.jpg"></div>
			<img data-x="ignored">
			<img src="/c.jpg">
		</body></html>
	`))
	require.NoError(t, err)

	srcs := extractImgSrcs(doc)
	assert.Equal(t, []string{"/a.jpg", "/b.jpg", "/c.jpg"}, srcs)
}

func TestCryptoShuffleIsPermutation(t *testing.T) {
	items := []string{"a", "b", "c", "d", "e"}
	original := append([]string(nil), items...)

	require.NoError(t, cryptoShuffle(items))

	assert.ElementsMatch(t, original, items)
}
