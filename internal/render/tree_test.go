package render

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattsolo1/grove-coursebook/pkg/content"
	"github.com/mattsolo1/grove-coursebook/pkg/search"
)

func sampleChapters() []content.Chapter {
	return content.NewBuilder("", nil, nil).Build([]content.Record{
		{Path: "Data/1.LCG/hist.ipynb", Kind: content.PayloadRaw},
		{Path: "Data/1.LCG/lcg.py", Kind: content.PayloadRaw},
		{Path: "Data/2.GBM/paths/simulate_gbm.ipynb", Kind: content.PayloadRaw},
		{Path: "Data/2.GBM/plot.png", Kind: content.PayloadURL},
	})
}

func TestTreeFullyExpanded(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Tree(&buf, sampleChapters(), TreeOptions{}))

	want := "1.LCG\n" +
		"├ hist.ipynb\n" +
		"└ lcg.py\n" +
		"2.GBM\n" +
		"├ paths/\n" +
		"│ └ simulate_gbm.ipynb\n" +
		"└ plot.png\n"
	assert.Equal(t, want, buf.String())
}

func TestTreeCollapsedNodes(t *testing.T) {
	res := search.Filter(sampleChapters(), "gbm")

	var buf bytes.Buffer
	require.NoError(t, Tree(&buf, res.Chapters, TreeOptions{Expanded: res.ExpandKeys.Has, Labels: true}))
	assert.Equal(t, "2. GBM\n└ paths/\n  └ simulate gbm.ipynb\n", buf.String())

	buf.Reset()
	none := func(string) bool { return false }
	require.NoError(t, Tree(&buf, sampleChapters(), TreeOptions{Expanded: none}))
	assert.Equal(t, "1.LCG …\n2.GBM …\n", buf.String())
}
