package content

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecords() []Record {
	return []Record{
		{Path: "Data/2.GBM/plot.png", Kind: PayloadURL, Value: "/content/Data/2.GBM/plot.png"},
		{Path: "Data/1.LCG/hist.ipynb", Kind: PayloadRaw, Value: `{"cells":[]}`},
		{Path: "Data/1.LCG/lcg.py", Kind: PayloadRaw, Value: "print(1)"},
		{Path: "Data/1.LCG/helpers/util.py", Kind: PayloadRaw, Value: "x = 1"},
		{Path: "Data/10.FFT/generic_fft.py", Kind: PayloadRaw, Value: ""},
		{Path: "Data/Appendix/readme.md", Kind: PayloadRaw, Value: "# Appendix"},
		{Path: "Data/1.LCG/.ipynb_checkpoints/hist-checkpoint.ipynb", Kind: PayloadRaw, Value: "{}"},
		{Path: "Data/1.LCG/.DS_Store", Kind: PayloadRaw, Value: ""},
		{Path: "Other/ignored.txt", Kind: PayloadRaw, Value: "nope"},
	}
}

func titles(chapters []Chapter) []string {
	out := make([]string, 0, len(chapters))
	for _, ch := range chapters {
		out = append(out, ch.Title)
	}
	return out
}

func TestBuildTwoChapters(t *testing.T) {
	b := NewBuilder("", nil, nil)
	chapters := b.Build([]Record{
		{Path: "Data/1.LCG/hist.ipynb", Kind: PayloadRaw, Value: "{}"},
		{Path: "Data/2.GBM/plot.png", Kind: PayloadURL, Value: "/plot.png"},
	})

	require.Len(t, chapters, 2)
	assert.Equal(t, []string{"1.LCG", "2.GBM"}, titles(chapters))
	assert.Equal(t, "Data/1.LCG", chapters[0].ID)

	hist := chapters[0].Root.Files[0]
	assert.Equal(t, "hist.ipynb", hist.Name)
	assert.Equal(t, "ipynb", hist.Ext)
	assert.Equal(t, "Data/1.LCG/hist.ipynb", hist.Path)
	assert.Equal(t, PayloadRaw, hist.Kind)
	assert.True(t, hist.IsNotebook())

	plot := chapters[1].Root.Files[0]
	assert.Equal(t, PayloadURL, plot.Kind)
	assert.Equal(t, "/plot.png", plot.URL)
	assert.Empty(t, plot.Raw)
}

func TestBuildDropsHiddenPaths(t *testing.T) {
	chapters := NewBuilder("", nil, nil).Build(sampleRecords())

	lcg := chapters[0]
	require.Equal(t, "1.LCG", lcg.Title)
	for _, f := range lcg.Root.Folders {
		assert.NotEqual(t, ".ipynb_checkpoints", f.Name)
	}
	lcg.Root.Walk(func(f *File) {
		assert.NotEqual(t, ".DS_Store", f.Name)
	})
}

func TestBuildCustomHiddenMarkers(t *testing.T) {
	b := NewBuilder("", []string{"__pycache__/"}, nil)
	chapters := b.Build([]Record{
		{Path: "Data/1.A/__pycache__/x.pyc", Kind: PayloadRaw},
		{Path: "Data/1.A/x.py", Kind: PayloadRaw},
	})
	require.Len(t, chapters, 1)
	assert.Empty(t, chapters[0].Root.Folders)
	assert.Len(t, chapters[0].Root.Files, 1)
}

func TestBuildChapterOrdering(t *testing.T) {
	chapters := NewBuilder("", nil, nil).Build(sampleRecords())
	assert.Equal(t, []string{"1.LCG", "2.GBM", "10.FFT", "Appendix"}, titles(chapters))

	for i := 1; i < len(chapters); i++ {
		prev, curr := ChapterKey(chapters[i-1].Title), ChapterKey(chapters[i].Title)
		assert.LessOrEqual(t, prev, curr)
		if prev == curr {
			assert.Less(t, chapters[i-1].Title, chapters[i].Title)
		}
	}
}

func TestBuildTiesBreakLexicographically(t *testing.T) {
	chapters := NewBuilder("", nil, nil).Build([]Record{
		{Path: "Data/zeta/a.py"},
		{Path: "Data/3.b/a.py"},
		{Path: "Data/3.a/a.py"},
		{Path: "Data/Beta/a.py"},
	})
	assert.Equal(t, []string{"3.a", "3.b", "Beta", "zeta"}, titles(chapters))
}

func TestBuildSortsFolderContents(t *testing.T) {
	chapters := NewBuilder("", nil, nil).Build([]Record{
		{Path: "Data/1.A/z.py"},
		{Path: "Data/1.A/b.py"},
		{Path: "Data/1.A/sub2/x.py"},
		{Path: "Data/1.A/sub1/y.py"},
		{Path: "Data/1.A/B.py"},
	})
	root := chapters[0].Root
	names := []string{}
	for _, f := range root.Files {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"B.py", "b.py", "z.py"}, names)
	assert.Equal(t, "sub1", root.Folders[0].Name)
	assert.Equal(t, "sub2", root.Folders[1].Name)
}

func TestBuildWithoutContainer(t *testing.T) {
	chapters := NewBuilder("", nil, nil).Build([]Record{{Path: "Other/x.py"}})
	assert.NotNil(t, chapters)
	assert.Empty(t, chapters)
}

func TestBuildFolderAndFileMayShareName(t *testing.T) {
	chapters := NewBuilder("", nil, nil).Build([]Record{
		{Path: "Data/1.A/notes"},
		{Path: "Data/1.A/notes/inner.md"},
	})
	root := chapters[0].Root
	require.Len(t, root.Files, 1)
	require.Len(t, root.Folders, 1)
	assert.Equal(t, "notes", root.Files[0].Name)
	assert.Equal(t, "notes", root.Folders[0].Name)
}

func TestBuildPathsAreUnique(t *testing.T) {
	records := append(sampleRecords(), Record{Path: "Data/1.LCG/lcg.py", Kind: PayloadRaw, Value: "dup"})
	chapters := NewBuilder("", nil, nil).Build(records)

	seen := map[string]bool{}
	for _, ch := range chapters {
		ch.Root.Walk(func(f *File) {
			assert.False(t, seen[f.Path], "duplicate path %s", f.Path)
			seen[f.Path] = true
		})
	}
	f := FindFile(chapters, "Data/1.LCG/lcg.py")
	require.NotNil(t, f)
	assert.Equal(t, "dup", f.Raw)
}

func TestBuildDuplicateIgnoresOrder(t *testing.T) {
	one := Record{Path: "Data/1.A/x.py", Kind: PayloadRaw, Value: "one"}
	two := Record{Path: "Data/1.A/x.py", Kind: PayloadRaw, Value: "two"}
	asset := Record{Path: "Data/1.A/x.py", Kind: PayloadURL, Value: "/content/Data/1.A/x.py"}
	b := NewBuilder("", nil, nil)

	for _, records := range [][]Record{{one, two}, {two, one}} {
		f := FindFile(b.Build(records), "Data/1.A/x.py")
		require.NotNil(t, f)
		assert.Equal(t, "one", f.Raw)
	}

	// Raw sorts before url.
	for _, records := range [][]Record{{asset, two}, {two, asset}} {
		f := FindFile(b.Build(records), "Data/1.A/x.py")
		require.NotNil(t, f)
		assert.Equal(t, PayloadRaw, f.Kind)
		assert.Equal(t, "two", f.Raw)
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	records := sampleRecords()
	reversed := make([]Record, len(records))
	for i, r := range records {
		reversed[len(records)-1-i] = r
	}

	b := NewBuilder("", nil, nil)
	first := b.Build(records)
	second := b.Build(records)
	third := b.Build(reversed)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("rebuild differs (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(first, third); diff != "" {
		t.Errorf("reordered build differs (-first +reversed):\n%s", diff)
	}
}

func TestChapterKey(t *testing.T) {
	tests := []struct {
		title string
		want  float64
	}{
		{"12.Foo", 12},
		{"1.LCG", 1},
		{"007Bond", 7},
		{"Appendix", math.Inf(1)},
		{"", math.Inf(1)},
	}
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			assert.Equal(t, tt.want, ChapterKey(tt.title))
		})
	}
}

func TestIsHidden(t *testing.T) {
	b := NewBuilder("", nil, nil)
	assert.True(t, b.IsHidden("Data/1.A/.ipynb_checkpoints/x.ipynb"))
	assert.True(t, b.IsHidden(".ipynb_checkpoints/x.ipynb"))
	assert.True(t, b.IsHidden("Data/1.A/.DS_Store"))
	assert.False(t, b.IsHidden("Data/1.A/checkpoints.ipynb"))
}
