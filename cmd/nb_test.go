package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattsolo1/grove-coursebook/pkg/backend"
	"github.com/mattsolo1/grove-coursebook/pkg/notebook"
	"github.com/mattsolo1/grove-coursebook/pkg/session"
)

type docBackend struct{}

func (docBackend) FetchNotebook(ctx context.Context, p string) (*notebook.Document, error) {
	return &notebook.Document{Cells: []notebook.Cell{
		{Kind: notebook.CellMarkdown, Source: "# Title"},
		{Kind: notebook.CellCode, Source: "x = 1"},
	}}, nil
}

func (docBackend) ExecutePath(ctx context.Context, p string) (*backend.ExecutionResult, error) {
	return nil, backend.ErrNoNotebook
}

func (docBackend) ExecuteContent(ctx context.Context, p string, doc *notebook.Document) (*backend.ExecutionResult, error) {
	return nil, backend.ErrNoNotebook
}

func loadedSession(t *testing.T) *session.Session {
	t.Helper()
	s := session.New(docBackend{})
	require.NoError(t, s.Load(context.Background(), "Data/1.LCG/hist.ipynb"))
	return s
}

func TestApplyEdits(t *testing.T) {
	s := loadedSession(t)
	file := filepath.Join(t.TempDir(), "cell.py")
	require.NoError(t, os.WriteFile(file, []byte("x = 2\n"), 0644))

	require.NoError(t, applyEdits(s, []string{"1=" + file}))

	st := s.State()
	assert.Equal(t, session.ModeEditing, st.Mode)
	assert.Equal(t, "x = 2\n", st.Draft.Cells[1].Source)
	assert.Equal(t, "x = 1", st.Original.Cells[1].Source)
	assert.Equal(t, "hist_edited.ipynb", s.ExportName())
}

func TestApplyEditsNone(t *testing.T) {
	s := loadedSession(t)
	require.NoError(t, applyEdits(s, nil))
	assert.Equal(t, session.ModeOriginal, s.State().Mode)
	assert.Equal(t, "hist_current.ipynb", s.ExportName())
}

func TestApplyEditsInvalid(t *testing.T) {
	for _, edit := range []string{"nofile", "x=cell.py", "0=" + filepath.Join(t.TempDir(), "missing.py")} {
		s := loadedSession(t)
		assert.Error(t, applyEdits(s, []string{edit}), edit)
	}
}
