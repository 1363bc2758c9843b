package notebook

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleNotebook = `{
 "cells": [
  {
   "cell_type": "markdown",
   "metadata": {},
   "source": ["# Histogram\n", "of LCG output"]
  },
  {
   "cell_type": "code",
   "execution_count": 3,
   "metadata": {"tags": ["demo"]},
   "source": "import numpy as np\nprint(np.pi)",
   "outputs": [
    {"output_type": "stream", "name": "stdout", "text": ["3.14", "159\n"]},
    {"output_type": "execute_result", "execution_count": 3, "metadata": {},
     "data": {"text/plain": ["<Figure>"], "image/png": "aGVs\nbG8=\n", "application/vnd.custom+json": {"a": 1}}},
    {"output_type": "error", "ename": "ValueError", "evalue": "bad", "traceback": ["line 1", "line 2"]},
    {"output_type": "clear_output", "wait": true}
   ]
  },
  {
   "cell_type": "raw",
   "metadata": {},
   "source": "raw text"
  }
 ],
 "metadata": {"kernelspec": {"name": "python3"}},
 "nbformat": 4,
 "nbformat_minor": 5
}`

func mustParse(t *testing.T, s string) *Document {
	t.Helper()
	doc, err := Parse([]byte(s))
	require.NoError(t, err)
	return doc
}

func TestParseNotebook(t *testing.T) {
	doc := mustParse(t, sampleNotebook)
	require.Len(t, doc.Cells, 3)
	assert.Equal(t, 4, doc.NBFormat)

	md := doc.Cells[0]
	assert.Equal(t, CellMarkdown, md.Kind)
	assert.Equal(t, "# Histogram\nof LCG output", md.Source)
	assert.Nil(t, md.ExecutionCount)

	code := doc.Cells[1]
	assert.Equal(t, CellCode, code.Kind)
	require.NotNil(t, code.ExecutionCount)
	assert.Equal(t, 3, *code.ExecutionCount)
	require.Len(t, code.Outputs, 4)

	stream, ok := code.Outputs[0].(*Stream)
	require.True(t, ok)
	assert.Equal(t, "stdout", stream.Channel)
	assert.Equal(t, "3.14159\n", stream.Text)

	result, ok := code.Outputs[1].(*Result)
	require.True(t, ok)
	assert.Equal(t, OutputExecuteResult, result.OutputType())
	assert.Equal(t, "<Figure>", result.Data.Values[MIMEPlain])
	assert.Contains(t, result.Data.Other, "application/vnd.custom+json")

	errOut, ok := code.Outputs[2].(*ErrorOutput)
	require.True(t, ok)
	assert.Equal(t, "ValueError", errOut.Name)
	assert.Equal(t, []string{"line 1", "line 2"}, errOut.Traceback)

	unsupported, ok := code.Outputs[3].(*Unsupported)
	require.True(t, ok)
	assert.Equal(t, OutputType("clear_output"), unsupported.OutputType())

	assert.False(t, doc.Cells[2].Kind.Known())
}

func TestParseErrors(t *testing.T) {
	tests := map[string]string{
		"not json":       `{"cells": [`,
		"missing cells":  `{"metadata": {}}`,
		"bad source":     `{"cells": [{"cell_type": "code", "source": 12}]}`,
		"untyped output": `{"cells": [{"cell_type": "code", "source": "", "outputs": [{}]}]}`,
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(in))
			require.Error(t, err)
			var pe *ParseError
			assert.True(t, errors.As(err, &pe))
			assert.Contains(t, err.Error(), "unreadable notebook")
		})
	}
}

func TestParseNullSource(t *testing.T) {
	doc := mustParse(t, `{"cells": [{"cell_type": "code", "source": null}]}`)
	assert.Equal(t, "", doc.Cells[0].Source)
}

func TestParseTracebackString(t *testing.T) {
	data := `{"cells": [{"cell_type": "code", "source": "raise", "outputs": [
	  {"output_type": "error", "ename": "RuntimeError", "evalue": "x", "traceback": "line1\nline2\n"}
	]}]}`
	doc, err := Parse([]byte(data))
	require.NoError(t, err)

	errOut, ok := doc.Cells[0].Outputs[0].(*ErrorOutput)
	require.True(t, ok)
	assert.Equal(t, []string{"line1", "line2"}, errOut.Traceback)

	doc, err = Parse([]byte(`{"cells": [{"cell_type": "code", "source": "", "outputs": [
	  {"output_type": "error", "ename": "E", "evalue": "", "traceback": null}
	]}]}`))
	require.NoError(t, err)
	assert.Empty(t, doc.Cells[0].Outputs[0].(*ErrorOutput).Traceback)
}

func TestMarshalKeepsUnrecognizedData(t *testing.T) {
	// Raw metadata is re-emitted compacted, so start from compact input.
	var compact bytes.Buffer
	require.NoError(t, json.Compact(&compact, []byte(sampleNotebook)))
	doc := mustParse(t, compact.String())
	data, err := json.Marshal(doc)
	require.NoError(t, err)

	again := mustParse(t, string(data))
	if diff := cmp.Diff(doc, again); diff != "" {
		t.Errorf("document changed across encode/decode:\n%s", diff)
	}

	var raw struct {
		Cells []map[string]json.RawMessage `json:"cells"`
	}
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.JSONEq(t, `"# Histogram\nof LCG output"`, string(raw.Cells[0]["source"]))
	assert.Contains(t, string(raw.Cells[1]["outputs"]), "application/vnd.custom+json")
	assert.Contains(t, string(raw.Cells[1]["outputs"]), `"clear_output"`)
}

func TestMarshalFillsNotebookDefaults(t *testing.T) {
	data, err := json.Marshal(&Document{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"cells":[],"metadata":{},"nbformat":4,"nbformat_minor":5}`, string(data))

	data, err = json.Marshal(Cell{Kind: CellCode, Source: "x"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"cell_type":"code","source":"x","metadata":{},"outputs":[],"execution_count":null}`, string(data))
}

func TestCloneIsDeepAndEqual(t *testing.T) {
	doc := mustParse(t, sampleNotebook)
	cp := doc.Clone()

	if diff := cmp.Diff(doc, cp); diff != "" {
		t.Fatalf("clone differs:\n%s", diff)
	}

	cp.Cells[1].Source = "changed"
	*cp.Cells[1].ExecutionCount = 99
	cp.Cells[1].Outputs[0].(*Stream).Text = "changed"
	cp.Cells[1].Outputs[1].(*Result).Data.Values[MIMEPlain] = "changed"
	cp.Cells[1].Outputs[2].(*ErrorOutput).Traceback[0] = "changed"
	cp.Metadata[0] = '['

	orig := mustParse(t, sampleNotebook)
	if diff := cmp.Diff(orig, doc); diff != "" {
		t.Errorf("mutating the clone changed the source:\n%s", diff)
	}
	assert.Nil(t, (*Document)(nil).Clone())
}

func TestWithCellSource(t *testing.T) {
	doc := &Document{Cells: []Cell{
		{Kind: CellCode, Source: "a"},
		{Kind: CellCode, Source: "b"},
		{Kind: CellMarkdown, Source: "c"},
	}}
	before := doc.Clone()

	next := doc.WithCellSource(0, "x=1")
	assert.Equal(t, "x=1", next.Cells[0].Source)
	assert.Equal(t, before.Cells[1], next.Cells[1])
	assert.Equal(t, before.Cells[2], next.Cells[2])
	if diff := cmp.Diff(before, doc); diff != "" {
		t.Errorf("receiver modified:\n%s", diff)
	}

	assert.Same(t, doc, doc.WithCellSource(3, "nope"))
	assert.Same(t, doc, doc.WithCellSource(-1, "nope"))
}

func TestPreferredRepresentation(t *testing.T) {
	tests := []struct {
		name   string
		values map[MIMEType]string
		want   MIMEType
	}{
		{"png wins", map[MIMEType]string{MIMEPlain: "p", MIMEHTML: "<b>", MIMEPNG: "aGk="}, MIMEPNG},
		{"svg over html", map[MIMEType]string{MIMEHTML: "<b>", MIMESVG: "<svg/>"}, MIMESVG},
		{"html over plain", map[MIMEType]string{MIMEPlain: "p", MIMEHTML: "<b>"}, MIMEHTML},
		{"plain only", map[MIMEType]string{MIMEPlain: "p"}, MIMEPlain},
		{"empty png skipped", map[MIMEType]string{MIMEPNG: "", MIMEPlain: "p"}, MIMEPlain},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _, err := MIMEMap{Values: tt.values}.Preferred()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, _, err := MIMEMap{Other: map[string]json.RawMessage{"application/pdf": []byte(`"x"`)}}.Preferred()
	assert.ErrorIs(t, err, ErrUnsupportedKind)
}

func TestDecodePNGStripsNewlines(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte("hello png"))
	wrapped := payload[:4] + "\n" + payload[4:] + "\n"

	img, err := DecodePNG(wrapped)
	require.NoError(t, err)
	assert.Equal(t, "hello png", string(img))

	_, err = DecodePNG("***")
	assert.Error(t, err)
}

func TestWriteText(t *testing.T) {
	doc := mustParse(t, sampleNotebook)
	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, doc))
	out := buf.String()

	assert.Contains(t, out, "[0] markdown\n# Histogram\nof LCG output\n")
	assert.Contains(t, out, "[1] In [3]:\nimport numpy as np")
	assert.Contains(t, out, "--- stdout\n3.14159\n")
	assert.Contains(t, out, "--- [image/png, 5 bytes]")
	assert.Contains(t, out, "--- error: ValueError: bad\nline 1\nline 2\n")
	assert.Contains(t, out, `output type "clear_output"`)
	assert.Contains(t, out, `[2] <unsupported kind: cell type "raw">`)
	assert.Equal(t, 1, strings.Count(out, "In [3]"))
}
