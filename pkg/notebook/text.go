package notebook

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// WriteText prints a plain-text view of d: sources, captured outputs, and
// explicit placeholders for anything that cannot be shown in a terminal.
func WriteText(w io.Writer, d *Document) error {
	tw := &textWriter{w: w}
	for i, cell := range d.Cells {
		if i > 0 {
			tw.printf("\n")
		}
		switch cell.Kind {
		case CellMarkdown:
			tw.printf("[%d] markdown\n", i)
			tw.block(cell.Source)
		case CellCode:
			label := " "
			if cell.ExecutionCount != nil {
				label = fmt.Sprintf("%d", *cell.ExecutionCount)
			}
			tw.printf("[%d] In [%s]:\n", i, label)
			tw.block(cell.Source)
			for _, out := range cell.Outputs {
				tw.output(out)
			}
		default:
			tw.printf("[%d] <%v: cell type %q>\n", i, ErrUnsupportedKind, cell.Kind)
		}
	}
	return tw.err
}

type textWriter struct {
	w   io.Writer
	err error
}

func (t *textWriter) printf(format string, args ...interface{}) {
	if t.err != nil {
		return
	}
	_, t.err = fmt.Fprintf(t.w, format, args...)
}

func (t *textWriter) block(s string) {
	if s == "" {
		return
	}
	t.printf("%s", s)
	if !strings.HasSuffix(s, "\n") {
		t.printf("\n")
	}
}

func (t *textWriter) output(out Output) {
	switch o := out.(type) {
	case *Stream:
		t.printf("--- %s\n", o.Channel)
		t.block(o.Text)
	case *ErrorOutput:
		t.printf("--- error: %s: %s\n", o.Name, o.Message)
		t.block(strings.Join(o.Traceback, "\n"))
	case *Result:
		t.result(o)
	default:
		t.printf("--- <%v: output type %q>\n", ErrUnsupportedKind, out.OutputType())
	}
}

func (t *textWriter) result(r *Result) {
	mime, payload, err := r.Data.Preferred()
	if err != nil {
		if errors.Is(err, ErrUnsupportedKind) {
			t.printf("--- <%v>\n", err)
			return
		}
		t.err = err
		return
	}
	switch mime {
	case MIMEPNG:
		img, err := DecodePNG(payload)
		if err != nil {
			t.printf("--- <%v>\n", err)
			return
		}
		t.printf("--- [%s, %d bytes]\n", mime, len(img))
	case MIMESVG, MIMEHTML:
		t.printf("--- [%s, %d chars]\n", mime, len(payload))
	default:
		t.printf("--- %s\n", mime)
		t.block(payload)
	}
}
