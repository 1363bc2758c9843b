package content

import (
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// DefaultContainer is the top-level folder whose children become chapters.
const DefaultContainer = "Data"

// DefaultHidden lists the path markers that are never shown: notebook
// checkpoints and macOS metadata files.
var DefaultHidden = []string{"/.ipynb_checkpoints/", ".DS_Store"}

// Builder turns a flat record set into a chapter tree.
type Builder struct {
	Container string   // defaults to DefaultContainer
	Hidden    []string // defaults to DefaultHidden
	logger    *logrus.Entry
}

// NewBuilder returns a builder using the given container and hidden
// markers. Empty values fall back to the defaults.
func NewBuilder(container string, hidden []string, logger *logrus.Entry) *Builder {
	if container == "" {
		container = DefaultContainer
	}
	if len(hidden) == 0 {
		hidden = DefaultHidden
	}
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = logrus.NewEntry(l)
	}
	return &Builder{
		Container: container,
		Hidden:    hidden,
		logger:    logger.WithField("sub-component", "builder"),
	}
}

// Build places every visible record in a folder tree and returns the
// children of the container folder as chapters. A tree without the
// container yields no chapters.
func (b *Builder) Build(records []Record) []Chapter {
	root := &Folder{Name: "root"}
	winners := make(map[string]Record, len(records))
	order := make([]string, 0, len(records))

	for _, rec := range records {
		if rec.Path == "" || strings.HasSuffix(rec.Path, "/") {
			continue
		}
		if b.IsHidden(rec.Path) {
			continue
		}
		prev, dup := winners[rec.Path]
		if !dup {
			winners[rec.Path] = rec
			order = append(order, rec.Path)
			continue
		}
		b.logger.WithField("path", rec.Path).Warn("Duplicate content path, keeping one record")
		if recordLess(rec, prev) {
			winners[rec.Path] = rec
		}
	}
	for _, p := range order {
		insert(root, winners[p])
	}

	var data *Folder
	for _, f := range root.Folders {
		if f.Name == b.Container {
			data = f
			break
		}
	}
	if data == nil {
		b.logger.WithField("container", b.Container).Debug("Container folder not found, no chapters")
		return []Chapter{}
	}

	sortFolder(data)

	chapters := make([]Chapter, 0, len(data.Folders))
	for _, top := range data.Folders {
		chapters = append(chapters, Chapter{
			ID:    b.Container + "/" + top.Name,
			Title: top.Name,
			Root:  top,
		})
	}
	SortChapters(chapters)
	return chapters
}

// recordLess orders records sharing a path by kind, then value, so the
// kept duplicate does not depend on input order.
func recordLess(a, b Record) bool {
	if a.Kind != b.Kind {
		return a.Kind < b.Kind
	}
	return a.Value < b.Value
}

// IsHidden reports whether p contains one of the builder's hidden markers.
// Markers ending in a name (no trailing slash) match as a suffix.
func (b *Builder) IsHidden(p string) bool {
	for _, marker := range b.Hidden {
		if strings.HasSuffix(marker, "/") {
			if strings.Contains("/"+p, marker) {
				return true
			}
			continue
		}
		if strings.HasSuffix(p, marker) {
			return true
		}
	}
	return false
}

func insert(root *Folder, rec Record) {
	parts := strings.Split(rec.Path, "/")
	curr := root
	for _, name := range parts[:len(parts)-1] {
		curr = getOrCreateFolder(curr, name)
	}

	name := parts[len(parts)-1]
	file := &File{
		Name: name,
		Ext:  Ext(name),
		Path: rec.Path,
		Kind: rec.Kind,
	}
	if rec.Kind == PayloadURL {
		file.URL = rec.Value
	} else {
		file.Kind = PayloadRaw
		file.Raw = rec.Value
	}
	curr.Files = append(curr.Files, file)
}

func getOrCreateFolder(parent *Folder, name string) *Folder {
	for _, f := range parent.Folders {
		if f.Name == name {
			return f
		}
	}
	next := &Folder{Name: name}
	parent.Folders = append(parent.Folders, next)
	return next
}

// sortFolder orders files and folders by name, recursively. It runs once
// after every record has been inserted.
func sortFolder(folder *Folder) {
	sort.SliceStable(folder.Folders, func(i, j int) bool {
		return folder.Folders[i].Name < folder.Folders[j].Name
	})
	sort.SliceStable(folder.Files, func(i, j int) bool {
		return folder.Files[i].Name < folder.Files[j].Name
	})
	for _, sub := range folder.Folders {
		sortFolder(sub)
	}
}

// SortChapters orders chapters by the number leading their title, then by
// title. Titles without a leading number sort last.
func SortChapters(chapters []Chapter) {
	sort.SliceStable(chapters, func(i, j int) bool {
		ki, kj := ChapterKey(chapters[i].Title), ChapterKey(chapters[j].Title)
		if ki != kj {
			return ki < kj
		}
		return chapters[i].Title < chapters[j].Title
	})
}

// ChapterKey extracts the numeric prefix of a chapter title ("12.Foo" is
// 12). Titles that do not start with a digit map to +Inf.
func ChapterKey(title string) float64 {
	end := 0
	for end < len(title) && title[end] >= '0' && title[end] <= '9' {
		end++
	}
	if end == 0 {
		return math.Inf(1)
	}
	n, err := strconv.ParseFloat(title[:end], 64)
	if err != nil {
		return math.Inf(1)
	}
	return n
}
