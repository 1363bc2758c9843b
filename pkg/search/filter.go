package search

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/mattsolo1/grove-coursebook/pkg/content"
)

var (
	separatorRun  = regexp.MustCompile(`[_-]+`)
	whitespaceRun = regexp.MustCompile(`\s+`)
)

// Normalize lower-cases s, turns runs of '-' and '_' into spaces and
// collapses whitespace.
func Normalize(s string) string {
	s = cases.Lower(language.Und).String(s)
	s = separatorRun.ReplaceAllString(s, " ")
	s = whitespaceRun.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// ChapterKey is the expand key of a chapter.
func ChapterKey(ch content.Chapter) string {
	return "chapter:" + ch.ID
}

// FolderKey is the expand key of a folder below the container parentKey.
func FolderKey(parentKey, name string) string {
	return parentKey + "/folder:" + name
}

// KeySet is a set of expand keys.
type KeySet map[string]struct{}

// Has reports whether key is in the set.
func (s KeySet) Has(key string) bool {
	_, ok := s[key]
	return ok
}

// Sorted returns the keys in lexical order.
func (s KeySet) Sorted() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// MarshalJSON encodes the set as a sorted list.
func (s KeySet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// Result is a pruned tree plus the containers that must be opened to
// reveal its matches.
type Result struct {
	Chapters   []content.Chapter `json:"chapters"`
	ExpandKeys KeySet            `json:"expand_keys"`
}

// Filter prunes chapters to the entries matching query. The input tree is
// never modified; retained nodes are fresh copies.
//
// A chapter or folder is kept when its own name matches or when anything
// below it is kept. Its key is added to ExpandKeys only in the second
// case: a container shown purely because its name matched stays closed.
func Filter(chapters []content.Chapter, query string) Result {
	q := Normalize(query)
	if q == "" {
		return Result{Chapters: chapters, ExpandKeys: KeySet{}}
	}

	f := &filter{q: q, open: KeySet{}}
	filtered := make([]content.Chapter, 0, len(chapters))
	for _, ch := range chapters {
		if kept, ok := f.chapter(ch); ok {
			filtered = append(filtered, kept)
		}
	}
	return Result{Chapters: filtered, ExpandKeys: f.open}
}

type filter struct {
	q    string
	open KeySet
}

func (f *filter) chapter(ch content.Chapter) (content.Chapter, bool) {
	key := ChapterKey(ch)
	files, folders := f.children(ch.Root, key)

	matched := strings.Contains(Normalize(ch.Title), f.q) || strings.Contains(Normalize(ch.ID), f.q)
	if !matched && len(files) == 0 && len(folders) == 0 {
		return content.Chapter{}, false
	}
	if len(files) > 0 || len(folders) > 0 {
		f.open[key] = struct{}{}
	}
	return content.Chapter{
		ID:    ch.ID,
		Title: ch.Title,
		Root:  &content.Folder{Name: ch.Root.Name, Files: files, Folders: folders},
	}, true
}

func (f *filter) folder(folder *content.Folder, key string) *content.Folder {
	files, folders := f.children(folder, key)

	matched := strings.Contains(Normalize(folder.Name), f.q)
	if !matched && len(files) == 0 && len(folders) == 0 {
		return nil
	}
	if len(files) > 0 || len(folders) > 0 {
		f.open[key] = struct{}{}
	}
	return &content.Folder{Name: folder.Name, Files: files, Folders: folders}
}

// children returns copies of the matching files and the retained
// subfolders of folder.
func (f *filter) children(folder *content.Folder, key string) ([]*content.File, []*content.Folder) {
	files := []*content.File{}
	for _, file := range folder.Files {
		if f.fileMatches(file) {
			cp := *file
			files = append(files, &cp)
		}
	}
	folders := []*content.Folder{}
	for _, sub := range folder.Folders {
		if kept := f.folder(sub, FolderKey(key, sub.Name)); kept != nil {
			folders = append(folders, kept)
		}
	}
	return files, folders
}

func (f *filter) fileMatches(file *content.File) bool {
	if strings.Contains(Normalize(file.Name), f.q) {
		return true
	}
	return file.Ext != "" && strings.Contains(Normalize(file.Ext), f.q)
}
