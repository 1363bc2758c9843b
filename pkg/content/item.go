package content

import (
	"path"
	"strings"
)

// PayloadKind says how a file's content was captured from storage.
type PayloadKind string

const (
	PayloadRaw PayloadKind = "raw" // inline text, e.g. notebooks, scripts, csv
	PayloadURL PayloadKind = "url" // locator for a binary asset, e.g. plot.png
)

// Record is one discovered file before it is placed in the tree.
type Record struct {
	Path  string      // virtual path, e.g. "Data/1.LCG/hist.ipynb"
	Kind  PayloadKind
	Value string
}

// File is a leaf in the content tree. Exactly one of Raw or URL is
// meaningful, selected by Kind.
type File struct {
	Name string      `json:"name"`
	Ext  string      `json:"ext"`
	Path string      `json:"path"`
	Kind PayloadKind `json:"kind"`
	Raw  string      `json:"raw,omitempty"`
	URL  string      `json:"url,omitempty"`
}

// IsNotebook reports whether the file is a Jupyter notebook.
func (f *File) IsNotebook() bool {
	return f.Ext == "ipynb"
}

// IsTabular reports whether the backend can preview the file as a table.
func (f *File) IsTabular() bool {
	switch f.Ext {
	case "csv", "xlsx", "xls":
		return true
	}
	return false
}

// Folder is a directory node. Files and Folders are kept in separate
// lists, so a file and a folder may share a name.
type Folder struct {
	Name    string    `json:"name"`
	Files   []*File   `json:"files"`
	Folders []*Folder `json:"folders"`
}

// HasChildren reports whether the folder holds any file or folder.
func (f *Folder) HasChildren() bool {
	return len(f.Files) > 0 || len(f.Folders) > 0
}

// Walk visits every file below f in tree order.
func (f *Folder) Walk(fn func(*File)) {
	for _, file := range f.Files {
		fn(file)
	}
	for _, sub := range f.Folders {
		sub.Walk(fn)
	}
}

// Chapter is a top-level grouping: one per child of the chapter container.
type Chapter struct {
	ID    string  `json:"id"`
	Title string  `json:"title"`
	Root  *Folder `json:"root"`
}

// FindFile returns the file with the given virtual path, or nil.
func FindFile(chapters []Chapter, virtualPath string) *File {
	for _, ch := range chapters {
		if !strings.HasPrefix(virtualPath, ch.ID+"/") {
			continue
		}
		var found *File
		ch.Root.Walk(func(f *File) {
			if found == nil && f.Path == virtualPath {
				found = f
			}
		})
		if found != nil {
			return found
		}
	}
	return nil
}

// Ext returns the lower-cased extension of name without the dot.
func Ext(name string) string {
	ext := path.Ext(name)
	if ext == "" {
		return ""
	}
	return strings.ToLower(ext[1:])
}
