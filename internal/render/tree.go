// Package render prints course trees as plain text.
package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattsolo1/grove-coursebook/pkg/content"
	"github.com/mattsolo1/grove-coursebook/pkg/search"
)

// TreeOptions controls tree output.
type TreeOptions struct {
	// Expanded reports whether the node with the given key shows its
	// children. Nil expands everything.
	Expanded func(key string) bool
	// Labels prints display labels instead of raw names.
	Labels bool
}

// node is one displayed line.
type node struct {
	Depth     int
	Text      string
	Collapsed bool
	Prefix    string
}

// Tree writes chapters as an indented tree.
func Tree(w io.Writer, chapters []content.Chapter, opts TreeOptions) error {
	var nodes []*node
	for _, ch := range chapters {
		key := search.ChapterKey(ch)
		open := opts.isOpen(key)
		nodes = append(nodes, &node{
			Depth:     0,
			Text:      opts.name(ch.Title),
			Collapsed: !open && ch.Root.HasChildren(),
		})
		if open {
			nodes = appendFolder(nodes, ch.Root, key, 1, opts)
		}
	}
	assignPrefixes(nodes)

	for _, n := range nodes {
		line := n.Prefix + n.Text
		if n.Collapsed {
			line += " …"
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func appendFolder(nodes []*node, folder *content.Folder, key string, depth int, opts TreeOptions) []*node {
	for _, sub := range folder.Folders {
		subKey := search.FolderKey(key, sub.Name)
		open := opts.isOpen(subKey)
		nodes = append(nodes, &node{
			Depth:     depth,
			Text:      opts.name(sub.Name) + "/",
			Collapsed: !open && sub.HasChildren(),
		})
		if open {
			nodes = appendFolder(nodes, sub, subKey, depth+1, opts)
		}
	}
	for _, f := range folder.Files {
		nodes = append(nodes, &node{Depth: depth, Text: opts.name(f.Name)})
	}
	return nodes
}

// assignPrefixes draws the connectors. A node is "last" when no later
// sibling exists at its depth before the walk returns to a shallower one.
func assignPrefixes(nodes []*node) {
	lastAtDepth := map[int]bool{}
	for i, n := range nodes {
		isLast := true
		for j := i + 1; j < len(nodes); j++ {
			if nodes[j].Depth < n.Depth {
				break
			}
			if nodes[j].Depth == n.Depth {
				isLast = false
				break
			}
		}

		var b strings.Builder
		for d := 1; d <= n.Depth; d++ {
			switch {
			case d == n.Depth && isLast:
				b.WriteString("└ ")
			case d == n.Depth:
				b.WriteString("├ ")
			case lastAtDepth[d]:
				b.WriteString("  ")
			default:
				b.WriteString("│ ")
			}
		}
		n.Prefix = b.String()

		lastAtDepth[n.Depth] = isLast
		for d := range lastAtDepth {
			if d > n.Depth {
				delete(lastAtDepth, d)
			}
		}
	}
}

func (o TreeOptions) isOpen(key string) bool {
	return o.Expanded == nil || o.Expanded(key)
}

func (o TreeOptions) name(s string) string {
	if o.Labels {
		return content.PrettyLabel(s)
	}
	return s
}
