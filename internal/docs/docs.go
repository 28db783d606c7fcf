// Package docs embeds the operator and client documentation shown by `todo docs`.
package docs

import (
	"bufio"
	"embed"
	"io/fs"
	"strings"
)

//go:embed content/*.md
var contentFS embed.FS

// Topic is one embedded page. Title is the page's leading "# " heading.
type Topic struct {
	Name  string `json:"name"`
	Title string `json:"title"`
}

// List returns every topic ordered by name.
func List() []Topic {
	entries, err := fs.ReadDir(contentFS, "content")
	if err != nil {
		return []Topic{}
	}
	out := make([]Topic, 0, len(entries))
	for _, e := range entries {
		name, ok := strings.CutSuffix(e.Name(), ".md")
		if !ok || e.IsDir() {
			continue
		}
		body, _ := Get(name)
		out = append(out, Topic{Name: name, Title: title(body, name)})
	}
	return out
}

// Get returns the markdown for a topic name (case-insensitive).
func Get(name string) (string, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || strings.ContainsAny(name, `/\.`) {
		return "", false
	}
	b, err := contentFS.ReadFile("content/" + name + ".md")
	if err != nil {
		return "", false
	}
	return string(b), true
}

func title(body, fallback string) string {
	sc := bufio.NewScanner(strings.NewReader(body))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if h, ok := strings.CutPrefix(line, "# "); ok {
			return strings.TrimSpace(h)
		}
		break
	}
	return fallback
}
