package catalog

import (
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/markdave123-py/libassist/internal/models"
)

// Entry is one classified link found on the catalog page.
type Entry struct {
	Name string
	URL  string
	Type models.ResourceType
}

// classifiers are checked in order against the lowercased URL.
var classifiers = []struct {
	typ     models.ResourceType
	needles []string
}{
	{models.ResourceCatalog, []string{"documentsearchform", "catalog"}},
	{models.ResourceRepository, []string{"repository", "репозитор"}},
	{models.ResourceDatabase, []string{"scopus", "webofscience", "doaj"}},
	{models.ResourceElectronicLibrary, []string{"elib", "e-library"}},
}

// Classify maps a link target to a resource type by known URL fragments.
func Classify(target string) models.ResourceType {
	lower := strings.ToLower(target)
	if u, err := url.PathUnescape(lower); err == nil {
		lower = u
	}
	for _, c := range classifiers {
		for _, n := range c.needles {
			if strings.Contains(lower, n) {
				return c.typ
			}
		}
	}
	return models.ResourceOther
}

// ParseResources extracts anchors with non-empty text and an absolute http(s)
// target. Links that classify as other are dropped.
func ParseResources(page string) []Entry {
	var (
		out    []Entry
		inLink bool
		href   string
		text   strings.Builder
	)

	z := html.NewTokenizer(strings.NewReader(page))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return out
		case html.StartTagToken:
			name, hasAttr := z.TagName()
			if string(name) != "a" {
				continue
			}
			inLink, href = true, ""
			text.Reset()
			for hasAttr {
				var key, val []byte
				key, val, hasAttr = z.TagAttr()
				if string(key) == "href" {
					href = strings.TrimSpace(string(val))
				}
			}
		case html.TextToken:
			if inLink {
				text.Write(z.Text())
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if string(name) != "a" || !inLink {
				continue
			}
			inLink = false
			if e, ok := toEntry(href, text.String()); ok {
				out = append(out, e)
			}
		}
	}
}

func toEntry(href, text string) (Entry, bool) {
	name := normalizeSpace(text)
	if name == "" || !isAbsoluteHTTP(href) {
		return Entry{}, false
	}
	t := Classify(href)
	if t == models.ResourceOther {
		return Entry{}, false
	}
	return Entry{Name: name, URL: href, Type: t}, true
}

func isAbsoluteHTTP(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
