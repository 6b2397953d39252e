package catalog

import (
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Category names used by the bundled catalog.
const (
	Images    = "images"
	Documents = "documents"
	Video     = "video"
	Audio     = "audio"
	Archives  = "archives"
)

var aliases = map[string]string{
	"JPEG": "JPG",
	"TIF":  "TIFF",
	"HEIF": "HEIC",
	"TGZ":  "GZ",
}

// Category groups source formats under a display name.
type Category struct {
	Name    string
	Sources []string
}

// Catalog is an immutable category → source → targets lookup table.
type Catalog struct {
	categories []Category
	targets    map[string][]string
}

// RemoteFormats is one converter group as declared by the backend's /api/formats endpoint.
type RemoteFormats struct {
	Input  []string `json:"input"`
	Output []string `json:"output"`
}

// New builds a catalog from categories and a source → targets table.
//
// Targets equal to their source are dropped, and sources without targets are removed from their category.
func New(categories []Category, targets map[string][]string) *Catalog {
	c := &Catalog{targets: make(map[string][]string, len(targets))}

	for source, list := range targets {
		source = Normalize(source)
		var cleaned []string
		for _, t := range list {
			if t = Normalize(t); t != source && !slices.Contains(cleaned, t) {
				cleaned = append(cleaned, t)
			}
		}
		if len(cleaned) > 0 {
			c.targets[source] = cleaned
		}
	}

	for _, cat := range categories {
		kept := Category{Name: strings.ToLower(cat.Name)}
		for _, s := range cat.Sources {
			if s = Normalize(s); len(c.targets[s]) > 0 && !slices.Contains(kept.Sources, s) {
				kept.Sources = append(kept.Sources, s)
			}
		}
		if len(kept.Sources) > 0 {
			c.categories = append(c.categories, kept)
		}
	}

	return c
}

// Default returns the bundled catalog.
func Default() *Catalog {
	imageOut := []string{"JPG", "PNG", "BMP", "TIFF", "GIF", "WEBP", "ICO"}
	mediaOut := []string{"MP4", "AVI", "MOV", "MKV", "WEBM", "WMV", "GIF", "MP3", "WAV", "AAC"}
	audioOut := []string{"MP3", "WAV", "AAC", "FLAC", "OGG"}
	archiveOut := []string{"ZIP", "TAR", "GZ", "7Z"}

	categories := []Category{
		{Name: Images, Sources: []string{"JPG", "PNG", "BMP", "TIFF", "GIF", "HEIC", "WEBP", "ICO", "SVG"}},
		{Name: Documents, Sources: []string{"PDF", "DOCX", "TXT", "HTML"}},
		{Name: Video, Sources: []string{"MP4", "AVI", "MOV", "MKV", "WMV", "FLV", "WEBM"}},
		{Name: Audio, Sources: []string{"MP3", "WAV", "FLAC", "AAC", "OGG"}},
		{Name: Archives, Sources: []string{"ZIP", "TAR", "GZ", "7Z", "RAR"}},
	}

	targets := map[string][]string{
		"PDF":  {"DOCX", "TXT", "JPG", "PNG"},
		"DOCX": {"PDF", "TXT"},
		"TXT":  {"PDF", "DOCX", "HTML"},
		"HTML": {"TXT", "PDF"},
	}
	for _, cat := range categories {
		var out []string
		switch cat.Name {
		case Images:
			out = imageOut
		case Video:
			out = mediaOut
		case Audio:
			out = audioOut
		case Archives:
			out = archiveOut
		default:
			continue
		}
		for _, s := range cat.Sources {
			targets[s] = out
		}
	}

	return New(categories, targets)
}

// Normalize upper-cases a format identifier, strips a leading dot and folds aliases.
func Normalize(format string) string {
	f := strings.ToUpper(strings.TrimPrefix(strings.TrimSpace(format), "."))
	if alias, ok := aliases[f]; ok {
		return alias
	}
	return f
}

// Extension returns the lower-case file extension for a format.
func Extension(format string) string {
	return strings.ToLower(Normalize(format))
}

// Title returns a display name for a category ("images" → "Images").
func Title(category string) string {
	return cases.Title(language.Und).String(strings.ToLower(category))
}

// Categories returns category names in display order.
func (c *Catalog) Categories() []string {
	names := make([]string, len(c.categories))
	for i, cat := range c.categories {
		names[i] = cat.Name
	}
	return names
}

// SourceFormats returns the source formats accepted by category.
func (c *Catalog) SourceFormats(category string) []string {
	category = strings.ToLower(strings.TrimSpace(category))
	for _, cat := range c.categories {
		if cat.Name == category {
			return slices.Clone(cat.Sources)
		}
	}
	return []string{}
}

// TargetFormats returns the formats source can be converted to.
func (c *Catalog) TargetFormats(source string) []string {
	if targets, ok := c.targets[Normalize(source)]; ok {
		return slices.Clone(targets)
	}
	return []string{}
}

// HasSource reports whether category accepts source.
func (c *Catalog) HasSource(category, source string) bool {
	return slices.Contains(c.SourceFormats(category), Normalize(source))
}

// IsValidTarget reports whether source can be converted to target.
func (c *Catalog) IsValidTarget(source, target string) bool {
	if source == "" || target == "" {
		return false
	}
	return slices.Contains(c.targets[Normalize(source)], Normalize(target))
}

// CategoryOf returns the category that accepts format as a source, or "".
func (c *Catalog) CategoryOf(format string) string {
	format = Normalize(format)
	for _, cat := range c.categories {
		if slices.Contains(cat.Sources, format) {
			return cat.Name
		}
	}
	return ""
}

// Merge narrows the catalog to the pairs declared by the backend.
//
// A bundled pair survives when some remote group lists the source as input and the target as output.
// An empty remote declaration leaves the catalog unchanged.
func (c *Catalog) Merge(remote map[string]RemoteFormats) *Catalog {
	if len(remote) == 0 {
		return c
	}

	supported := func(source, target string) bool {
		for _, group := range remote {
			if containsFormat(group.Input, source) && containsFormat(group.Output, target) {
				return true
			}
		}
		return false
	}

	targets := make(map[string][]string, len(c.targets))
	for source, list := range c.targets {
		for _, t := range list {
			if supported(source, t) {
				targets[source] = append(targets[source], t)
			}
		}
	}

	return New(c.categories, targets)
}

func containsFormat(list []string, format string) bool {
	return slices.ContainsFunc(list, func(f string) bool {
		return Normalize(f) == format
	})
}
