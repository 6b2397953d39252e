package catalog

import (
	"slices"
	"testing"
)

func TestDefault(t *testing.T) {
	c := Default()

	t.Run("every source has targets excluding itself", func(t *testing.T) {
		for _, category := range c.Categories() {
			for _, source := range c.SourceFormats(category) {
				targets := c.TargetFormats(source)
				if len(targets) == 0 {
					t.Errorf("%s/%s has no targets", category, source)
				}
				if slices.Contains(targets, source) {
					t.Errorf("%s/%s lists itself as a target", category, source)
				}
			}
		}
	})

	t.Run("categories in display order", func(t *testing.T) {
		want := []string{Images, Documents, Video, Audio, Archives}
		if got := c.Categories(); !slices.Equal(got, want) {
			t.Errorf("expected %v, got %v", want, got)
		}
	})

	t.Run("unknown category yields empty", func(t *testing.T) {
		got := c.SourceFormats("holograms")
		if got == nil || len(got) != 0 {
			t.Errorf("expected empty non-nil slice, got %#v", got)
		}
	})

	t.Run("unknown format yields empty", func(t *testing.T) {
		got := c.TargetFormats("XYZ")
		if got == nil || len(got) != 0 {
			t.Errorf("expected empty non-nil slice, got %#v", got)
		}
	})

	t.Run("lookups are case-insensitive", func(t *testing.T) {
		if !c.IsValidTarget("png", "jpg") {
			t.Error("expected png -> jpg to be valid")
		}
		if !c.HasSource("IMAGES", "webp") {
			t.Error("expected images to accept webp")
		}
	})

	t.Run("aliases fold", func(t *testing.T) {
		if !c.IsValidTarget("JPEG", "PNG") {
			t.Error("expected JPEG alias to resolve to JPG")
		}
		if c.CategoryOf(".tif") != Images {
			t.Errorf("expected .tif in images, got %q", c.CategoryOf(".tif"))
		}
	})

	t.Run("document pairs are specific", func(t *testing.T) {
		tests := []struct {
			source, target string
			valid          bool
		}{
			{"PDF", "DOCX", true},
			{"DOCX", "PDF", true},
			{"TXT", "HTML", true},
			{"HTML", "DOCX", false},
			{"PDF", "PDF", false},
			{"", "PDF", false},
		}
		for _, tc := range tests {
			if got := c.IsValidTarget(tc.source, tc.target); got != tc.valid {
				t.Errorf("IsValidTarget(%q, %q) = %v, want %v", tc.source, tc.target, got, tc.valid)
			}
		}
	})

	t.Run("returned slices are copies", func(t *testing.T) {
		targets := c.TargetFormats("PNG")
		targets[0] = "MUTATED"
		if slices.Contains(c.TargetFormats("PNG"), "MUTATED") {
			t.Error("catalog was mutated through a returned slice")
		}
	})
}

func TestNew(t *testing.T) {
	c := New(
		[]Category{{Name: "Things", Sources: []string{"AAA", "BBB", "aaa"}}, {Name: "empty", Sources: []string{"ZZZ"}}},
		map[string][]string{"AAA": {"AAA", "BBB", "bbb"}, "BBB": {"BBB"}},
	)

	if got := c.Categories(); !slices.Equal(got, []string{"things"}) {
		t.Errorf("expected only non-empty categories, got %v", got)
	}
	if got := c.SourceFormats("things"); !slices.Equal(got, []string{"AAA"}) {
		t.Errorf("expected sources without targets dropped, got %v", got)
	}
	if got := c.TargetFormats("AAA"); !slices.Equal(got, []string{"BBB"}) {
		t.Errorf("expected self and duplicate targets dropped, got %v", got)
	}
}

func TestMerge(t *testing.T) {
	c := Default()

	t.Run("empty remote keeps bundled catalog", func(t *testing.T) {
		if merged := c.Merge(nil); merged != c {
			t.Error("expected the same catalog back")
		}
	})

	t.Run("narrows to declared pairs", func(t *testing.T) {
		merged := c.Merge(map[string]RemoteFormats{
			"image":    {Input: []string{"png", "jpeg"}, Output: []string{"jpg", "webp"}},
			"document": {Input: []string{"pdf"}, Output: []string{"txt", "docx"}},
		})

		if got := merged.TargetFormats("PNG"); !slices.Equal(got, []string{"JPG", "WEBP"}) {
			t.Errorf("expected PNG -> [JPG WEBP], got %v", got)
		}
		if got := merged.TargetFormats("JPG"); !slices.Equal(got, []string{"WEBP"}) {
			t.Errorf("expected JPG -> [WEBP], got %v", got)
		}
		if got := merged.SourceFormats(Images); !slices.Equal(got, []string{"JPG", "PNG"}) {
			t.Errorf("expected images narrowed to [JPG PNG], got %v", got)
		}
		if got := merged.Categories(); !slices.Equal(got, []string{Images, Documents}) {
			t.Errorf("expected undeclared categories dropped, got %v", got)
		}
		if merged.IsValidTarget("PDF", "PNG") {
			t.Error("expected PDF -> PNG to be dropped")
		}
	})
}

func TestHelpers(t *testing.T) {
	tests := []struct {
		name, got, want string
	}{
		{"normalize", Normalize(" .jpeg "), "JPG"},
		{"extension", Extension("TIF"), "tiff"},
		{"title", Title("images"), "Images"},
		{"title upper", Title("ARCHIVES"), "Archives"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.got != tc.want {
				t.Errorf("expected %q, got %q", tc.want, tc.got)
			}
		})
	}
}
