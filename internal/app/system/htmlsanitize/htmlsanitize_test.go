package htmlsanitize_test

import (
	"testing"

	"github.com/ciaranj/piglet/internal/app/system/htmlsanitize"
)

func TestText_Empty(t *testing.T) {
	if got := htmlsanitize.Text(""); got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
}

func TestText_PlainText(t *testing.T) {
	if got := htmlsanitize.Text("Product Docs 9.1"); got != "Product Docs 9.1" {
		t.Errorf("expected plain text unchanged, got %q", got)
	}
}

func TestText_StripsTags(t *testing.T) {
	if got := htmlsanitize.Text("<b>Docs</b> <script>alert('x')</script>"); got != "Docs" {
		t.Errorf("expected tags stripped, got %q", got)
	}
}

func TestText_UnescapesEntities(t *testing.T) {
	if got := htmlsanitize.Text("Tips & Tricks"); got != "Tips & Tricks" {
		t.Errorf("expected ampersand preserved, got %q", got)
	}
}

func TestText_TrimsWhitespace(t *testing.T) {
	if got := htmlsanitize.Text("  Help Center  "); got != "Help Center" {
		t.Errorf("expected trimmed text, got %q", got)
	}
}
