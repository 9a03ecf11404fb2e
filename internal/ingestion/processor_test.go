package ingestion

import (
	"strings"
	"testing"

	"github.com/go-playground/assert/v2"
	"github.com/google/uuid"

	"github.com/newsradar/backend/internal/storage/models"
)

func TestCleanHTML_ExtractsTextAndTitle(t *testing.T) {
	html := `<html>
	<head><title>Solar output hits record</title><script>var x = 1;</script></head>
	<body>
		<nav>Home | News</nav>
		<h1>Solar output hits record</h1>
		<p>Grid operators report record generation.</p>
		<aside>Related links</aside>
		<footer>Copyright</footer>
	</body>
	</html>`

	text, title := cleanHTML(html)

	assert.Equal(t, "Solar output hits record", title)
	if !strings.Contains(text, "Grid operators report record generation.") {
		t.Fatalf("body text missing: %q", text)
	}
	for _, noise := range []string{"var x", "Home | News", "Related links", "Copyright"} {
		if strings.Contains(text, noise) {
			t.Fatalf("boilerplate %q leaked into %q", noise, text)
		}
	}
}

func TestStripHTML(t *testing.T) {
	assert.Equal(t, "plain text", stripHTML("  plain text "))
	assert.Equal(t, "bold claim", stripHTML("<p><b>bold</b> claim</p>"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 10))
	assert.Equal(t, "ab", truncate("abcdef", 2))
}

func TestEmbeddingText_PrefersSummary(t *testing.T) {
	article := &models.Article{
		ID:      uuid.New(),
		Title:   "Solar output hits record",
		Summary: "Record generation reported.",
		Content: strings.Repeat("x", 5000),
	}

	text := embeddingText(article)
	assert.Equal(t, "Solar output hits record\nRecord generation reported.", text)

	article.Summary = ""
	text = embeddingText(article)
	if len(text) > len(article.Title)+1+2000 {
		t.Fatalf("content fallback not truncated: %d chars", len(text))
	}
}
