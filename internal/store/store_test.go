package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSourceFilterEscapesLiterals(t *testing.T) {
	assert.Equal(t, `source == "report.pdf"`, sourceFilter("report.pdf"))
	assert.Equal(t, `source == "we\"ird.pdf"`, sourceFilter(`we"ird.pdf`))
	assert.Equal(t, `source == "back\\slash.pdf"`, sourceFilter(`back\slash.pdf`))
}

func TestSourcesFilter(t *testing.T) {
	expr := sourcesFilter([]string{"a.pdf", `b"b.pdf`})
	assert.Equal(t, `source in ["a.pdf", "b\"b.pdf"]`, expr)
}
