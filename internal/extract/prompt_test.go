package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/careaudit-cli/internal/model"
)

func TestReportContext(t *testing.T) {
	f := &model.Facility{Name: "Sunrise Manor", City: "Tampa", Jurisdiction: "FL"}
	assert.Equal(t, "Inspection Report — Sunrise Manor, Tampa, FL", ReportContext(f))
}

func TestUserContent(t *testing.T) {
	got := userContent(Request{PriorContext: "Inspection Report — A, B, FL", RawText: "report body"})
	assert.Equal(t, "Inspection Report — A, B, FL:\n\nreport body", got)
	assert.NotContains(t, got, "REVISION")
}

func TestUserContent_Corrections(t *testing.T) {
	got := userContent(Request{
		RawText:     "report body",
		Corrections: []string{"fewer than 2 sentences", "over 800 characters"},
	})
	assert.True(t, strings.HasPrefix(got, "report body"))
	assert.Contains(t, got, "rejected because: fewer than 2 sentences; over 800 characters.")
}

func TestSystemPrompt(t *testing.T) {
	assert.Contains(t, systemPrompt, LimitationPhrase)
	assert.Contains(t, systemPrompt, "Do not assign grades")
	assert.Contains(t, systemPrompt, `"severity_level"`)
}
