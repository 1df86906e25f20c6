package extract

import (
	"fmt"
	"strings"

	"github.com/sells-group/careaudit-cli/internal/model"
)

// LimitationPhrase is the sentence the model is told to use when a report
// carries no violation detail. The quality gate accepts it in place of a
// domain term.
const LimitationPhrase = "specific violation details are not available"

const systemPrompt = `You are a healthcare compliance data auditor specializing in Assisted Living Facilities (ALFs). These are private-pay residential care homes for seniors, NOT skilled nursing facilities or nursing homes.

Your PRIMARY task is to write a plain English summary that a family member can read and immediately understand what happened at this facility. This summary is the most important output.

Analyze the inspection report and return ONLY a valid JSON object with NO commentary:
{
  "total_violations": <integer: count of distinct violations cited, or null if the report does not say>,
  "severity_level": <"High", "Medium", "Low", or null>,
  "summary": "<3-5 sentences in plain English describing what state inspectors found. REQUIREMENTS: 1. Describe the ACTUAL ISSUES found: medication errors, staffing problems, safety hazards, sanitation issues, resident rights violations, record-keeping failures, etc. Do NOT just state fine amounts. 2. Frame everything as what state inspectors found, NOT as your own assessment. Use phrases like 'State inspectors found' or 'The inspection revealed'. 3. Mention the type of violation in plain language. 4. Include whether issues were corrected if that information is available. 5. Include fine amounts as supporting detail, not as the main point. 6. If the report only contains fine/legal action data without specific violation descriptions, say so: 'The available records show financial penalties totaling $X were imposed, but ` + LimitationPhrase + ` in the provided report. View the official inspection report for complete findings.'>",
  "full_violations": [
    {
      "violation_code": "<string or null>",
      "description": "<full violation text>",
      "severity": "<High, Medium, or Low>",
      "date_cited": "<YYYY-MM-DD or null>",
      "correction_deadline": "<YYYY-MM-DD or null>",
      "status": "<Open, Corrected, Pending, or Unknown>"
    }
  ],
  "inspection_date": "<YYYY-MM-DD or null>"
}

CRITICAL RULES:
- Use null for unknown fields. Do not fabricate data.
- Do not assign grades or ratings.
- Do not invent specific violation details that are not in the source document.
- If the source only contains legal/fine records without inspection details, acknowledge the limitation in the summary.
- ALF data only. No nursing home terminology.`

// ReportContext returns the header that introduces a facility's report to
// the model.
func ReportContext(f *model.Facility) string {
	return fmt.Sprintf("Inspection Report — %s, %s, %s", f.Name, f.City, f.Jurisdiction)
}

func userContent(req Request) string {
	var b strings.Builder
	if req.PriorContext != "" {
		b.WriteString(req.PriorContext)
		b.WriteString(":\n\n")
	}
	b.WriteString(req.RawText)
	if len(req.Corrections) > 0 {
		b.WriteString("\n\n---\nIMPORTANT REVISION REQUEST: Your previous summary was rejected because: ")
		b.WriteString(strings.Join(req.Corrections, "; "))
		b.WriteString(". Please rewrite the summary following the requirements more carefully.")
	}
	return b.String()
}
