package extract

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/careaudit-cli/internal/model"
)

// Decode parses model output into a Candidate. Output is accepted only if
// it is exactly one JSON object matching the schema: unknown keys, wrong
// types and invalid enum values are errors.
func Decode(text string) (*model.Candidate, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &ExtractionError{Reason: ReasonEmpty, Err: eris.New("empty response")}
	}

	raw, ok := cleanJSON(text)
	if !ok {
		return nil, &ExtractionError{Reason: ReasonMalformed, Err: eris.New("no JSON object in response")}
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	var c model.Candidate
	if err := dec.Decode(&c); err != nil {
		return nil, &ExtractionError{Reason: ReasonSchema, Err: eris.Wrap(err, "decode candidate")}
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, &ExtractionError{Reason: ReasonMalformed, Err: eris.New("trailing data after JSON object")}
	}
	if err := check(&c); err != nil {
		return nil, &ExtractionError{Reason: ReasonSchema, Err: err}
	}
	return &c, nil
}

// cleanJSON strips a markdown code fence and any prose around the outermost
// JSON object.
func cleanJSON(text string) ([]byte, bool) {
	s := strings.TrimSpace(text)
	if i := strings.Index(s, "```"); i >= 0 {
		rest := s[i+3:]
		rest = strings.TrimPrefix(rest, "json")
		if j := strings.Index(rest, "```"); j >= 0 {
			s = strings.TrimSpace(rest[:j])
		}
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return nil, false
	}
	return []byte(s[start : end+1]), true
}

// check enforces the constraints the JSON types cannot express.
func check(c *model.Candidate) error {
	if c.TotalViolations != nil && *c.TotalViolations < 0 {
		return eris.Errorf("total_violations is negative (%d)", *c.TotalViolations)
	}
	for i, v := range c.Violations {
		if strings.TrimSpace(v.Description) == "" {
			return eris.Errorf("full_violations[%d]: description is required", i)
		}
		if v.Severity == "" {
			return eris.Errorf("full_violations[%d]: severity is required", i)
		}
	}
	return nil
}
