// Package registry loads the per-jurisdiction settings the pipeline needs:
// where inspection reports live and how import files are laid out.
package registry

import (
	_ "embed"
	"net/url"
	"os"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed jurisdictions.yaml
var defaultRegistry []byte

// licensePlaceholder is replaced by the license number in report URL
// templates.
const licensePlaceholder = "{license}"

// Jurisdiction is one licensing authority, keyed by its two-letter code.
type Jurisdiction struct {
	Code              string        `yaml:"-"`
	Name              string        `yaml:"name"`
	Slug              string        `yaml:"slug"`
	ReportURLTemplate string        `yaml:"report_url_template"`
	Import            ImportMapping `yaml:"import"`
}

// ImportMapping describes a bulk import file for the jurisdiction.
type ImportMapping struct {
	// Format is csv or xlsx. Empty infers it from the source extension.
	Format    string    `yaml:"format"`
	Sheet     string    `yaml:"sheet"`
	Delimiter string    `yaml:"delimiter"`
	Columns   ColumnMap `yaml:"columns"`
}

// ColumnMap maps facility fields to source header names.
type ColumnMap struct {
	LicenseNumber string `yaml:"license_number"`
	Name          string `yaml:"name"`
	Address       string `yaml:"address"`
	City          string `yaml:"city"`
	County        string `yaml:"county"`
	Phone         string `yaml:"phone"`
	Capacity      string `yaml:"capacity"`
	Status        string `yaml:"status"`
	ReportURL     string `yaml:"report_url"`
}

// ReportURL fills the template with license. It returns "" when the
// jurisdiction has no template or license is empty.
func (j *Jurisdiction) ReportURL(license string) string {
	license = strings.TrimSpace(license)
	if j.ReportURLTemplate == "" || license == "" {
		return ""
	}
	return strings.ReplaceAll(j.ReportURLTemplate, licensePlaceholder, url.QueryEscape(license))
}

// Registry indexes jurisdictions by code.
type Registry struct {
	byCode map[string]*Jurisdiction
}

// Default returns the built-in registry.
func Default() (*Registry, error) {
	return Parse(defaultRegistry)
}

// Load reads a registry file. An empty path returns the built-in registry.
func Load(path string) (*Registry, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "registry: read %s", path)
	}
	return Parse(data)
}

// Parse decodes a registry document.
func Parse(data []byte) (*Registry, error) {
	var doc struct {
		Jurisdictions map[string]*Jurisdiction `yaml:"jurisdictions"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "registry: parse")
	}
	if len(doc.Jurisdictions) == 0 {
		return nil, eris.New("registry: no jurisdictions defined")
	}

	r := &Registry{byCode: make(map[string]*Jurisdiction, len(doc.Jurisdictions))}
	for code, j := range doc.Jurisdictions {
		if j == nil {
			j = &Jurisdiction{}
		}
		code = strings.ToUpper(strings.TrimSpace(code))
		if len(code) != 2 {
			return nil, eris.Errorf("registry: jurisdiction code %q must be two letters", code)
		}
		if j.ReportURLTemplate != "" && !strings.Contains(j.ReportURLTemplate, licensePlaceholder) {
			return nil, eris.Errorf("registry: %s report_url_template lacks %s", code, licensePlaceholder)
		}
		j.Code = code
		r.byCode[code] = j
	}
	return r, nil
}

// Get returns the jurisdiction for code, case-insensitively.
func (r *Registry) Get(code string) (*Jurisdiction, error) {
	j, ok := r.byCode[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return nil, eris.Errorf("registry: unknown jurisdiction %q", code)
	}
	return j, nil
}

// Codes returns the known jurisdiction codes in sorted order.
func (r *Registry) Codes() []string {
	codes := make([]string, 0, len(r.byCode))
	for c := range r.byCode {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}
