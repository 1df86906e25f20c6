package document

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/careaudit-cli/internal/model"
	"github.com/sells-group/careaudit-cli/internal/registry"
)

// Resolver maps a facility to the locator of its inspection report.
type Resolver struct {
	registry *registry.Registry
}

// NewResolver creates a Resolver backed by reg.
func NewResolver(reg *registry.Registry) *Resolver {
	return &Resolver{registry: reg}
}

// Locate returns the facility's own report URL, or the jurisdiction
// template filled with its license number.
func (r *Resolver) Locate(f *model.Facility) (string, error) {
	if f.ReportURL != "" {
		return f.ReportURL, nil
	}
	j, err := r.registry.Get(f.Jurisdiction)
	if err != nil {
		return "", err
	}
	if u := j.ReportURL(f.LicenseNumber); u != "" {
		return u, nil
	}
	return "", eris.Errorf("document: no report locator for facility %s in %s", f.ID, j.Code)
}
