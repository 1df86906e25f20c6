// Package importer loads facility rosters from jurisdiction CSV or XLSX
// exports into the store, merging on license number.
package importer

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/careaudit-cli/internal/model"
	"github.com/sells-group/careaudit-cli/internal/registry"
	"github.com/sells-group/careaudit-cli/internal/store"
)

// DefaultBatchSize is the number of facilities written per upsert.
const DefaultBatchSize = 500

// Report summarises an import.
type Report struct {
	Rows    int
	Skipped int
	// Upserted counts new facilities plus existing ones whose directory
	// fields changed.
	Upserted int64
}

// Importer reads rosters and upserts facilities.
type Importer struct {
	store      store.Store
	downloader *Downloader
	batchSize  int
}

// New creates an Importer.
func New(s store.Store, d *Downloader) *Importer {
	return &Importer{store: s, downloader: d, batchSize: DefaultBatchSize}
}

// Run imports source for jurisdiction j. Rows missing a license number or
// name are skipped; a later row for the same license replaces an earlier
// one.
func (im *Importer) Run(ctx context.Context, j *registry.Jurisdiction, source string) (Report, error) {
	var rep Report
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	dir, err := os.MkdirTemp("", "careaudit-import-*")
	if err != nil {
		return rep, eris.Wrap(err, "import: temp dir")
	}
	defer os.RemoveAll(dir) //nolint:errcheck

	path, err := im.downloader.Fetch(ctx, source, dir)
	if err != nil {
		return rep, err
	}
	format := formatFor(j.Import.Format, path)

	src, closeFn, err := openRows(ctx, path, format, j.Import.Sheet, j.Import.Delimiter)
	if err != nil {
		return rep, err
	}
	defer closeFn()

	var cols columnIndex
	headerSeen := false
	byLicense := make(map[string]int)
	var facilities []model.Facility

	for row := range src.rows {
		if !headerSeen {
			cols, err = indexColumns(row, j.Import.Columns)
			if err != nil {
				return rep, err
			}
			headerSeen = true
			continue
		}
		if blank(row) {
			continue
		}
		rep.Rows++

		f, ok := cols.facility(row, j)
		if !ok {
			rep.Skipped++
			continue
		}
		if i, dup := byLicense[f.LicenseNumber]; dup {
			facilities[i] = f
			continue
		}
		byLicense[f.LicenseNumber] = len(facilities)
		facilities = append(facilities, f)
	}
	if err := <-src.errs; err != nil {
		return rep, eris.Wrap(err, "import: read rows")
	}
	if !headerSeen {
		return rep, eris.New("import: source is empty")
	}

	for start := 0; start < len(facilities); start += im.batchSize {
		end := min(start+im.batchSize, len(facilities))
		n, err := im.store.UpsertFacilities(ctx, facilities[start:end])
		if err != nil {
			return rep, eris.Wrapf(err, "import: upsert batch at row %d", start)
		}
		rep.Upserted += n
	}

	zap.L().Info("import: complete",
		zap.String("jurisdiction", j.Code),
		zap.String("format", format),
		zap.Int("rows", rep.Rows),
		zap.Int("skipped", rep.Skipped),
		zap.Int64("upserted", rep.Upserted),
	)
	return rep, nil
}

func formatFor(configured, path string) string {
	if configured != "" {
		return strings.ToLower(configured)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return "xlsx"
	case ".tsv", ".txt":
		return "tsv"
	default:
		return "csv"
	}
}

func blank(row []string) bool {
	for _, c := range row {
		if c != "" {
			return false
		}
	}
	return true
}

// columnIndex holds the position of each mapped column, -1 when absent.
type columnIndex struct {
	license, name, address, city, county, phone, capacity, status, reportURL int
}

func indexColumns(header []string, m registry.ColumnMap) (columnIndex, error) {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		pos[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	find := func(name string) int {
		if name == "" {
			return -1
		}
		if i, ok := pos[strings.ToLower(strings.TrimSpace(name))]; ok {
			return i
		}
		return -1
	}

	c := columnIndex{
		license:   find(m.LicenseNumber),
		name:      find(m.Name),
		address:   find(m.Address),
		city:      find(m.City),
		county:    find(m.County),
		phone:     find(m.Phone),
		capacity:  find(m.Capacity),
		status:    find(m.Status),
		reportURL: find(m.ReportURL),
	}
	if c.license < 0 {
		return c, eris.Errorf("import: license column %q not in header", m.LicenseNumber)
	}
	if c.name < 0 {
		return c, eris.Errorf("import: name column %q not in header", m.Name)
	}
	return c, nil
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

func (c columnIndex) facility(row []string, j *registry.Jurisdiction) (model.Facility, bool) {
	license := strings.TrimSpace(cell(row, c.license))
	name := normalizeName(cell(row, c.name))
	if license == "" || name == "" {
		return model.Facility{}, false
	}
	city := normalizeName(cell(row, c.city))
	reportURL := cell(row, c.reportURL)
	if reportURL == "" {
		reportURL = j.ReportURL(license)
	}
	return model.Facility{
		LicenseNumber: license,
		Jurisdiction:  j.Code,
		Name:          name,
		City:          city,
		County:        normalizeName(cell(row, c.county)),
		Address:       normalizeName(cell(row, c.address)),
		Phone:         normalizePhone(cell(row, c.phone)),
		Capacity:      parseCapacity(cell(row, c.capacity)),
		Slug:          facilitySlug(j.Slug, city, name, license),
		ReportURL:     reportURL,
		Status:        model.ParseFacilityStatus(cell(row, c.status)),
	}, true
}
