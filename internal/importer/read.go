package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// rowSource streams trimmed roster rows, header first. errs yields at most
// one error once rows is closed.
type rowSource struct {
	rows <-chan []string
	errs <-chan error
}

// stream runs next on a goroutine until it returns io.EOF or an error,
// forwarding each row. A cancelled ctx ends the stream with ctx.Err().
func stream(ctx context.Context, next func() ([]string, error)) rowSource {
	rows := make(chan []string, 64)
	errs := make(chan error, 1)
	go func() {
		defer close(errs)
		defer close(rows)
		for {
			row, err := next()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				errs <- err
				return
			}
			for i := range row {
				row[i] = strings.TrimSpace(row[i])
			}
			select {
			case rows <- row:
			case <-ctx.Done():
				errs <- eris.Wrap(ctx.Err(), "import: read cancelled")
				return
			}
		}
	}()
	return rowSource{rows: rows, errs: errs}
}

// delimitedRows reads a CSV or TSV roster. State exports are loose about
// quoting and row width, so both are tolerated.
func delimitedRows(r io.Reader, comma rune) func() ([]string, error) {
	cr := csv.NewReader(r)
	cr.Comma = comma
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	return func() ([]string, error) {
		rec, err := cr.Read()
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, eris.Wrap(err, "import: read csv")
		}
		return rec, err
	}
}

// sheetRows reads every row of a workbook sheet.
func sheetRows(sheet *xlsx.Sheet) func() ([]string, error) {
	i := 0
	return func() ([]string, error) {
		if i >= len(sheet.Rows) {
			return nil, io.EOF
		}
		cells := sheet.Rows[i].Cells
		i++
		row := make([]string, len(cells))
		for j, c := range cells {
			row[j] = c.String()
		}
		return row, nil
	}
}

// pickSheet returns the named sheet, or the first one when name is empty.
func pickSheet(wb *xlsx.File, name string) (*xlsx.Sheet, error) {
	if name == "" {
		if len(wb.Sheets) == 0 {
			return nil, eris.New("import: workbook has no sheets")
		}
		return wb.Sheets[0], nil
	}
	if s, ok := wb.Sheet[name]; ok {
		return s, nil
	}
	return nil, eris.Errorf("import: sheet %q not found", name)
}

// openRows opens path in the given format. The close func releases the
// file once the caller has drained the source.
func openRows(ctx context.Context, path, format, sheet, delimiter string) (rowSource, func(), error) {
	switch format {
	case "xlsx":
		wb, err := xlsx.OpenFile(path)
		if err != nil {
			return rowSource{}, nil, eris.Wrap(err, "import: open workbook")
		}
		s, err := pickSheet(wb, sheet)
		if err != nil {
			return rowSource{}, nil, err
		}
		return stream(ctx, sheetRows(s)), func() {}, nil

	case "csv", "tsv":
		comma := ','
		if format == "tsv" {
			comma = '\t'
		}
		if delimiter != "" {
			comma = []rune(delimiter)[0]
		}
		f, err := os.Open(path)
		if err != nil {
			return rowSource{}, nil, eris.Wrap(err, "import: open roster")
		}
		return stream(ctx, delimitedRows(f, comma)), func() { _ = f.Close() }, nil
	}
	return rowSource{}, nil, eris.Errorf("import: unsupported format %q", format)
}
