package db

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// Merge describes a keyed bulk merge into Table: rows are staged with COPY
// into a temp table, then inserted with ON CONFLICT (Keys) DO UPDATE.
type Merge struct {
	// Table may be schema-qualified.
	Table   string
	Columns []string
	Keys    []string
	// Update lists the columns rewritten on conflict. Columns outside it
	// keep their stored value. Nil means every non-key column.
	Update []string
	// Touch is a timestamp column set to now() on changed rows.
	Touch string
}

// BulkUpsert runs m over rows in one transaction and returns the number of
// rows inserted or changed. Existing rows whose Update columns already
// hold the incoming values are left alone, so Touch only moves on real
// changes.
func BulkUpsert(ctx context.Context, pool Pool, m Merge, rows [][]any) (int64, error) {
	switch {
	case len(rows) == 0:
		return 0, nil
	case len(m.Columns) == 0:
		return 0, eris.New("db: merge: no columns")
	case len(m.Keys) == 0:
		return 0, eris.New("db: merge: no conflict keys")
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "db: merge: begin")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	stage := m.stageTable()
	if _, err := tx.Exec(ctx, "CREATE TEMP TABLE "+stage.Sanitize()+
		" (LIKE "+identifier(m.Table).Sanitize()+" INCLUDING DEFAULTS) ON COMMIT DROP"); err != nil {
		return 0, eris.Wrapf(err, "db: merge: stage %s", m.Table)
	}
	if _, err := tx.CopyFrom(ctx, stage, m.Columns, pgx.CopyFromRows(rows)); err != nil {
		return 0, eris.Wrapf(err, "db: merge: copy into stage for %s", m.Table)
	}
	tag, err := tx.Exec(ctx, m.sql())
	if err != nil {
		return 0, eris.Wrapf(err, "db: merge: insert into %s", m.Table)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "db: merge: commit")
	}
	return tag.RowsAffected(), nil
}

func (m Merge) stageTable() pgx.Identifier {
	return pgx.Identifier{"_stage_" + strings.ReplaceAll(m.Table, ".", "_")}
}

func (m Merge) updateColumns() []string {
	if m.Update != nil {
		return m.Update
	}
	var out []string
	for _, c := range m.Columns {
		if !contains(m.Keys, c) {
			out = append(out, c)
		}
	}
	return out
}

func (m Merge) sql() string {
	target := identifier(m.Table).Sanitize()
	cols := quoted(m.Columns)

	var b strings.Builder
	b.WriteString("INSERT INTO " + target + " AS t (" + strings.Join(cols, ", ") + ")")
	b.WriteString(" SELECT " + strings.Join(cols, ", ") + " FROM " + m.stageTable().Sanitize())
	b.WriteString(" ON CONFLICT (" + strings.Join(quoted(m.Keys), ", ") + ")")

	upd := quoted(m.updateColumns())
	if len(upd) == 0 {
		b.WriteString(" DO NOTHING")
		return b.String()
	}
	set := make([]string, 0, len(upd)+1)
	incoming := make([]string, len(upd))
	current := make([]string, len(upd))
	for i, c := range upd {
		set = append(set, c+" = EXCLUDED."+c)
		incoming[i] = "EXCLUDED." + c
		current[i] = "t." + c
	}
	if m.Touch != "" {
		set = append(set, pgx.Identifier{m.Touch}.Sanitize()+" = now()")
	}
	b.WriteString(" DO UPDATE SET " + strings.Join(set, ", "))
	b.WriteString(" WHERE (" + strings.Join(current, ", ") + ") IS DISTINCT FROM (" + strings.Join(incoming, ", ") + ")")
	return b.String()
}

// identifier splits a schema-qualified name like "public.facilities".
func identifier(table string) pgx.Identifier {
	return pgx.Identifier(strings.SplitN(table, ".", 2))
}

func quoted(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = pgx.Identifier{c}.Sanitize()
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
