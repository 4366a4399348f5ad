package auditlog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"air-server/internal/model"
)

// DefaultTable is the table holding the log.
const DefaultTable = "api_call"

// DB is the subset of pgxpool.Pool used by PostgresStore.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresStore keeps the log in a PostgreSQL table.
type PostgresStore struct {
	db     DB
	table  string
	logger *slog.Logger
}

// NewPostgresStore returns a store over db. An empty table name selects
// DefaultTable.
func NewPostgresStore(db DB, table string, logger *slog.Logger) *PostgresStore {
	if logger == nil {
		logger = slog.Default()
	}
	if table == "" {
		table = DefaultTable
	}
	return &PostgresStore{
		db:     db,
		table:  pgx.Identifier{table}.Sanitize(),
		logger: logger,
	}
}

// EnsureSchema creates the table and its timestamp index if missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, createTableSQL(s.table))
	if err != nil {
		return storageErr("create table", err)
	}
	idx := pgx.Identifier{strings.Trim(s.table, `"`) + "_timestamp_idx"}.Sanitize()
	_, err = s.db.Exec(ctx, fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s ("timestamp")`, idx, s.table))
	if err != nil {
		return storageErr("create index", err)
	}
	s.logger.Debug("audit schema ready", "table", s.table)
	return nil
}

func createTableSQL(table string) string {
	return fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			"id"            BIGSERIAL PRIMARY KEY,
			"timestamp"     TIMESTAMPTZ NOT NULL DEFAULT now(),
			"machine"       VARCHAR(%d),
			"username"      VARCHAR(%d),
			"client_ip"     VARCHAR(%d),
			"endpoint"      VARCHAR(%d),
			"status_code"   INTEGER,
			"parameters"    TEXT,
			"response_time" DOUBLE PRECISION,
			"method"        VARCHAR(%d),
			"response_body" TEXT,
			"error_message" VARCHAR(%d),
			"user_agent"    VARCHAR(%d),
			"referrer"      VARCHAR(%d)
		)`,
		table,
		model.ColumnWidths[model.ColMachine],
		model.ColumnWidths[model.ColUsername],
		model.ColumnWidths[model.ColClientIP],
		model.ColumnWidths[model.ColEndpoint],
		model.ColumnWidths[model.ColMethod],
		model.ColumnWidths[model.ColErrorMessage],
		model.ColumnWidths[model.ColUserAgent],
		model.ColumnWidths[model.ColReferrer],
	)
}

// selectColumns lists columns in AuditRecord field order so rows scan by
// position. Nullable text columns the record holds as plain strings are
// coalesced.
const selectColumns = `"id", "timestamp",
	COALESCE("machine", ''), COALESCE("username", ''), COALESCE("client_ip", ''), COALESCE("endpoint", ''),
	COALESCE("status_code", 0), COALESCE("parameters", ''), COALESCE("response_time", 0), COALESCE("method", ''),
	"response_body", "error_message", COALESCE("user_agent", ''), COALESCE("referrer", '')`

const insertColumns = `"timestamp", "machine", "username", "client_ip", "endpoint", "status_code",
	"parameters", "response_time", "method", "response_body", "error_message", "user_agent", "referrer"`

func (s *PostgresStore) insertSQL() string {
	return fmt.Sprintf(`INSERT INTO %s (%s)
		VALUES (COALESCE($1, now()), $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING %s`, s.table, insertColumns, selectColumns)
}

func insertArgs(r model.AuditRecord) []any {
	var ts *time.Time
	if !r.Timestamp.IsZero() {
		ts = &r.Timestamp
	}
	return []any{ts, r.Machine, r.Username, r.ClientIP, r.Endpoint, r.StatusCode,
		r.Parameters, r.ResponseTime, r.Method, r.ResponseBody, r.ErrorMessage, r.UserAgent, r.Referrer}
}

func collect(rows pgx.Rows) ([]model.AuditRecord, error) {
	return pgx.CollectRows(rows, pgx.RowToStructByPos[model.AuditRecord])
}

func (s *PostgresStore) Append(ctx context.Context, rec model.AuditRecord) (model.AuditRecord, error) {
	rows, err := s.db.Query(ctx, s.insertSQL(), insertArgs(rec.Clamp())...)
	if err != nil {
		return model.AuditRecord{}, storageErr("append", err)
	}
	out, err := pgx.CollectOneRow(rows, pgx.RowToStructByPos[model.AuditRecord])
	if err != nil {
		return model.AuditRecord{}, storageErr("append", err)
	}
	return out, nil
}

// BulkInsert writes recs in one transaction using a pgx.Batch.
func (s *PostgresStore) BulkInsert(ctx context.Context, recs []model.AuditRecord) (int, error) {
	if len(recs) == 0 {
		return 0, nil
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, storageErr("bulk insert", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	batch := &pgx.Batch{}
	sql := s.insertSQL()
	for _, r := range recs {
		batch.Queue(sql, insertArgs(r.Clamp())...)
	}
	results := tx.SendBatch(ctx, batch)
	for range recs {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return 0, storageErr("bulk insert", err)
		}
	}
	if err := results.Close(); err != nil {
		return 0, storageErr("bulk insert", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, storageErr("bulk insert", err)
	}
	s.logger.Info("bulk inserted audit records", "count", len(recs))
	return len(recs), nil
}

func (s *PostgresStore) Paginate(ctx context.Context, page, perPage int, filters Filters) (Page, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	norm, err := NormalizeFilters(filters)
	if err != nil {
		return Page{}, err
	}
	where, args := buildWhere(norm, 1)

	var total int
	err = s.db.QueryRow(ctx, fmt.Sprintf(`SELECT count(*) FROM %s%s`, s.table, where), args...).Scan(&total)
	if err != nil {
		return Page{}, storageErr("paginate", err)
	}

	p := Page{
		Items:       []model.AuditRecord{},
		Total:       total,
		Pages:       pageCount(total, perPage),
		CurrentPage: page,
		PerPage:     perPage,
	}
	offset, ok := pageOffset(page, perPage, total)
	if !ok {
		return p, nil
	}

	n := len(args)
	q := fmt.Sprintf(`SELECT %s FROM %s%s ORDER BY "id" LIMIT $%d OFFSET $%d`,
		selectColumns, s.table, where, n+1, n+2)
	rows, err := s.db.Query(ctx, q, append(args, perPage, offset)...)
	if err != nil {
		return Page{}, storageErr("paginate", err)
	}
	items, err := collect(rows)
	if err != nil {
		return Page{}, storageErr("paginate", err)
	}
	if items != nil {
		p.Items = items
	}
	return p, nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id int64) (*model.AuditRecord, error) {
	rows, err := s.db.Query(ctx, fmt.Sprintf(`SELECT %s FROM %s WHERE "id" = $1`, selectColumns, s.table), id)
	if err != nil {
		return nil, storageErr("find", err)
	}
	rec, err := pgx.CollectOneRow(rows, pgx.RowToStructByPos[model.AuditRecord])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("find", err)
	}
	return &rec, nil
}

// Update locks the row, applies patch and writes every column back.
func (s *PostgresStore) Update(ctx context.Context, id int64, patch Patch) (*model.AuditRecord, error) {
	norm, err := NormalizePatch(patch)
	if err != nil {
		return nil, err
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, storageErr("update", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	rows, err := tx.Query(ctx, fmt.Sprintf(`SELECT %s FROM %s WHERE "id" = $1 FOR UPDATE`, selectColumns, s.table), id)
	if err != nil {
		return nil, storageErr("update", err)
	}
	rec, err := pgx.CollectOneRow(rows, pgx.RowToStructByPos[model.AuditRecord])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("update", err)
	}

	applyPatch(&rec, norm)
	rec = rec.Clamp()
	args := insertArgs(rec)
	q := fmt.Sprintf(`UPDATE %s SET ("timestamp", "machine", "username", "client_ip", "endpoint", "status_code",
		"parameters", "response_time", "method", "response_body", "error_message", "user_agent", "referrer")
		= (COALESCE($1, now()), $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		WHERE "id" = $14 RETURNING %s`, s.table, selectColumns)
	rows, err = tx.Query(ctx, q, append(args, id)...)
	if err != nil {
		return nil, storageErr("update", err)
	}
	updated, err := pgx.CollectOneRow(rows, pgx.RowToStructByPos[model.AuditRecord])
	if err != nil {
		return nil, storageErr("update", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, storageErr("update", err)
	}
	return &updated, nil
}

func (s *PostgresStore) DeleteByID(ctx context.Context, id int64) (DeleteResult, error) {
	tag, err := s.db.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE "id" = $1`, s.table), id)
	if err != nil {
		return DeleteResult{Status: StatusError, Message: err.Error()}, storageErr("delete", err)
	}
	if tag.RowsAffected() == 0 {
		return DeleteResult{Status: StatusNotFound}, nil
	}
	return DeleteResult{Status: StatusSuccess, RowsDeleted: int64Ptr(tag.RowsAffected())}, nil
}

// DeleteAll removes every record in one transaction. On failure nothing is
// removed.
func (s *PostgresStore) DeleteAll(ctx context.Context) (DeleteResult, error) {
	fail := func(err error) (DeleteResult, error) {
		s.logger.Error("delete all audit records failed", "error", err)
		return DeleteResult{Status: StatusError, Message: err.Error()}, storageErr("delete all", err)
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fail(err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	tag, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s`, s.table))
	if err != nil {
		return fail(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fail(err)
	}
	s.logger.Info("deleted all audit records", "count", tag.RowsAffected())
	return DeleteResult{Status: StatusSuccess, RowsDeleted: int64Ptr(tag.RowsAffected())}, nil
}

func (s *PostgresStore) CountBy(ctx context.Context, filters Filters) (int, error) {
	norm, err := NormalizeFilters(filters)
	if err != nil {
		return 0, err
	}
	where, args := buildWhere(norm, 1)
	var n int
	err = s.db.QueryRow(ctx, fmt.Sprintf(`SELECT count(*) FROM %s%s`, s.table, where), args...).Scan(&n)
	if err != nil {
		return 0, storageErr("count", err)
	}
	return n, nil
}

func (s *PostgresStore) DistinctValues(ctx context.Context, field string) ([]any, error) {
	if err := CheckFields(field); err != nil {
		return nil, err
	}
	col := pgx.Identifier{field}.Sanitize()
	rows, err := s.db.Query(ctx, fmt.Sprintf(`SELECT DISTINCT %s FROM %s WHERE %s IS NOT NULL ORDER BY %s`, col, s.table, col, col))
	if err != nil {
		return nil, storageErr("distinct", err)
	}
	vals, err := pgx.CollectRows(rows, pgx.RowTo[any])
	if err != nil {
		return nil, storageErr("distinct", err)
	}
	kind := model.ColumnKinds[field]
	for i, v := range vals {
		if vals[i], err = Coerce(kind, v); err != nil {
			return nil, storageErr("distinct", err)
		}
	}
	return vals, nil
}

func (s *PostgresStore) All(ctx context.Context, filters Filters) ([]model.AuditRecord, error) {
	norm, err := NormalizeFilters(filters)
	if err != nil {
		return nil, err
	}
	where, args := buildWhere(norm, 1)
	rows, err := s.db.Query(ctx, fmt.Sprintf(`SELECT %s FROM %s%s ORDER BY "id"`, selectColumns, s.table, where), args...)
	if err != nil {
		return nil, storageErr("list", err)
	}
	recs, err := collect(rows)
	if err != nil {
		return nil, storageErr("list", err)
	}
	if recs == nil {
		recs = []model.AuditRecord{}
	}
	return recs, nil
}

func (s *PostgresStore) Search(ctx context.Context, term string, fields []string) ([]model.AuditRecord, error) {
	if len(fields) == 0 {
		fields = TextColumns()
	}
	if err := CheckFields(fields...); err != nil {
		return nil, err
	}
	conds := make([]string, len(fields))
	for i, f := range fields {
		conds[i] = fmt.Sprintf(`CAST(%s AS TEXT) ILIKE $1`, pgx.Identifier{f}.Sanitize())
	}
	q := fmt.Sprintf(`SELECT %s FROM %s WHERE %s ORDER BY "id"`, selectColumns, s.table, strings.Join(conds, " OR "))
	rows, err := s.db.Query(ctx, q, "%"+escapeLike(term)+"%")
	if err != nil {
		return nil, storageErr("search", err)
	}
	recs, err := collect(rows)
	if err != nil {
		return nil, storageErr("search", err)
	}
	if recs == nil {
		recs = []model.AuditRecord{}
	}
	return recs, nil
}

// Close closes the underlying pool if it has a Close method.
func (s *PostgresStore) Close() {
	if c, ok := s.db.(interface{ Close() }); ok {
		c.Close()
	}
}

// buildWhere renders normalized filters as a WHERE clause with numbered
// placeholders starting at $start. Columns are ANDed, values within a
// column ORed.
func buildWhere(f Filters, start int) (string, []any) {
	if len(f) == 0 {
		return "", nil
	}
	var (
		clauses []string
		args    []any
		n       = start
	)
	for _, col := range sortedKeys(f) {
		ident := pgx.Identifier{col}.Sanitize()
		vals := f[col]
		if len(vals) == 0 {
			clauses = append(clauses, "FALSE")
			continue
		}
		var alts []string
		for _, v := range vals {
			if v == nil {
				alts = append(alts, ident+" IS NULL")
				continue
			}
			alts = append(alts, fmt.Sprintf("%s = $%d", ident, n))
			args = append(args, v)
			n++
		}
		if len(alts) == 1 {
			clauses = append(clauses, alts[0])
		} else {
			clauses = append(clauses, "("+strings.Join(alts, " OR ")+")")
		}
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }
