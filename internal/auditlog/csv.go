package auditlog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"air-server/internal/model"
)

// WriteCSVFile writes recs to path with a header row.
func WriteCSVFile(path string, recs []model.AuditRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return WriteCSV(f, recs)
}

// WriteCSV writes recs with a header row of column names.
func WriteCSV(out io.Writer, recs []model.AuditRecord) error {
	w := csv.NewWriter(out)
	if err := w.Write(model.AuditColumns); err != nil {
		return err
	}
	for _, r := range recs {
		row := []string{
			strconv.FormatInt(r.ID, 10),
			fmtTime(r.Timestamp),
			r.Machine,
			r.Username,
			r.ClientIP,
			r.Endpoint,
			strconv.Itoa(r.StatusCode),
			r.Parameters,
			fmtFloat(r.ResponseTime),
			r.Method,
			deref(r.ResponseBody),
			deref(r.ErrorMessage),
			r.UserAgent,
			r.Referrer,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// ReadCSV parses records written by WriteCSV. Columns are matched by header
// name, so any subset in any order is accepted. Empty optional columns read
// as unset.
func ReadCSV(in io.Reader) ([]model.AuditRecord, error) {
	r := csv.NewReader(in)
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if err := CheckFields(header...); err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}
	r.FieldsPerRecord = len(header)

	var recs []model.AuditRecord
	for line := 2; ; line++ {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			return recs, nil
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		patch := make(Patch, len(header))
		var id int64
		for i, col := range header {
			cell := row[i]
			if col == model.ColID {
				if cell != "" {
					if id, err = strconv.ParseInt(cell, 10, 64); err != nil {
						return nil, fmt.Errorf("line %d: id %q: %w", line, cell, err)
					}
				}
				continue
			}
			if cell == "" && model.ColumnKinds[col] != model.KindText {
				continue
			}
			if cell == "" && (col == model.ColResponseBody || col == model.ColErrorMessage) {
				continue
			}
			patch[col] = cell
		}
		norm, err := NormalizePatch(patch)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rec := model.AuditRecord{ID: id}
		applyPatch(&rec, norm)
		recs = append(recs, rec)
	}
}

func fmtTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func fmtFloat(x float64) string {
	return strconv.FormatFloat(x, 'f', -1, 64)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
