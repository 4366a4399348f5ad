package auditlog

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"air-server/internal/model"
)

// MemoryStore keeps the log in process memory. Records are held in id
// order.
type MemoryStore struct {
	mu      sync.RWMutex
	records []model.AuditRecord
	nextID  int64
	now     func() time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextID: 1, now: time.Now}
}

func (s *MemoryStore) Append(ctx context.Context, rec model.AuditRecord) (model.AuditRecord, error) {
	if err := ctx.Err(); err != nil {
		return model.AuditRecord{}, storageErr("append", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked(rec), nil
}

func (s *MemoryStore) appendLocked(rec model.AuditRecord) model.AuditRecord {
	rec = rec.Clamp()
	rec.ID = s.nextID
	s.nextID++
	if rec.Timestamp.IsZero() {
		rec.Timestamp = s.now().UTC()
	}
	s.records = append(s.records, rec)
	return rec
}

func (s *MemoryStore) BulkInsert(ctx context.Context, recs []model.AuditRecord) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, storageErr("bulk insert", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range recs {
		s.appendLocked(r)
	}
	return len(recs), nil
}

func (s *MemoryStore) Paginate(ctx context.Context, page, perPage int, filters Filters) (Page, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	matched, err := s.All(ctx, filters)
	if err != nil {
		return Page{}, err
	}
	p := Page{
		Items:       []model.AuditRecord{},
		Total:       len(matched),
		Pages:       pageCount(len(matched), perPage),
		CurrentPage: page,
		PerPage:     perPage,
	}
	if start, ok := pageOffset(page, perPage, len(matched)); ok {
		p.Items = matched[start : start+min(perPage, len(matched)-start)]
	}
	return p, nil
}

func (s *MemoryStore) FindByID(ctx context.Context, id int64) (*model.AuditRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, storageErr("find", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexOf(id); i >= 0 {
		rec := s.records[i]
		return &rec, nil
	}
	return nil, nil
}

func (s *MemoryStore) Update(ctx context.Context, id int64, patch Patch) (*model.AuditRecord, error) {
	norm, err := NormalizePatch(patch)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, storageErr("update", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return nil, nil
	}
	rec := s.records[i]
	applyPatch(&rec, norm)
	rec = rec.Clamp()
	s.records[i] = rec
	return &rec, nil
}

func (s *MemoryStore) DeleteByID(ctx context.Context, id int64) (DeleteResult, error) {
	if err := ctx.Err(); err != nil {
		return DeleteResult{Status: StatusError, Message: err.Error()}, storageErr("delete", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return DeleteResult{Status: StatusNotFound}, nil
	}
	s.records = slices.Delete(s.records, i, i+1)
	return DeleteResult{Status: StatusSuccess, RowsDeleted: int64Ptr(1)}, nil
}

func (s *MemoryStore) DeleteAll(ctx context.Context) (DeleteResult, error) {
	if err := ctx.Err(); err != nil {
		return DeleteResult{Status: StatusError, Message: err.Error()}, storageErr("delete all", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n := int64(len(s.records))
	s.records = nil
	return DeleteResult{Status: StatusSuccess, RowsDeleted: int64Ptr(n)}, nil
}

func (s *MemoryStore) CountBy(ctx context.Context, filters Filters) (int, error) {
	recs, err := s.All(ctx, filters)
	if err != nil {
		return 0, err
	}
	return len(recs), nil
}

// DistinctValues returns the distinct non-null values of field in
// ascending order.
func (s *MemoryStore) DistinctValues(ctx context.Context, field string) ([]any, error) {
	if err := CheckFields(field); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, storageErr("distinct", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	kind := model.ColumnKinds[field]
	var out []any
	for _, r := range s.records {
		fv, _ := r.Field(field)
		if fv == nil {
			continue
		}
		v, err := Coerce(kind, fv)
		if err != nil {
			return nil, err
		}
		if !slices.ContainsFunc(out, func(x any) bool { return equalValues(x, v) }) {
			out = append(out, v)
		}
	}
	slices.SortFunc(out, model.CompareValues)
	return out, nil
}

func (s *MemoryStore) All(ctx context.Context, filters Filters) ([]model.AuditRecord, error) {
	norm, err := NormalizeFilters(filters)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, storageErr("list", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []model.AuditRecord{}
	for _, r := range s.records {
		if Matches(r, norm) {
			out = append(out, r)
		}
	}
	return out, nil
}

// Search returns records where any of fields contains term, ignoring case.
// No fields means every text column.
func (s *MemoryStore) Search(ctx context.Context, term string, fields []string) ([]model.AuditRecord, error) {
	if len(fields) == 0 {
		fields = TextColumns()
	}
	if err := CheckFields(fields...); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, storageErr("search", err)
	}
	needle := strings.ToLower(term)
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []model.AuditRecord{}
	for _, r := range s.records {
		for _, f := range fields {
			v, _ := r.Field(f)
			if v == nil {
				continue
			}
			if strings.Contains(strings.ToLower(fmt.Sprint(v)), needle) {
				out = append(out, r)
				break
			}
		}
	}
	return out, nil
}

func (s *MemoryStore) Close() {}

func (s *MemoryStore) indexOf(id int64) int {
	i, ok := slices.BinarySearchFunc(s.records, id, func(r model.AuditRecord, id int64) int {
		switch {
		case r.ID < id:
			return -1
		case r.ID > id:
			return 1
		}
		return 0
	})
	if !ok {
		return -1
	}
	return i
}
