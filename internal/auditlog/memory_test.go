package auditlog

import (
	"context"
	"errors"
	"math"
	"reflect"
	"sync"
	"testing"
	"time"

	"air-server/internal/model"
)

var t0 = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

func seed(t *testing.T, s Store) []model.AuditRecord {
	t.Helper()
	msg := "AIR Error: bad grid"
	in := []model.AuditRecord{
		{Timestamp: t0, Username: "alice", Machine: "PC1", Endpoint: "/api/air", Method: "POST", StatusCode: 200, ResponseTime: 12.5},
		{Timestamp: t0.Add(time.Minute), Username: "bob", Machine: "PC2", Endpoint: "/api/air", Method: "POST", StatusCode: 200, ResponseTime: 30},
		{Timestamp: t0.Add(2 * time.Minute), Username: "alice", Machine: "PC1", Endpoint: "/api/air", Method: "POST", StatusCode: 500, ResponseTime: 4, ErrorMessage: &msg},
	}
	var out []model.AuditRecord
	for _, r := range in {
		rec, err := s.Append(context.Background(), r)
		if err != nil {
			t.Fatalf("Append() error: %v", err)
		}
		out = append(out, rec)
	}
	return out
}

func TestMemoryStore_AppendAssignsIDs(t *testing.T) {
	s := NewMemoryStore()
	recs := seed(t, s)
	for i, r := range recs {
		if r.ID != int64(i+1) {
			t.Errorf("record %d: ID = %d, want %d", i, r.ID, i+1)
		}
	}

	s.now = func() time.Time { return t0 }
	rec, err := s.Append(context.Background(), model.AuditRecord{Username: "carol"})
	if err != nil {
		t.Fatalf("Append() error: %v", err)
	}
	if !rec.Timestamp.Equal(t0) {
		t.Errorf("Timestamp = %v, want %v", rec.Timestamp, t0)
	}
}

func TestMemoryStore_Concurrent(t *testing.T) {
	s := NewMemoryStore()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Append(context.Background(), model.AuditRecord{Username: "u"}); err != nil {
				t.Errorf("Append() error: %v", err)
			}
		}()
	}
	wg.Wait()

	n, err := s.CountBy(context.Background(), nil)
	if err != nil || n != 50 {
		t.Fatalf("CountBy() = %d, %v; want 50", n, err)
	}
	vals, _ := s.DistinctValues(context.Background(), model.ColID)
	if len(vals) != 50 {
		t.Errorf("distinct ids = %d, want 50", len(vals))
	}
}

func TestMemoryStore_Paginate(t *testing.T) {
	s := NewMemoryStore()
	seed(t, s)
	ctx := context.Background()

	tests := []struct {
		name      string
		page, per int
		filters   Filters
		wantIDs   []int64
		wantTotal int
		wantPages int
		wantPage  int
	}{
		{"first page", 1, 2, nil, []int64{1, 2}, 3, 2, 1},
		{"second page", 2, 2, nil, []int64{3}, 3, 2, 2},
		{"past the end", 5, 2, nil, nil, 3, 2, 5},
		{"page below one", 0, 2, nil, []int64{1, 2}, 3, 2, 1},
		{"default per page", 1, 0, nil, []int64{1, 2, 3}, 3, 1, 1},
		{"filtered", 1, 10, Filters{"username": {"alice"}}, []int64{1, 3}, 2, 1, 1},
		{"no match", 1, 10, Filters{"username": {"nobody"}}, nil, 0, 0, 1},
		{"huge page", math.MaxInt / 2, 4, nil, nil, 3, 1, math.MaxInt / 2},
		{"huge per page", 1, math.MaxInt, nil, []int64{1, 2, 3}, 3, 1, 1},
		{"huge page and per page", math.MaxInt, math.MaxInt, nil, nil, 3, 1, math.MaxInt},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := s.Paginate(ctx, tt.page, tt.per, tt.filters)
			if err != nil {
				t.Fatalf("Paginate() error: %v", err)
			}
			var ids []int64
			for _, r := range p.Items {
				ids = append(ids, r.ID)
			}
			if !reflect.DeepEqual(ids, tt.wantIDs) {
				t.Errorf("ids = %v, want %v", ids, tt.wantIDs)
			}
			if p.Total != tt.wantTotal || p.Pages != tt.wantPages || p.CurrentPage != tt.wantPage {
				t.Errorf("total/pages/page = %d/%d/%d, want %d/%d/%d",
					p.Total, p.Pages, p.CurrentPage, tt.wantTotal, tt.wantPages, tt.wantPage)
			}
		})
	}
}

func TestMemoryStore_FiltersCoerceAndOr(t *testing.T) {
	s := NewMemoryStore()
	seed(t, s)
	ctx := context.Background()

	n, err := s.CountBy(ctx, Filters{"status_code": {"500"}})
	if err != nil || n != 1 {
		t.Errorf("CountBy(status_code=\"500\") = %d, %v; want 1", n, err)
	}
	n, _ = s.CountBy(ctx, Filters{"username": {"alice", "bob"}})
	if n != 3 {
		t.Errorf("CountBy(alice OR bob) = %d, want 3", n)
	}
	n, _ = s.CountBy(ctx, Filters{"username": {"alice"}, "status_code": {200}})
	if n != 1 {
		t.Errorf("CountBy(alice AND 200) = %d, want 1", n)
	}
	n, _ = s.CountBy(ctx, Filters{"error_message": {nil}})
	if n != 2 {
		t.Errorf("CountBy(error_message IS NULL) = %d, want 2", n)
	}

	_, err = s.CountBy(ctx, Filters{"password": {"x"}})
	if !errors.Is(err, ErrUnknownField) {
		t.Errorf("unknown column error = %v, want ErrUnknownField", err)
	}
	_, err = s.CountBy(ctx, Filters{"status_code": {"abc"}})
	if err == nil {
		t.Error("expected coercion error for status_code=abc")
	}
}

func TestMemoryStore_FindUpdateDelete(t *testing.T) {
	s := NewMemoryStore()
	seed(t, s)
	ctx := context.Background()

	rec, err := s.FindByID(ctx, 2)
	if err != nil || rec == nil || rec.Username != "bob" {
		t.Fatalf("FindByID(2) = %v, %v", rec, err)
	}
	if rec, _ := s.FindByID(ctx, 99); rec != nil {
		t.Errorf("FindByID(99) = %v, want nil", rec)
	}

	upd, err := s.Update(ctx, 2, Patch{"username": "robert", "status_code": "404"})
	if err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	if upd.Username != "robert" || upd.StatusCode != 404 || upd.Machine != "PC2" {
		t.Errorf("Update() = %+v", upd)
	}
	if upd, _ := s.Update(ctx, 99, Patch{"username": "x"}); upd != nil {
		t.Errorf("Update(99) = %v, want nil", upd)
	}
	if _, err := s.Update(ctx, 2, Patch{"id": 5}); !errors.Is(err, ErrImmutableField) {
		t.Errorf("Update(id) error = %v, want ErrImmutableField", err)
	}

	res, err := s.DeleteByID(ctx, 2)
	if err != nil || res.Status != StatusSuccess || *res.RowsDeleted != 1 {
		t.Errorf("DeleteByID(2) = %+v, %v", res, err)
	}
	res, _ = s.DeleteByID(ctx, 2)
	if res.Status != StatusNotFound {
		t.Errorf("second DeleteByID(2) status = %q, want %q", res.Status, StatusNotFound)
	}

	// Ids keep increasing after deletes.
	rec3, _ := s.FindByID(ctx, 3)
	if rec3 == nil {
		t.Fatal("record 3 missing after deleting 2")
	}
	next, _ := s.Append(ctx, model.AuditRecord{})
	if next.ID != 4 {
		t.Errorf("next ID = %d, want 4", next.ID)
	}
}

func TestMemoryStore_DeleteAll(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	res, err := s.DeleteAll(ctx)
	if err != nil || res.Status != StatusSuccess || *res.RowsDeleted != 0 {
		t.Errorf("DeleteAll(empty) = %+v, %v; want success with 0 rows", res, err)
	}

	seed(t, s)
	res, _ = s.DeleteAll(ctx)
	if *res.RowsDeleted != 3 {
		t.Errorf("RowsDeleted = %d, want 3", *res.RowsDeleted)
	}
	if n, _ := s.CountBy(ctx, nil); n != 0 {
		t.Errorf("count after DeleteAll = %d, want 0", n)
	}
}

func TestMemoryStore_DistinctValues(t *testing.T) {
	s := NewMemoryStore()
	seed(t, s)
	ctx := context.Background()

	got, err := s.DistinctValues(ctx, "username")
	if err != nil {
		t.Fatalf("DistinctValues() error: %v", err)
	}
	if want := []any{"alice", "bob"}; !reflect.DeepEqual(got, want) {
		t.Errorf("DistinctValues(username) = %v, want %v", got, want)
	}
	got, _ = s.DistinctValues(ctx, "status_code")
	if want := []any{int64(200), int64(500)}; !reflect.DeepEqual(got, want) {
		t.Errorf("DistinctValues(status_code) = %v, want %v", got, want)
	}
	got, _ = s.DistinctValues(ctx, "error_message")
	if want := []any{"AIR Error: bad grid"}; !reflect.DeepEqual(got, want) {
		t.Errorf("DistinctValues(error_message) = %v, want %v", got, want)
	}
	if _, err := s.DistinctValues(ctx, "nope"); !errors.Is(err, ErrUnknownField) {
		t.Errorf("error = %v, want ErrUnknownField", err)
	}
}

func TestMemoryStore_Search(t *testing.T) {
	s := NewMemoryStore()
	seed(t, s)
	ctx := context.Background()

	got, err := s.Search(ctx, "BAD", nil)
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(got) != 1 || got[0].ID != 3 {
		t.Errorf("Search(BAD) = %v, want record 3", got)
	}
	got, _ = s.Search(ctx, "pc", []string{"machine"})
	if len(got) != 3 {
		t.Errorf("Search(pc in machine) = %d records, want 3", len(got))
	}
	got, _ = s.Search(ctx, "alice", []string{"machine"})
	if len(got) != 0 {
		t.Errorf("Search(alice in machine) = %d records, want 0", len(got))
	}
}

func TestMemoryStore_BulkInsertClamps(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	n, err := s.BulkInsert(ctx, []model.AuditRecord{{Method: "VERYLONGMETHOD"}, {Method: "GET"}})
	if err != nil || n != 2 {
		t.Fatalf("BulkInsert() = %d, %v", n, err)
	}
	rec, _ := s.FindByID(ctx, 1)
	if len(rec.Method) != 10 {
		t.Errorf("Method = %q, want clamped to 10", rec.Method)
	}
}

func TestMemoryStore_CanceledContext(t *testing.T) {
	s := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Append(ctx, model.AuditRecord{})
	var se *StorageError
	if !errors.As(err, &se) || !errors.Is(err, context.Canceled) {
		t.Errorf("Append() error = %v, want StorageError wrapping context.Canceled", err)
	}
	res, err := s.DeleteAll(ctx)
	if err == nil || res.Status != StatusError {
		t.Errorf("DeleteAll() = %+v, %v; want error status", res, err)
	}
}
