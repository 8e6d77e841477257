package pagination

import "testing"

func TestDefaults(t *testing.T) {
	p := PageRequest{}
	p.Defaults()
	if p.Page != 1 || p.PageSize != DefaultPageSize {
		t.Errorf("unexpected defaults %+v", p)
	}

	p = PageRequest{Page: 3, PageSize: 500}
	p.Defaults()
	if p.PageSize != MaxPageSize || p.Offset() != 200 {
		t.Errorf("expected capped page size, got %+v offset %d", p, p.Offset())
	}
}

func TestNewPage(t *testing.T) {
	tests := []struct {
		name      string
		req       PageRequest
		total     int64
		wantPages int
		wantNext  bool
	}{
		{"empty", PageRequest{}, 0, 0, false},
		{"exact_fit", PageRequest{Page: 1, PageSize: 5}, 10, 2, true},
		{"partial_last", PageRequest{Page: 3, PageSize: 5}, 11, 3, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := NewPage[int](nil, tt.req, tt.total)
			if page.Items == nil {
				t.Error("expected non-nil items")
			}
			if page.Meta.TotalPages != tt.wantPages || page.Meta.HasNext != tt.wantNext {
				t.Errorf("unexpected meta %+v", page.Meta)
			}
		})
	}
}
