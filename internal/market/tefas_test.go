package market

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/resolver"
	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/testutil"
)

type tefasFixture struct {
	official     http.HandlerFunc
	fallback     http.HandlerFunc
	officialHits int
	fallbackHits int
	lastForm     map[string]string
}

func newTEFASFixture(t *testing.T, f *tefasFixture) *TEFASSource {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/DB/BindHistoryInfo", func(w http.ResponseWriter, r *http.Request) {
		f.officialHits++
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		_ = r.ParseForm()
		f.lastForm = map[string]string{}
		for k := range r.PostForm {
			f.lastForm[k] = r.PostForm.Get(k)
		}
		f.official(w, r)
	})
	mux.HandleFunc("/fund_data.json", func(w http.ResponseWriter, r *http.Request) {
		f.fallbackHits++
		f.fallback(w, r)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return NewTEFASSource(server.Client(), TEFASConfig{
		BaseURL:     server.URL,
		FallbackURL: server.URL + "/fund_data.json",
		Clock:       fixedClock,
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func fallbackFunds(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, []map[string]any{
		{"code": "AFA", "description": "AK PORTFÖY AMERİKA YABANCI HİSSE", "priceTRY": "2.2", "changePercentageDaily": "10"},
		{"code": "TTE", "description": "İŞ PORTFÖY BIST TEKNOLOJİ", "priceTRY": 5.5, "changePercentageDaily": 0},
	})
}

func TestTEFASSource_Fetch_Official(t *testing.T) {
	f := &tefasFixture{
		official: func(w http.ResponseWriter, _ *http.Request) {
			// Rows deliberately out of date order.
			writeJSON(w, map[string]any{"data": []map[string]any{
				{"TARIH": "1709164800000", "FONKODU": "AFA", "FIYAT": 1.25},
				{"TARIH": "1709251200000", "FONKODU": "AFA", "FIYAT": 1.5},
				{"TARIH": "1709078400000", "FONKODU": "AFA", "FIYAT": 1.0},
			}})
		},
		fallback: fallbackFunds,
	}
	s := newTEFASFixture(t, f)

	rec, err := s.Fetch(context.Background(), "afa", resolver.CategoryFund)
	testutil.AssertNoError(t, err)

	if !rec.CurrentPrice.Equal(dec("1.5")) {
		t.Errorf("expected latest price 1.5, got %s", rec.CurrentPrice)
	}
	if !rec.PreviousClose.Decimal.Equal(dec("1.25")) {
		t.Errorf("expected previous 1.25, got %s", rec.PreviousClose.Decimal)
	}
	if !rec.ChangePercent.Equal(dec("20")) {
		t.Errorf("expected 20%% change, got %s", rec.ChangePercent)
	}
	if rec.Source != SourceTEFASOfficial || rec.Currency != "TRY" {
		t.Errorf("unexpected source/currency %s/%s", rec.Source, rec.Currency)
	}
	if f.lastForm["fonkod"] != "AFA" || f.lastForm["fontip"] != "YAT" {
		t.Errorf("unexpected form %v", f.lastForm)
	}
	if f.lastForm["bittarih"] != "01.03.2024" || f.lastForm["bastarih"] != "23.02.2024" {
		t.Errorf("unexpected date range %s..%s", f.lastForm["bastarih"], f.lastForm["bittarih"])
	}
	if f.fallbackHits != 0 {
		t.Errorf("expected no fallback, got %d hits", f.fallbackHits)
	}
}

func TestTEFASSource_Fetch_BlockedUsesFallback(t *testing.T) {
	f := &tefasFixture{
		official: func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("<!DOCTYPE html><html>Request Rejected</html>"))
		},
		fallback: fallbackFunds,
	}
	s := newTEFASFixture(t, f)

	rec, err := s.Fetch(context.Background(), "AFA", resolver.CategoryFund)
	testutil.AssertNoError(t, err)

	if rec.Source != SourceTEFASGitHub {
		t.Errorf("expected github source, got %s", rec.Source)
	}
	if !rec.CurrentPrice.Equal(dec("2.2")) {
		t.Errorf("expected 2.2, got %s", rec.CurrentPrice)
	}
	if !rec.PreviousClose.Decimal.Equal(dec("2")) {
		t.Errorf("expected previous close derived as 2, got %s", rec.PreviousClose.Decimal)
	}
	if !rec.ChangePercent.Equal(dec("10")) {
		t.Errorf("expected 10%% change, got %s", rec.ChangePercent)
	}
}

func TestTEFASSource_Fetch_EmptyHistoryUsesFallback(t *testing.T) {
	f := &tefasFixture{
		official: func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, map[string]any{"data": []any{}})
		},
		fallback: fallbackFunds,
	}
	s := newTEFASFixture(t, f)

	rec, err := s.Fetch(context.Background(), "TTE", resolver.CategoryFund)
	testutil.AssertNoError(t, err)
	if !rec.ChangeAmount.IsZero() {
		t.Errorf("expected zero change, got %s", rec.ChangeAmount)
	}
}

func TestTEFASSource_Fetch_UnknownFund(t *testing.T) {
	f := &tefasFixture{
		official: func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, map[string]any{"data": []any{}})
		},
		fallback: fallbackFunds,
	}
	s := newTEFASFixture(t, f)

	_, err := s.Fetch(context.Background(), "ZZZ", resolver.CategoryFund)
	testutil.AssertAppError(t, err, "PRICE_UNAVAILABLE")
}

func TestTEFASSource_Fetch_BothDown(t *testing.T) {
	f := &tefasFixture{
		official: func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusServiceUnavailable) },
		fallback: func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusBadGateway) },
	}
	s := newTEFASFixture(t, f)

	_, err := s.Fetch(context.Background(), "AFA", resolver.CategoryFund)
	testutil.AssertAppError(t, err, "PROVIDER_UNREACHABLE")
}

func TestTEFASSource_ListFunds(t *testing.T) {
	t.Run("official", func(t *testing.T) {
		f := &tefasFixture{
			official: func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, map[string]any{"data": []map[string]any{
					{"FONKODU": "AFA", "FONUNVAN": "AK PORTFÖY AMERİKA"},
					{"FONKODU": "AFA", "FONUNVAN": "AK PORTFÖY AMERİKA"},
					{"FONKODU": " tte ", "FONUNVAN": "İŞ PORTFÖY TEKNOLOJİ"},
					{"FONKODU": "", "FONUNVAN": "no code"},
				}})
			},
			fallback: fallbackFunds,
		}
		s := newTEFASFixture(t, f)

		funds, source, err := s.ListFunds(context.Background())
		testutil.AssertNoError(t, err)
		if source != SourceTEFASOfficial {
			t.Errorf("expected official source, got %s", source)
		}
		if len(funds) != 2 {
			t.Fatalf("expected 2 unique funds, got %d", len(funds))
		}
		if funds[1].Code != "TTE" {
			t.Errorf("expected normalized code TTE, got %q", funds[1].Code)
		}
		if f.lastForm["fonkod"] != "" {
			t.Errorf("expected empty fund code for listing, got %q", f.lastForm["fonkod"])
		}
	})

	t.Run("fallback", func(t *testing.T) {
		f := &tefasFixture{
			official: func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("<html></html>")) },
			fallback: fallbackFunds,
		}
		s := newTEFASFixture(t, f)

		funds, source, err := s.ListFunds(context.Background())
		testutil.AssertNoError(t, err)
		if source != SourceTEFASGitHub || len(funds) != 2 {
			t.Errorf("expected 2 funds from github, got %d from %s", len(funds), source)
		}
	})

	t.Run("both_down", func(t *testing.T) {
		f := &tefasFixture{
			official: func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusInternalServerError) },
			fallback: func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte(`{"not":"a list"}`)) },
		}
		s := newTEFASFixture(t, f)

		_, _, err := s.ListFunds(context.Background())
		testutil.AssertAppError(t, err, "PROVIDER_UNREACHABLE")
	})
}
