package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestDefaultWindow(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 8, 30, 15, 0, time.UTC)
	w := DefaultWindow(now)

	if w.End != now {
		t.Fatalf("End = %v, want %v", w.End, now)
	}
	if got := w.End.Sub(w.Start); got != 24*time.Hour {
		t.Fatalf("window length = %v, want 24h", got)
	}
}

func TestDefaultWindow_ConvertsToUTC(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("UTC+2", 2*3600)
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, loc)

	w := DefaultWindow(now)
	if w.End.Location() != time.UTC {
		t.Fatalf("End location = %v, want UTC", w.End.Location())
	}
	if w.End.Hour() != 8 {
		t.Fatalf("End hour = %d, want 8 (UTC)", w.End.Hour())
	}
}

func TestReports_Success(t *testing.T) {
	t.Parallel()

	const payload = "a,b\n1,x\n2,y\n"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok-123" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("User-Agent"); got != "TORI Data Processor" {
			t.Errorf("User-Agent = %q", got)
		}
		if got := r.Header.Get("Accept"); got != "*/*" {
			t.Errorf("Accept = %q", got)
		}

		q := r.URL.Query()
		if got := q.Get("start"); got != "2025-05-31T08:30:15" {
			t.Errorf("start = %q", got)
		}
		if got := q.Get("end"); got != "2025-06-01T08:30:15" {
			t.Errorf("end = %q", got)
		}
		// The raw query must carry the timestamps percent-encoded.
		if !strings.Contains(r.URL.RawQuery, "2025-05-31T08%3A30%3A15") {
			t.Errorf("raw query not percent-encoded: %q", r.URL.RawQuery)
		}

		w.Write([]byte(payload))
	}))
	defer srv.Close()

	c := New(srv.URL, "TORI Data Processor")
	w := Window{
		Start: time.Date(2025, 5, 31, 8, 30, 15, 0, time.UTC),
		End:   time.Date(2025, 6, 1, 8, 30, 15, 0, time.UTC),
	}

	got, err := c.Reports(context.Background(), "tok-123", w)
	if err != nil {
		t.Fatalf("Reports: %v", err)
	}
	if got != payload {
		t.Fatalf("body = %q, want %q", got, payload)
	}
}

func TestReports_FormatsBoundsInUTC(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("start"); got != "2025-05-31T06:00:00" {
			t.Errorf("start = %q, want UTC-converted bound", got)
		}
		w.Write([]byte(""))
	}))
	defer srv.Close()

	loc := time.FixedZone("UTC+2", 2*3600)
	c := New(srv.URL, "ua")
	w := Window{
		Start: time.Date(2025, 5, 31, 8, 0, 0, 0, loc),
		End:   time.Date(2025, 6, 1, 8, 0, 0, 0, loc),
	}

	if _, err := c.Reports(context.Background(), "tok", w); err != nil {
		t.Fatalf("Reports: %v", err)
	}
}

func TestReports_NonSuccessStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte("nope"))
	}))
	defer srv.Close()

	c := New(srv.URL, "ua")
	_, err := c.Reports(context.Background(), "tok", DefaultWindow(time.Now()))
	if err == nil {
		t.Fatalf("expected error for 403 response")
	}
	if !strings.Contains(err.Error(), "403") {
		t.Fatalf("error does not carry status: %v", err)
	}
}

func TestReports_EmptyToken(t *testing.T) {
	t.Parallel()

	var called bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	c := New(srv.URL, "ua")
	if _, err := c.Reports(context.Background(), "", DefaultWindow(time.Now())); err == nil {
		t.Fatalf("expected error for empty token")
	}
	if called {
		t.Fatalf("no request should be issued without a token")
	}
}

func TestReports_EmptyBodyIsNotAnError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 200 with no body: the "nothing to report" case.
	}))
	defer srv.Close()

	c := New(srv.URL, "ua")
	got, err := c.Reports(context.Background(), "tok", DefaultWindow(time.Now()))
	if err != nil {
		t.Fatalf("Reports: %v", err)
	}
	if got != "" {
		t.Fatalf("body = %q, want empty", got)
	}
}
