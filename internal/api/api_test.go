package api

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient("TESTKEY", srv.URL, srv.URL, 5*time.Second)
}

func TestInfo(t *testing.T) {
	var gotPath, gotKey string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("key")
		fmt.Fprint(w, `{"query_credits": 100, "scan_credits": 50, "unlocked_left": 10}`)
	}))

	info, err := client.Info(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "/api-info", gotPath)
	assert.Equal(t, "TESTKEY", gotKey)
	assert.Equal(t, 100, info.QueryCredits)
	assert.Equal(t, 50, info.ScanCredits)
}

func TestProtocolErrorsDecode(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error": "Invalid API key"}`)
	}))

	_, err := client.Info(context.Background())
	require.Error(t, err)

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "Invalid API key", apiErr.Message)
	assert.False(t, IsTransient(err))
}

func TestProtocolErrorWithoutBody(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := client.Info(context.Background())
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Contains(t, apiErr.Error(), "502")
}

func TestSearchPaging(t *testing.T) {
	var gotQuery, gotPage string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("query")
		gotPage = r.URL.Query().Get("page")
		fmt.Fprint(w, `{"total": 2, "matches": [{"ip_str": "1.2.3.4", "port": 80}]}`)
	}))

	result, err := client.Search(context.Background(), "port:80", 3)
	require.NoError(t, err)

	assert.Equal(t, "port:80", gotQuery)
	assert.Equal(t, "3", gotPage)
	assert.Equal(t, 2, result.Total)
	require.Len(t, result.Matches, 1)
	assert.Equal(t, "1.2.3.4", result.Matches[0].HostIP())
}

func TestScanSubmit(t *testing.T) {
	var gotIPs, gotMethod string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		require.NoError(t, r.ParseForm())
		gotIPs = r.PostForm.Get("ips")
		fmt.Fprint(w, `{"id": "SCAN42", "count": 1, "credits_left": 7}`)
	}))

	job, err := client.ScanSubmit(context.Background(), []string{"198.51.100.0/24", "203.0.113.1"}, false)
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "198.51.100.0/24,203.0.113.1", gotIPs)
	assert.Equal(t, "SCAN42", job.ID)
	assert.Equal(t, 7, job.CreditsLeft)
	assert.False(t, job.Status.Terminal())
}

func TestScanStatusMapping(t *testing.T) {
	status := "PROCESSING"
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"id": "SCAN42", "status": %q}`, status)
	}))

	got, err := client.ScanStatus(context.Background(), "SCAN42")
	require.NoError(t, err)
	assert.False(t, got.Terminal())

	status = "DONE"
	got, err = client.ScanStatus(context.Background(), "SCAN42")
	require.NoError(t, err)
	assert.True(t, got.Terminal())
}

func TestCreateAndDeleteAlert(t *testing.T) {
	var deleted string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			deleted = r.URL.Path
			fmt.Fprint(w, `{}`)
			return
		}
		fmt.Fprint(w, `{"id": "ALERT9", "name": "Scan: 1.2.3.0/24", "filters": {"ip": ["1.2.3.0/24"]}}`)
	}))

	alert, err := client.CreateAlert(context.Background(), "Scan: 1.2.3.0/24", []string{"1.2.3.0/24"})
	require.NoError(t, err)
	assert.Equal(t, "ALERT9", alert.ID)
	assert.Equal(t, []string{"1.2.3.0/24"}, alert.Netblocks)

	require.NoError(t, client.DeleteAlert(context.Background(), alert.ID))
	assert.Equal(t, "/alert/ALERT9", deleted)
}

func TestDatasetListing(t *testing.T) {
	var paths []string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		switch r.URL.Path {
		case "/data":
			fmt.Fprint(w, `[{"name": "raw-daily", "scope": "daily", "description": "All collected data"}]`)
		default:
			fmt.Fprint(w, `[{"name": "day-0.json.gz", "size": 1024, "timestamp": "2024-03-01", "url": "https://example.com/day-0.json.gz"}]`)
		}
	}))

	datasets, err := client.Datasets(context.Background())
	require.NoError(t, err)
	require.Len(t, datasets, 1)
	assert.Equal(t, "raw-daily", datasets[0].Name)

	files, err := client.DatasetFiles(context.Background(), "raw-daily")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, int64(1024), files[0].Size)

	assert.Equal(t, []string{"/data", "/data/raw-daily"}, paths)
}

func TestHoneyScore(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/honeyscore/1.2.3.4", r.URL.Path)
		fmt.Fprint(w, `0.3`)
	}))

	score, err := client.HoneyScore(context.Background(), "1.2.3.4")
	require.NoError(t, err)
	assert.InDelta(t, 0.3, score, 0.001)
}

func TestFetchFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "file contents")
	}))
	defer srv.Close()

	client := NewClient("TESTKEY", srv.URL, srv.URL, 5*time.Second)

	var buf strings.Builder
	require.NoError(t, client.FetchFile(context.Background(), srv.URL+"/day-0.json.gz", &buf))
	assert.Equal(t, "file contents", buf.String())
}

func TestStreamDeliversBanners(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/banners", r.URL.Path)
		fmt.Fprintln(w, `{"ip_str": "1.2.3.4", "port": 80}`)
		fmt.Fprintln(w)
		fmt.Fprintln(w, `not json, skipped`)
		fmt.Fprintln(w, `{"ip_str": "5.6.7.8", "port": 443}`)
	}))

	s, err := client.StreamBanners(context.Background(), time.Second)
	require.NoError(t, err)
	defer s.Close()

	b, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, "1.2.3.4", b.HostIP())

	b, err = s.Next()
	require.NoError(t, err)
	assert.Equal(t, "5.6.7.8", b.HostIP())

	// The server closed the connection; the truncation is transient.
	_, err = s.Next()
	require.Error(t, err)
	assert.True(t, IsTransient(err))
}

func TestStreamIdleTimeout(t *testing.T) {
	release := make(chan struct{})
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-release
	}))
	defer close(release)

	s, err := client.StreamBanners(context.Background(), 20*time.Millisecond)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Next()
	assert.ErrorIs(t, err, ErrIdleTimeout)
	assert.True(t, IsTransient(err))
}

func TestStreamNextReturnsAfterClose(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-release
	}))

	// Without an idle window, Next has only Close to unblock it. Repeat
	// to exercise the race between the reader's final send and Close.
	for i := 0; i < 25; i++ {
		s, err := client.StreamBanners(context.Background(), 0)
		require.NoError(t, err)

		got := make(chan error, 1)
		go func() {
			_, err := s.Next()
			got <- err
		}()

		time.Sleep(time.Millisecond)
		s.Close()

		select {
		case err := <-got:
			require.Error(t, err)
			assert.True(t, IsTransient(err))
		case <-time.After(2 * time.Second):
			t.Fatal("Next did not return after Close")
		}
	}
}

func TestStreamRejectionIsProtocolError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"error": "Access denied"}`)
	}))

	_, err := client.StreamBanners(context.Background(), time.Second)
	require.Error(t, err)

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Access denied", apiErr.Message)
	assert.False(t, IsTransient(err))
}

func TestStreamAlertPaths(t *testing.T) {
	var paths []string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
	}))

	s, err := client.StreamAlert(context.Background(), "", time.Second)
	require.NoError(t, err)
	s.Close()

	s, err = client.StreamAlert(context.Background(), "ALERT9", time.Second)
	require.NoError(t, err)
	s.Close()

	assert.Equal(t, []string{"/alert", "/alert/ALERT9"}, paths)
}
