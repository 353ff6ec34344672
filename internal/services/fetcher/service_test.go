package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/hunt/internal/models"
)

// memSnapshotStore is an in-memory CrawlSnapshotStorage for fetcher tests.
type memSnapshotStore struct {
	mu    sync.Mutex
	snaps []*models.CrawlSnapshot
}

func (m *memSnapshotStore) SaveSnapshot(ctx context.Context, snap *models.CrawlSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps = append(m.snaps, snap)
	return nil
}

func (m *memSnapshotStore) GetLatestSnapshot(ctx context.Context, companyID, url string) (*models.CrawlSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.snaps) - 1; i >= 0; i-- {
		if m.snaps[i].CompanyID == companyID && m.snaps[i].URL == url {
			return m.snaps[i], nil
		}
	}
	return nil, nil
}

func (m *memSnapshotStore) ListSnapshotsForCompany(ctx context.Context, companyID string) ([]*models.CrawlSnapshot, error) {
	return nil, nil
}

func (m *memSnapshotStore) DeleteSnapshotsOlderThan(ctx context.Context, olderThanDays int) (int, error) {
	return 0, nil
}

func (m *memSnapshotStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.snaps)
}

func fastTestService(snaps *memSnapshotStore) *Service {
	cfg := testFetcherConfig()
	cfg.HostRatePerSec = 1000
	cfg.HostBurst = 1000
	cfg.RetryBaseMS = 1
	return NewService(cfg, nil, snaps, arbor.NewLogger())
}

func TestFetch_SimplePage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("<html><body>jobs</body></html>"))
	}))
	defer server.Close()

	svc := fastTestService(nil)
	result, err := svc.Fetch(context.Background(), server.URL+"/careers", Options{})

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, result.StatusCode)
	assert.Contains(t, result.Content, "jobs")
	assert.Equal(t, models.HashContent(result.Content), result.Hash)
	assert.False(t, result.Rendered)
}

func TestFetch_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("recovered"))
	}))
	defer server.Close()

	svc := fastTestService(nil)
	result, err := svc.Fetch(context.Background(), server.URL+"/careers", Options{})

	require.NoError(t, err)
	assert.Contains(t, result.Content, "recovered")
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetch_404IsFatalWithoutRetry(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer server.Close()

	svc := fastTestService(nil)
	_, err := svc.Fetch(context.Background(), server.URL+"/gone", Options{})

	require.Error(t, err)
	assert.Equal(t, models.KindNotFound, models.KindOf(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetch_429HonorsRetryAfter(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	svc := fastTestService(nil)
	result, err := svc.Fetch(context.Background(), server.URL+"/careers", Options{})

	require.NoError(t, err)
	assert.Contains(t, result.Content, "ok")
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetch_RobotsDenied(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			w.Write([]byte("User-agent: *\nDisallow: /careers\n"))
			return
		}
		w.Write([]byte("should not be reached"))
	}))
	defer server.Close()

	svc := fastTestService(nil)
	_, err := svc.Fetch(context.Background(), server.URL+"/careers", Options{})

	require.Error(t, err)
	assert.Equal(t, models.KindRobotsDenied, models.KindOf(err))

	// API endpoints bypass robots
	result, err := svc.Fetch(context.Background(), server.URL+"/careers", Options{APIEndpoint: true})
	require.NoError(t, err)
	assert.Contains(t, result.Content, "should not be reached")
}

func TestFetch_ChangeDetection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("<html>stable content</html>"))
	}))
	defer server.Close()

	snaps := &memSnapshotStore{}
	svc := fastTestService(snaps)
	ctx := context.Background()
	url := server.URL + "/careers"

	// First fetch writes a snapshot
	first, err := svc.Fetch(ctx, url, Options{CompanyID: "cmp_1"})
	require.NoError(t, err)
	assert.False(t, first.Unchanged)
	assert.NotEmpty(t, first.SnapshotID)
	assert.Equal(t, 1, snaps.count())

	// Identical content: unchanged, no second snapshot row
	second, err := svc.Fetch(ctx, url, Options{CompanyID: "cmp_1"})
	require.NoError(t, err)
	assert.True(t, second.Unchanged)
	assert.Empty(t, second.SnapshotID)
	assert.Equal(t, 1, snaps.count())
}

func TestGetJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"jobs":[{"title":"Engineer"}]}`))
	}))
	defer server.Close()

	svc := fastTestService(nil)

	var out struct {
		Jobs []struct {
			Title string `json:"title"`
		} `json:"jobs"`
	}
	require.NoError(t, svc.GetJSON(context.Background(), server.URL+"/v1/boards/acme/jobs", &out))
	require.Len(t, out.Jobs, 1)
	assert.Equal(t, "Engineer", out.Jobs[0].Title)
}

func TestPostJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		w.Write([]byte(`{"total":1}`))
	}))
	defer server.Close()

	svc := fastTestService(nil)

	var out struct {
		Total int `json:"total"`
	}
	payload := map[string]interface{}{"limit": 20, "offset": 0}
	require.NoError(t, svc.PostJSON(context.Background(), server.URL+"/wday/cxs/acme/jobs", payload, &out))
	assert.Equal(t, 1, out.Total)
}
