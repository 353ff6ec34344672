package detector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/hunt/internal/common"
	"github.com/ternarybob/hunt/internal/models"
	"github.com/ternarybob/hunt/internal/services/fetcher"
)

func testService(t *testing.T) *Service {
	t.Helper()
	cfg := common.NewDefaultConfig().Fetcher
	cfg.HostRatePerSec = 1000
	cfg.HostBurst = 1000
	cfg.RetryBaseMS = 1
	fetchSvc := fetcher.NewService(&cfg, nil, nil, arbor.NewLogger())
	return NewService(fetchSvc, arbor.NewLogger())
}

func TestMatchKnownHost(t *testing.T) {
	tests := []struct {
		name       string
		url        string
		ats        models.ATSType
		identifier string
	}{
		{"greenhouse board", "https://boards.greenhouse.io/acme", models.ATSGreenhouse, "acme"},
		{"lever board", "https://jobs.lever.co/acme/", models.ATSLever, "acme"},
		{"ashby board", "https://jobs.ashbyhq.com/acme", models.ATSAshby, "acme"},
		{"workday site", "https://acme.wd1.myworkdayjobs.com/External", models.ATSWorkday, "acme/External"},
		{"workday bare", "https://acme.myworkdayjobs.com", models.ATSWorkday, "acme"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, ok := matchKnownHost(tt.url)
			require.True(t, ok)
			assert.Equal(t, tt.ats, result.ATSType)
			assert.Equal(t, tt.identifier, result.ATSIdentifier)
		})
	}

	_, ok := matchKnownHost("https://acme.com/careers")
	assert.False(t, ok)
}

func TestDetect_URLPatternWins(t *testing.T) {
	svc := testService(t)

	result, err := svc.Detect(context.Background(), Input{
		Name:       "Acme",
		CareersURL: "https://boards.greenhouse.io/acme",
	})

	require.NoError(t, err)
	assert.Equal(t, models.ATSGreenhouse, result.ATSType)
	assert.Equal(t, "acme", result.ATSIdentifier)
	assert.Equal(t, "https://boards.greenhouse.io/acme", result.CareersURL)
}

func TestDetect_HTMLProbeFindsEmbeddedBoard(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`<html><body>
			<h1>Work with us</h1>
			<iframe src="https://boards.greenhouse.io/embed/job_board?for=acme"></iframe>
		</body></html>`))
	}))
	defer server.Close()

	svc := testService(t)
	result, err := svc.Detect(context.Background(), Input{
		Name:       "Acme",
		CareersURL: server.URL + "/careers",
	})

	require.NoError(t, err)
	assert.Equal(t, models.ATSGreenhouse, result.ATSType)
	assert.Equal(t, "acme", result.ATSIdentifier) // from the embed URL's for= parameter
	assert.Equal(t, server.URL+"/careers", result.CareersURL)
}

func TestDetect_HTMLProbeFindsLeverLink(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`<html><body>
			<a href="https://jobs.lever.co/acme">See open roles</a>
		</body></html>`))
	}))
	defer server.Close()

	svc := testService(t)
	result, err := svc.Detect(context.Background(), Input{
		Name:       "Acme",
		CareersURL: server.URL + "/careers",
	})

	require.NoError(t, err)
	assert.Equal(t, models.ATSLever, result.ATSType)
	assert.Equal(t, "acme", result.ATSIdentifier)
}

func TestDetect_APIProbeConfirmsVendor(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/robots.txt":
			http.NotFound(w, r)
		case "/careers":
			w.Write([]byte("<html><body>plain page, no board links</body></html>"))
		case "/gh/acme/jobs":
			w.Write([]byte(`{"jobs":[{"id":1,"title":"Engineer"}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	svc := testService(t)
	svc.greenhouseProbe = server.URL + "/gh/%s/jobs"
	svc.leverProbe = server.URL + "/lever/%s"
	svc.ashbyProbe = server.URL + "/ashby/%s"

	result, err := svc.Detect(context.Background(), Input{
		Name:       "Acme",
		Domain:     "acme.test",
		CareersURL: server.URL + "/careers",
	})

	require.NoError(t, err)
	assert.Equal(t, models.ATSGreenhouse, result.ATSType)
	assert.Equal(t, "acme", result.ATSIdentifier)
	assert.Equal(t, server.URL+"/careers", result.CareersURL)
}

func TestDetect_FallsBackToCustom(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		if r.URL.Path == "/careers" {
			w.Write([]byte("<html><body><div class=\"job\">Engineer</div></body></html>"))
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	svc := testService(t)
	svc.greenhouseProbe = server.URL + "/nope/%s"
	svc.leverProbe = server.URL + "/nope/%s"
	svc.ashbyProbe = server.URL + "/nope/%s"

	result, err := svc.Detect(context.Background(), Input{
		Name:       "Acme",
		CareersURL: server.URL + "/careers",
	})

	require.NoError(t, err)
	assert.Equal(t, models.ATSCustom, result.ATSType)
	assert.Empty(t, result.ATSIdentifier)
	assert.Equal(t, server.URL+"/careers", result.CareersURL)
}

func TestDetect_RequiresSomeInput(t *testing.T) {
	svc := testService(t)
	_, err := svc.Detect(context.Background(), Input{Name: "Acme"})
	require.Error(t, err)
	assert.Equal(t, models.KindInvalidArgument, models.KindOf(err))
}

func TestIdentifierCandidates(t *testing.T) {
	candidates := identifierCandidates(Input{Name: "Acme Robotics, Inc.", Domain: "www.acme.com"})
	assert.Equal(t, []string{"acme", "acmeroboticsinc"}, candidates)
}
