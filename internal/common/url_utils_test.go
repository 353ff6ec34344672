package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistrableHost(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		expected string
	}{
		{"plain https", "https://boards.greenhouse.io/acme", "boards.greenhouse.io"},
		{"with port", "http://localhost:8080/careers", "localhost"},
		{"uppercase host", "https://Jobs.Lever.CO/acme", "jobs.lever.co"},
		{"unparseable", "://nope", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, RegistrableHost(tt.url))
		})
	}
}

func TestNormalizeDomain(t *testing.T) {
	tests := []struct {
		name     string
		domain   string
		expected string
	}{
		{"bare domain", "acme.com", "acme.com"},
		{"www prefix", "www.acme.com", "acme.com"},
		{"full url", "https://www.Acme.com/about", "acme.com"},
		{"trailing path", "acme.com/careers", "acme.com"},
		{"whitespace", "  acme.com  ", "acme.com"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeDomain(tt.domain))
		})
	}
}

func TestEnsureAbsoluteURL(t *testing.T) {
	assert.Equal(t, "https://acme.com/jobs/1", EnsureAbsoluteURL("https://acme.com/careers", "/jobs/1"))
	assert.Equal(t, "https://other.com/x", EnsureAbsoluteURL("https://acme.com", "https://other.com/x"))
	assert.Equal(t, "", EnsureAbsoluteURL("https://acme.com", ""))
}

func TestCareersURLCandidates(t *testing.T) {
	candidates := CareersURLCandidates("www.acme.com")
	assert.Equal(t, "https://acme.com/careers", candidates[0])
	assert.Equal(t, "https://acme.com/jobs", candidates[1])
	assert.Nil(t, CareersURLCandidates(""))
}

func TestValidateAbsoluteURL(t *testing.T) {
	assert.NoError(t, ValidateAbsoluteURL("https://acme.com/careers"))
	assert.Error(t, ValidateAbsoluteURL("ftp://acme.com"))
	assert.Error(t, ValidateAbsoluteURL("/relative/only"))
}
