package github

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirectoryEntries(t *testing.T) {
	var gotAuth, gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`[
			{"name": "fastqc", "type": "dir"},
			{"name": "README.md", "type": "file"},
			{"name": "samtools", "type": "dir"}
		]`))
	}))
	defer server.Close()

	client := NewClient("secret-token")
	client.APIBase = server.URL

	entries, err := client.DirectoryEntries(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "fastqc", entries[0].Name)
	assert.Equal(t, "dir", entries[0].Type)
	assert.Equal(t, "token secret-token", gotAuth)
	assert.Equal(t, "per_page=100", gotQuery)
}

func TestDirectoryEntriesNonListResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"name": "main.nf", "type": "file"}`))
	}))
	defer server.Close()

	client := NewClient("")
	client.APIBase = server.URL

	entries, err := client.DirectoryEntries(context.Background(), "fastqc/main.nf")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDirectoryEntriesServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	client := NewClient("")
	client.APIBase = server.URL

	_, err := client.DirectoryEntries(context.Background(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to fetch from GitHub API")
}

func TestRawText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/fastqc/main.nf" {
			w.Write([]byte("process FASTQC {}\n"))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient("")
	client.RawBase = server.URL

	text, err := client.RawText(context.Background(), "fastqc/main.nf")
	require.NoError(t, err)
	assert.Equal(t, "process FASTQC {}\n", text)

	_, err = client.RawText(context.Background(), "fastqc/missing.nf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "module file not found")
	assert.Contains(t, err.Error(), "fastqc/missing.nf")
}

func TestRateLimitStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"resources": {"core": {"limit": 5000, "remaining": 4990, "reset": 1700000000}}}`))
	}))
	defer server.Close()

	client := NewClient("")
	client.RateLimitURL = server.URL

	status, err := client.RateLimitStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, RateLimit{Limit: 5000, Remaining: 4990, ResetTime: 1700000000}, status)
}
