package api

import (
	"encoding/json/v2"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/channelfinder/channelfinder-server/internal/auth"
	"github.com/channelfinder/channelfinder-server/internal/domain"
	"github.com/channelfinder/channelfinder-server/internal/http/response"
	"github.com/channelfinder/channelfinder-server/internal/ratelimit"
	"github.com/channelfinder/channelfinder-server/internal/search"
	"github.com/channelfinder/channelfinder-server/internal/service"
	"github.com/channelfinder/channelfinder-server/internal/store"
	"github.com/channelfinder/channelfinder-server/internal/validation"
)

// setupServer wires a complete server over temp-dir-backed stores with a
// single admin user root/secret.
func setupServer(t *testing.T, limiter *ratelimit.KeyedRateLimiter) *Server {
	t.Helper()
	dir := t.TempDir()
	logger := slog.New(slog.DiscardHandler)

	s, err := store.Open(filepath.Join(dir, "store"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	index, err := search.NewChannelIndex(search.Options{
		DataPath: filepath.Join(dir, "index"),
		Logger:   logger,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })
	s.SetChannelIndexer(index)

	hash, err := auth.HashPassword("secret")
	require.NoError(t, err)
	usersPath := filepath.Join(dir, "users")
	require.NoError(t, os.WriteFile(usersPath, []byte("root:"+hash+":cf-admins\n"), 0o600))
	users, err := auth.LoadUsers(usersPath)
	require.NoError(t, err)

	core := &service.Core{
		Store:           s,
		Index:           index,
		Policy:          auth.NewPolicy(auth.Config{AdminGroups: []string{"cf-admins"}}),
		Validator:       validation.New(),
		Logger:          logger,
		DefaultSize:     10000,
		MaxResultWindow: 10000,
	}

	return NewServer(Options{
		Name:       "channelfinder-test",
		Channels:   service.NewChannelService(core),
		Tags:       service.NewTagService(core),
		Properties: service.NewPropertyService(core),
		Users:      users,
		Limiter:    limiter,
		Logger:     logger,
	})
}

func doJSON(t *testing.T, srv *Server, method, path, body string, asRoot bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if asRoot {
		req.SetBasicAuth("root", "secret")
	}
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func TestServer_InfoAndHealth(t *testing.T) {
	srv := setupServer(t, nil)

	w := doJSON(t, srv, http.MethodGet, "/ChannelFinder/", "", false)
	require.Equal(t, http.StatusOK, w.Code)
	var info map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, "channelfinder-test", info["name"])
	assert.Equal(t, Version, info["version"])

	w = doJSON(t, srv, http.MethodGet, "/health", "", false)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestServer_ChannelLifecycle(t *testing.T) {
	srv := setupServer(t, nil)

	// Create.
	w := doJSON(t, srv, http.MethodPut, "/ChannelFinder/resources/channels/SR:C01:BPM",
		`{"name":"SR:C01:BPM","owner":"root","properties":[],"tags":[]}`, true)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var ch domain.Channel
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ch))
	assert.Equal(t, "SR:C01:BPM", ch.Name)
	assert.Equal(t, "root", ch.Owner)

	// Read back.
	w = doJSON(t, srv, http.MethodGet, "/ChannelFinder/resources/channels/SR:C01:BPM", "", false)
	require.Equal(t, http.StatusOK, w.Code)

	// Search is open to anonymous callers.
	w = doJSON(t, srv, http.MethodGet, "/ChannelFinder/resources/channels?~name=SR:*", "", false)
	require.Equal(t, http.StatusOK, w.Code)
	var chans []*domain.Channel
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &chans))
	require.Len(t, chans, 1)

	// Count and combined.
	w = doJSON(t, srv, http.MethodGet, "/ChannelFinder/resources/channels/count?~name=SR:*", "", false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1", strings.TrimSpace(w.Body.String()))

	w = doJSON(t, srv, http.MethodGet, "/ChannelFinder/resources/channels/combined?~name=SR:*", "", false)
	require.Equal(t, http.StatusOK, w.Code)
	var combined domain.SearchResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &combined))
	assert.EqualValues(t, 1, combined.Count)

	// Delete.
	w = doJSON(t, srv, http.MethodDelete, "/ChannelFinder/resources/channels/SR:C01:BPM", "", true)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, srv, http.MethodGet, "/ChannelFinder/resources/channels/SR:C01:BPM", "", false)
	assert.Equal(t, http.StatusNotFound, w.Code)

	var errBody response.ErrorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errBody))
	assert.Equal(t, http.StatusNotFound, errBody.Status)
	assert.Contains(t, errBody.Message, "SR:C01:BPM")
}

func TestServer_MutationAuth(t *testing.T) {
	srv := setupServer(t, nil)
	body := `{"name":"SR:C01:BPM","owner":"root"}`

	// Anonymous mutation is rejected by the engine.
	w := doJSON(t, srv, http.MethodPut, "/ChannelFinder/resources/channels/SR:C01:BPM", body, false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NotEmpty(t, w.Header().Get("WWW-Authenticate"))

	// Wrong password is rejected at the transport.
	req := httptest.NewRequest(http.MethodPut, "/ChannelFinder/resources/channels/SR:C01:BPM", strings.NewReader(body))
	req.SetBasicAuth("root", "wrong")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestServer_ValidationErrors(t *testing.T) {
	srv := setupServer(t, nil)

	// Malformed numeric query parameter.
	w := doJSON(t, srv, http.MethodGet, "/ChannelFinder/resources/channels?~size=abc", "", false)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Malformed body.
	w = doJSON(t, srv, http.MethodPut, "/ChannelFinder/resources/channels/SR:C01:BPM", "{not json", true)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Path/payload name mismatch.
	w = doJSON(t, srv, http.MethodPut, "/ChannelFinder/resources/channels/SR:C01:BPM",
		`{"name":"OTHER","owner":"root"}`, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServer_TagAttachDetach(t *testing.T) {
	srv := setupServer(t, nil)

	w := doJSON(t, srv, http.MethodPut, "/ChannelFinder/resources/channels/SR:C01:BPM",
		`{"name":"SR:C01:BPM","owner":"root"}`, true)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, srv, http.MethodPut, "/ChannelFinder/resources/tags/golden",
		`{"name":"golden","owner":"root"}`, true)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(t, srv, http.MethodPut, "/ChannelFinder/resources/tags/golden/SR:C01:BPM", "", true)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(t, srv, http.MethodGet, "/ChannelFinder/resources/channels?~tag=golden", "", false)
	require.Equal(t, http.StatusOK, w.Code)
	var chans []*domain.Channel
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &chans))
	require.Len(t, chans, 1)

	// Tag read carries membership.
	w = doJSON(t, srv, http.MethodGet, "/ChannelFinder/resources/tags/golden", "", false)
	require.Equal(t, http.StatusOK, w.Code)
	var tag domain.Tag
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tag))
	require.Len(t, tag.Channels, 1)

	w = doJSON(t, srv, http.MethodDelete, "/ChannelFinder/resources/tags/golden/SR:C01:BPM", "", true)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, srv, http.MethodGet, "/ChannelFinder/resources/channels?~tag=golden", "", false)
	require.Equal(t, http.StatusOK, w.Code)
	chans = nil
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &chans))
	assert.Empty(t, chans)
}

func TestServer_PropertyAttachWithValue(t *testing.T) {
	srv := setupServer(t, nil)

	w := doJSON(t, srv, http.MethodPut, "/ChannelFinder/resources/channels/SR:C01:BPM",
		`{"name":"SR:C01:BPM","owner":"root"}`, true)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, srv, http.MethodPut, "/ChannelFinder/resources/properties/temp",
		`{"name":"temp","owner":"root"}`, true)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// The attach body carries the channel-specific value.
	w = doJSON(t, srv, http.MethodPut, "/ChannelFinder/resources/properties/temp/SR:C01:BPM",
		`{"name":"temp","owner":"root","value":"high"}`, true)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(t, srv, http.MethodGet, "/ChannelFinder/resources/channels?temp=high", "", false)
	require.Equal(t, http.StatusOK, w.Code)
	var chans []*domain.Channel
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &chans))
	require.Len(t, chans, 1)

	// A valueless attach is rejected.
	w = doJSON(t, srv, http.MethodPut, "/ChannelFinder/resources/properties/temp/SR:C01:BPM",
		`{"name":"temp","owner":"root"}`, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServer_Scroll(t *testing.T) {
	srv := setupServer(t, nil)

	for _, name := range []string{"SR:C01:BPM", "SR:C02:BPM", "SR:C03:BPM"} {
		w := doJSON(t, srv, http.MethodPut, "/ChannelFinder/resources/channels/"+name,
			`{"name":"`+name+`","owner":"root"}`, true)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := doJSON(t, srv, http.MethodGet, "/ChannelFinder/resources/scroll?~name=SR:*&~size=2", "", false)
	require.Equal(t, http.StatusOK, w.Code)
	var page domain.Scroll
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	require.Len(t, page.Channels, 2)
	require.Equal(t, "SR:C02:BPM", page.ID)

	w = doJSON(t, srv, http.MethodGet, "/ChannelFinder/resources/scroll/"+page.ID+"?~name=SR:*&~size=2", "", false)
	require.Equal(t, http.StatusOK, w.Code)
	page = domain.Scroll{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	require.Len(t, page.Channels, 1)
	assert.Equal(t, "SR:C03:BPM", page.Channels[0].Name)
}

func TestServer_RateLimit(t *testing.T) {
	limiter := ratelimit.New(0.01, 1)
	t.Cleanup(limiter.Stop)
	srv := setupServer(t, limiter)

	w := doJSON(t, srv, http.MethodPut, "/ChannelFinder/resources/channels/SR:C01:BPM",
		`{"name":"SR:C01:BPM","owner":"root"}`, true)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, srv, http.MethodPut, "/ChannelFinder/resources/channels/SR:C02:BPM",
		`{"name":"SR:C02:BPM","owner":"root"}`, true)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	// Reads stay unthrottled.
	w = doJSON(t, srv, http.MethodGet, "/ChannelFinder/resources/channels", "", false)
	assert.Equal(t, http.StatusOK, w.Code)
}
