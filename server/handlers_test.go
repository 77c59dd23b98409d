package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeychilson/cisurl/client"
	"github.com/joeychilson/cisurl/fetcher"
	urlutil "github.com/joeychilson/cisurl/url"
)

const courseURL = "https://courses.illinois.edu/cisapp/explorer/schedule/2012/spring/AAS/120.xml"

type stubFetcher struct {
	resp *fetcher.Response
	err  error
}

func (s *stubFetcher) Fetch(ctx context.Context, url string) (*fetcher.Response, error) {
	return s.resp, s.err
}

func newTestServer(t *testing.T, f client.Fetcher) *Server {
	t.Helper()

	c, err := client.New(nil)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	if f != nil {
		c.WithFetcher(f)
	}

	s, err := New(c, nil, nil)
	require.NoError(t, err)
	return s
}

func post(t *testing.T, s *Server, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()

	var errResp ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&errResp))
	assert.Equal(t, w.Code, errResp.StatusCode)
	return errResp
}

func TestHandleHealthEndpoint(t *testing.T) {
	s := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")

	var health map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&health))
	assert.Equal(t, "ok", health["status"])
	assert.NotEmpty(t, health["time"])
}

func TestHandleFix(t *testing.T) {
	s := newTestServer(t, nil)

	w := post(t, s, "/v1/fix", `{"url":"http://courses.illinois.edu/cisapi/schedule/courses?year=2012&term=spring&subject=CS","cascade":true}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp FixResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "https://courses.illinois.edu/cisapp/explorer/schedule/courses.xml?year=2012&term=spring&subject=CS&mode=cascade", resp.URL)
}

func TestHandleFixSectionSign(t *testing.T) {
	s := newTestServer(t, nil)

	w := post(t, s, "/v1/fix", `{"url":"https://courses.illinois.edu/cisapi/schedule/courses?year=2012&term=spring§ionTypeCode=LEC"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp FixResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "https://courses.illinois.edu/cisapp/explorer/schedule/courses.xml?year=2012&term=spring&sectionTypeCode=LEC", resp.URL)
}

func TestHandleFixErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		kind urlutil.Kind
	}{
		{"number", `{"url":42}`, urlutil.KindInvalidType},
		{"missing url", `{}`, urlutil.KindInvalidType},
		{"empty", `{"url":""}`, urlutil.KindEmptyInput},
		{"malformed", `{"url":"not a url"}`, urlutil.KindMalformedURL},
		{"other host", `{"url":"https://example.com/cisapi/schedule"}`, urlutil.KindNotAPIURL},
		{"catalog endpoint", `{"url":"https://courses.illinois.edu/cisapi/catalog/2012"}`, urlutil.KindNotScheduleEndpoint},
	}

	s := newTestServer(t, nil)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := post(t, s, "/v1/fix", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)

			errResp := decodeError(t, w)
			assert.Equal(t, tt.kind, errResp.Kind)
			assert.Equal(t, urlutil.NewError(tt.kind, nil).Error(), errResp.Error)
		})
	}
}

func TestHandleInvalidJSON(t *testing.T) {
	s := newTestServer(t, nil)

	for _, path := range []string{"/v1/fix", "/v1/convert"} {
		w := post(t, s, path, "invalid json")
		assert.Equal(t, http.StatusBadRequest, w.Code)

		errResp := decodeError(t, w)
		assert.Contains(t, errResp.Error, "Invalid JSON")
		assert.Empty(t, errResp.Kind)
	}
}

func TestHandleConvertStrict(t *testing.T) {
	s := newTestServer(t, &stubFetcher{err: errors.New("strict mode must not fetch")})

	w := post(t, s, "/v1/convert", `{"url":"https://courses.illinois.edu/cisapp/explorer/schedule/2012/SPRING/aas/120.xml"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var result client.Result
	require.NoError(t, json.NewDecoder(w.Body).Decode(&result))
	assert.Equal(t, "https://courses.illinois.edu/search/schedule/2012/spring/AAS/120", result.URL)
	assert.Equal(t, client.ModeStrict, result.Mode)
	require.NotNil(t, result.Course)
	assert.Equal(t, "AAS", result.Course.Subject)
}

func TestHandleConvertVerify(t *testing.T) {
	body := []byte(`<course><label>Intro</label><sections><section id="1"/></sections></course>`)
	s := newTestServer(t, &stubFetcher{resp: &fetcher.Response{StatusCode: http.StatusOK, Body: body}})

	w := post(t, s, "/v1/convert", `{"url":"`+courseURL+`","mode":"verify"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var result client.Result
	require.NoError(t, json.NewDecoder(w.Body).Decode(&result))
	assert.Equal(t, "https://courses.illinois.edu/search/schedule/2012/spring/AAS/120", result.URL)
	assert.Equal(t, client.ModeVerify, result.Mode)
	assert.Equal(t, "Intro", result.Label)
	assert.Equal(t, 1, result.Sections)
}

func TestHandleConvertErrors(t *testing.T) {
	tests := []struct {
		name    string
		fetcher *stubFetcher
		body    string
		status  int
		kind    urlutil.Kind
	}{
		{
			name:   "bad shape",
			body:   `{"url":"https://courses.illinois.edu/cisapp/explorer/schedule/2012/spring/AAS/1200.xml"}`,
			status: http.StatusBadRequest,
			kind:   urlutil.KindInvalidCourseURLShape,
		},
		{
			name:   "not explorer schedule",
			body:   `{"url":"https://courses.illinois.edu/cisapi/schedule/2012/spring/AAS/120.xml","mode":"strict"}`,
			status: http.StatusBadRequest,
			kind:   urlutil.KindNotExplorerScheduleURL,
		},
		{
			name:   "verify not explorer",
			body:   `{"url":"https://example.com/","mode":"verify"}`,
			status: http.StatusBadRequest,
			kind:   urlutil.KindNotExplorerURL,
		},
		{
			name: "not found",
			fetcher: &stubFetcher{
				resp: &fetcher.Response{StatusCode: http.StatusNotFound},
				err:  &fetcher.StatusError{URL: courseURL, StatusCode: http.StatusNotFound},
			},
			body:   `{"url":"` + courseURL + `","mode":"verify"}`,
			status: http.StatusNotFound,
			kind:   urlutil.KindCourseNotFound,
		},
		{
			name:    "missing sections",
			fetcher: &stubFetcher{resp: &fetcher.Response{StatusCode: http.StatusOK, Body: []byte("<invalid></invalid>")}},
			body:    `{"url":"` + courseURL + `","mode":"verify"}`,
			status:  http.StatusUnprocessableEntity,
			kind:    urlutil.KindMissingSectionsMarker,
		},
		{
			name:    "network error",
			fetcher: &stubFetcher{err: errors.New("dial tcp: connection refused")},
			body:    `{"url":"` + courseURL + `","mode":"verify"}`,
			status:  http.StatusBadGateway,
			kind:    urlutil.KindNetworkError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var f client.Fetcher
			if tt.fetcher != nil {
				f = tt.fetcher
			}
			s := newTestServer(t, f)

			w := post(t, s, "/v1/convert", tt.body)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.kind, decodeError(t, w).Kind)
		})
	}
}

func TestHandleConvertUnknownMode(t *testing.T) {
	s := newTestServer(t, nil)

	w := post(t, s, "/v1/convert", `{"url":"`+courseURL+`","mode":"lenient"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	errResp := decodeError(t, w)
	assert.Contains(t, errResp.Error, "unknown mode")
}

func TestHandleRequestTooLarge(t *testing.T) {
	s := newTestServer(t, nil)

	body := `{"url":"` + strings.Repeat("a", maxRequestBodySize) + `"}`
	w := post(t, s, "/v1/fix", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatusForKind(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusForKind(urlutil.KindMalformedURL))
	assert.Equal(t, http.StatusNotFound, statusForKind(urlutil.KindCourseNotFound))
	assert.Equal(t, http.StatusUnprocessableEntity, statusForKind(urlutil.KindMissingSectionsMarker))
	assert.Equal(t, http.StatusBadGateway, statusForKind(urlutil.KindNetworkError))
	assert.Equal(t, http.StatusInternalServerError, statusForKind(urlutil.Kind("unknown")))
}

func TestSendJSON(t *testing.T) {
	s := newTestServer(t, nil)

	w := httptest.NewRecorder()
	s.sendJSON(w, FixResponse{URL: "https://courses.illinois.edu/cisapp/explorer/schedule.xml?a=1&b=2"}, http.StatusOK)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")
	assert.True(t, bytes.Contains(w.Body.Bytes(), []byte("a=1&b=2")), "HTML escaping must be disabled")
}
