package tmdb

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := New(Options{BaseURL: srv.URL + "/3", APIKey: "secret-key"})
	require.NoError(t, err)
	return c
}

func TestNew_RequiresAPIKey(t *testing.T) {
	_, err := New(Options{APIKey: "   "})
	require.Error(t, err)
}

func TestPopular_SendsQueryAndDecodes(t *testing.T) {
	var gotPath, gotKey, gotLang, gotPage string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("api_key")
		gotLang = r.URL.Query().Get("language")
		gotPage = r.URL.Query().Get("page")
		w.Header().Set("Content-Type", "application/json;charset=utf-8")
		_, _ = w.Write([]byte(`{"page":3,"results":[{"id":42,"title":"Test","release_date":"2020-05-01","poster_path":"/x.jpg"},{"id":7,"title":"Null","release_date":null,"poster_path":null}],"total_pages":500,"total_results":10000}`))
	})

	p, err := c.Popular(context.Background(), 3)
	require.NoError(t, err)

	assert.Equal(t, "/3/movie/popular", gotPath)
	assert.Equal(t, "secret-key", gotKey)
	assert.Equal(t, DefaultLanguage, gotLang)
	assert.Equal(t, "3", gotPage)

	require.Len(t, p.Results, 2)
	assert.Equal(t, 42, p.Results[0].ID)
	assert.Equal(t, "/x.jpg", p.Results[0].PosterPath)
	assert.Equal(t, "", p.Results[1].PosterPath)
	assert.Equal(t, "", p.Results[1].ReleaseDate)
	assert.Equal(t, 500, p.TotalPages)
}

func TestMovieDetails_AppendsCredits(t *testing.T) {
	var gotPath, gotAppend string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAppend = r.URL.Query().Get("append_to_response")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":42,"title":"Test","overview":null,"runtime":null,"vote_average":7.5,
			"genres":[{"id":18,"name":"Drama"}],
			"credits":{"cast":[{"name":"A"},{"name":"B"}],"crew":[{"name":"Bob","job":"Writer"},{"name":"Alice","job":"Director"}]}}`))
	})

	d, err := c.MovieDetails(context.Background(), 42)
	require.NoError(t, err)

	assert.Equal(t, "/3/movie/42", gotPath)
	assert.Equal(t, "credits", gotAppend)
	assert.Equal(t, "", d.Overview)
	assert.Equal(t, 0, d.Runtime)
	assert.Equal(t, 7.5, d.VoteAverage)
	require.Len(t, d.Credits.Cast, 2)
	require.Len(t, d.Credits.Crew, 2)
	assert.Equal(t, "Director", d.Credits.Crew[1].Job)
}

func TestMovieDetails_EmptyObject(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	})

	_, err := c.MovieDetails(context.Background(), 9)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmptyDetails))

	var te *Error
	require.True(t, errors.As(err, &te))
	assert.Equal(t, OpDetails, te.Op)
	assert.Equal(t, 9, te.ID)
}

func TestPopular_StatusErrorCarriesMessageAndRedactsKey(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"status_code":7,"status_message":"Invalid API key: You must be granted a valid key.","success":false}`))
	})

	_, err := c.Popular(context.Background(), 1)
	require.Error(t, err)

	var te *Error
	require.True(t, errors.As(err, &te))
	assert.Equal(t, OpPopular, te.Op)

	var se *HTTPStatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusUnauthorized, se.StatusCode)
	assert.Contains(t, se.Message, "Invalid API key")
	assert.NotContains(t, se.URL, "secret-key")
	assert.Equal(t, http.StatusUnauthorized, StatusCode(err))
	assert.NotContains(t, err.Error(), "secret-key")
}

func TestPopular_HTMLPageIsUnexpectedContent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><head><title>  Proxy\n Login </title></head><body>x</body></html>"))
	})

	_, err := c.Popular(context.Background(), 1)
	require.Error(t, err)

	var ue *UnexpectedContentError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, "Proxy Login", ue.Title)
	assert.Contains(t, ue.ContentType, "text/html")
}

func TestPopular_HTMLStatusErrorUsesTitle(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html><title>502 Bad Gateway</title></html>"))
	})

	_, err := c.Popular(context.Background(), 1)
	var se *HTTPStatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "502 Bad Gateway", se.Message)
}

func TestPopular_UndecodableBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"page":`))
	})

	_, err := c.Popular(context.Background(), 1)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "解析响应失败"), "实际：%v", err)
}

func TestPopular_TransportErrorRedactsKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := srv.URL
	srv.Close()

	c, err := New(Options{BaseURL: base, APIKey: "secret-key"})
	require.NoError(t, err)

	_, err = c.Popular(context.Background(), 1)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "secret-key")
}

func TestPopular_ContextCanceled(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Popular(ctx, 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled), "实际：%v", err)
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "https://x/3/movie/1?api_key=%2A%2A%2A&language=en-US", redactURL("https://x/3/movie/1?api_key=k&language=en-US"))
	assert.Equal(t, "https://x/3/movie/1", redactURL("https://x/3/movie/1"))
}

func TestRestyLogger_RedactsKey(t *testing.T) {
	var buf bytes.Buffer
	l := restyLogger{l: hclog.New(&hclog.LoggerOptions{Output: &buf, Level: hclog.Debug})}
	l.Errorf("GET https://x/3/movie/popular?api_key=%s&page=1 failed", "secret")

	assert.NotContains(t, buf.String(), "secret")
	assert.Contains(t, buf.String(), "api_key=***")
}
