package http

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"syscall"
	"testing"
	"time"

	"github.com/launchdarkly/go-test-helpers/v2/httphelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Execute_Get(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GET", r.Method)
		assert.Equal(t, "/posts/1", r.URL.Path)
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"id": 1, "title": "hello"}`))
	}))
	defer server.Close()

	client := NewClient()
	resp, err := client.Execute(context.Background(), NewRequest("GET", server.URL+"/posts/1"))

	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.True(t, resp.IsJSON())
	assert.Equal(t, "hello", resp.JSON().Get("title").String())
	assert.Greater(t, resp.Duration, time.Duration(0))
}

func TestClient_Execute_RepeatedHeaderValues(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("X-Trace", "a")
		w.Header().Add("X-Trace", "b")
		w.Header().Set("X-Single", "one")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	resp, err := NewClient().Execute(context.Background(), NewRequest("GET", server.URL))

	require.NoError(t, err)
	assert.Equal(t, "a, b", resp.Header("X-Trace"))
	assert.Equal(t, "one", resp.Header("x-single"))
}

func TestClient_Execute_PostBody(t *testing.T) {
	handler, requests := httphelpers.RecordingHandler(
		httphelpers.HandlerWithResponse(http.StatusCreated, http.Header{"Content-Type": {"application/json"}}, []byte(`{"id": 101}`)),
	)

	httphelpers.WithServer(handler, func(server *httptest.Server) {
		req := NewRequest("POST", server.URL+"/posts").
			SetHeader("Content-Type", "application/json; charset=UTF-8").
			SetBody([]byte(`{"title":"some title"}`))

		resp, err := NewClient().Execute(context.Background(), req)

		require.NoError(t, err)
		assert.Equal(t, 201, resp.StatusCode)

		info := <-requests
		assert.Equal(t, "POST", info.Request.Method)
		assert.Equal(t, "application/json; charset=UTF-8", info.Request.Header.Get("Content-Type"))
		assert.Equal(t, `{"title":"some title"}`, string(info.Body))
		assert.Equal(t, DefaultUserAgent, info.Request.Header.Get("User-Agent"))
	})
}

func TestClient_Execute_NonSuccessIsNotAnError(t *testing.T) {
	for _, status := range []int{400, 404, 500} {
		httphelpers.WithServer(httphelpers.HandlerWithStatus(status), func(server *httptest.Server) {
			resp, err := NewClient().Execute(context.Background(), NewRequest("GET", server.URL))

			require.NoError(t, err)
			assert.Equal(t, status, resp.StatusCode)
		})
	}
}

func TestClient_Execute_ClientTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(WithTimeout(50 * time.Millisecond))
	_, err := client.Execute(context.Background(), NewRequest("GET", server.URL))

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, KindTimeout, te.Kind)
	assert.True(t, te.Timeout())
}

func TestClient_Execute_RequestTimeoutOverridesClient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(WithTimeout(20 * time.Millisecond))
	req := NewRequest("GET", server.URL).SetTimeout(2 * time.Second)

	resp, err := client.Execute(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}

func TestClient_Execute_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(httphelpers.HandlerWithStatus(200))
	addr := server.URL
	server.Close()

	_, err := NewClient().Execute(context.Background(), NewRequest("GET", addr))

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, KindConnection, te.Kind)
	assert.Equal(t, "GET", te.Method)
	assert.Equal(t, addr, te.URL)
}

func TestClient_Execute_BrokenConnection(t *testing.T) {
	httphelpers.WithServer(httphelpers.BrokenConnectionHandler(), func(server *httptest.Server) {
		_, err := NewClient().Execute(context.Background(), NewRequest("GET", server.URL))

		var te *TransportError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, KindConnection, te.Kind)
	})
}

func TestClient_Execute_InvalidURL(t *testing.T) {
	_, err := NewClient().Execute(context.Background(), NewRequest("GET", "ftp://example.com"))

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, KindInvalid, te.Kind)
}

func TestClient_Execute_CancelledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := NewClient().Execute(ctx, NewRequest("GET", server.URL))

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, KindTimeout, te.Kind)
}

func TestClient_WithDefaultHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "custom-agent", r.Header.Get("User-Agent"))
		assert.Equal(t, "override", r.Header.Get("X-Trace"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(
		WithUserAgent("custom-agent"),
		WithDefaultHeaders(map[string]string{
			"Accept":  "application/json",
			"X-Trace": "default",
		}),
	)
	resp, err := client.Get(context.Background(), server.URL, map[string]string{"X-Trace": "override"})

	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}

func TestClient_FollowRedirects(t *testing.T) {
	redirectCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/final" {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`final`))
			return
		}
		redirectCount++
		http.Redirect(w, r, "/final", http.StatusFound)
	}))
	defer server.Close()

	client := NewClient(WithFollowRedirects(true))
	resp, err := client.Get(context.Background(), server.URL+"/redirect", nil)

	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "final", resp.BodyString())
	assert.Equal(t, 1, redirectCount)
}

func TestClient_NoFollowRedirects(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/final", http.StatusFound)
	}))
	defer server.Close()

	client := NewClient(WithFollowRedirects(false))
	resp, err := client.Get(context.Background(), server.URL+"/redirect", nil)

	require.NoError(t, err)
	assert.Equal(t, 302, resp.StatusCode)
}

func TestClient_MaxRedirects(t *testing.T) {
	redirectCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		redirectCount++
		http.Redirect(w, r, "/redirect", http.StatusFound)
	}))
	defer server.Close()

	client := NewClient(WithMaxRedirects(3))
	resp, err := client.Get(context.Background(), server.URL+"/redirect", nil)

	require.NoError(t, err)
	assert.Equal(t, 302, resp.StatusCode)
	assert.LessOrEqual(t, redirectCount, 4)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want TransportErrorKind
	}{
		{"deadline", context.DeadlineExceeded, KindTimeout},
		{"dns", &url.Error{Op: "Get", URL: "http://x", Err: &net.DNSError{Err: "no such host", Name: "x"}}, KindDNS},
		{"refused", &url.Error{Op: "Get", URL: "http://x", Err: &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}}, KindConnection},
		{"reset", syscall.ECONNRESET, KindConnection},
		{"eof", &url.Error{Op: "Get", URL: "http://x", Err: io.EOF}, KindConnection},
		{"other", errors.New("malformed chunk"), KindProtocol},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classify(tt.err))
		})
	}
}

func TestTransportError_Unwrap(t *testing.T) {
	err := &TransportError{Kind: KindTimeout, Method: "GET", URL: "http://x", Err: context.DeadlineExceeded}

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, "GET http://x: timeout: context deadline exceeded", err.Error())
}

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid http URL",
			url:     "http://example.com/path",
			wantErr: false,
		},
		{
			name:    "valid https URL",
			url:     "https://example.com/path",
			wantErr: false,
		},
		{
			name:    "invalid scheme",
			url:     "ftp://example.com",
			wantErr: true,
			errMsg:  "unsupported URL scheme",
		},
		{
			name:    "missing scheme",
			url:     "example.com/path",
			wantErr: true,
			errMsg:  "unsupported URL scheme",
		},
		{
			name:    "missing host",
			url:     "http:///path",
			wantErr: true,
			errMsg:  "URL must have a host",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURL(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRequest_CurlCommand(t *testing.T) {
	req := NewRequest("POST", "https://jsonplaceholder.typicode.com/posts?x=1&y=2").
		SetHeader("Content-Type", "application/json; charset=UTF-8").
		SetBody([]byte(`{"title":"it's here"}`)).
		SetTimeout(100 * time.Second)

	assert.Equal(t,
		`curl -sS -X POST -H 'Content-Type: application/json; charset=UTF-8' --data-raw '{"title":"it'"'"'s here"}' --max-time 100 'https://jsonplaceholder.typicode.com/posts?x=1&y=2'`,
		req.CurlCommand(),
	)
}

func TestRequest_CurlCommand_Get(t *testing.T) {
	req := NewRequest("GET", "https://dog.ceo/api/breeds/list/all")

	assert.Equal(t, "curl -sS https://dog.ceo/api/breeds/list/all", req.CurlCommand())
}

func TestResponse_IsSuccess(t *testing.T) {
	tests := []struct {
		statusCode int
		expected   bool
	}{
		{200, true},
		{201, true},
		{204, true},
		{299, true},
		{300, false},
		{400, false},
		{404, false},
		{500, false},
	}

	for _, tt := range tests {
		resp := &Response{StatusCode: tt.statusCode}
		assert.Equal(t, tt.expected, resp.IsSuccess(), "StatusCode: %d", tt.statusCode)
	}
}

func TestResponse_JSON(t *testing.T) {
	resp := &Response{Body: []byte(`{"message": ["a", "b"]}`)}
	assert.Equal(t, int64(2), resp.JSON().Get("message.#").Int())

	resp = &Response{Body: []byte(`not json`)}
	assert.False(t, resp.JSON().Exists())
}

func TestResponse_Header(t *testing.T) {
	resp := &Response{Headers: map[string]string{"Content-Type": "application/json"}}

	assert.Equal(t, "application/json", resp.Header("content-type"))
	assert.Equal(t, "", resp.Header("X-Missing"))
}
