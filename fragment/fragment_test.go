package fragment_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joetifa2003/fluidgo/fragment"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		want        fragment.Response
	}{
		{
			name:        "fragment set",
			contentType: "application/json",
			body:        `{"content":"<p>a</p>","nav":"<ul></ul>"}`,
			want:        fragment.FragmentSet{"content": "<p>a</p>", "nav": "<ul></ul>"},
		},
		{
			name:        "fragment set with charset",
			contentType: "application/json; charset=utf-8",
			body:        `{"content":"x"}`,
			want:        fragment.FragmentSet{"content": "x"},
		},
		{
			name:        "empty object is an empty set",
			contentType: "application/json",
			body:        `{}`,
			want:        fragment.FragmentSet{},
		},
		{
			name:        "html document",
			contentType: "text/html; charset=utf-8",
			body:        "<html><body>hi</body></html>",
			want:        fragment.FullDocument{HTML: "<html><body>hi</body></html>"},
		},
		{
			name:        "json object served as html",
			contentType: "text/html",
			body:        `{"content":"x"}`,
			want:        fragment.FullDocument{HTML: `{"content":"x"}`},
		},
		{
			name:        "null",
			contentType: "application/json",
			body:        `null`,
			want:        fragment.FullDocument{HTML: `null`},
		},
		{
			name:        "array",
			contentType: "application/json",
			body:        `["a","b"]`,
			want:        fragment.FullDocument{HTML: `["a","b"]`},
		},
		{
			name:        "plain string",
			contentType: "application/json",
			body:        `"<p>a</p>"`,
			want:        fragment.FullDocument{HTML: `"<p>a</p>"`},
		},
		{
			name:        "mapping with non string values",
			contentType: "application/json",
			body:        `{"count":3,"content":"x"}`,
			want:        fragment.FullDocument{HTML: `{"count":3,"content":"x"}`},
		},
		{
			name:        "invalid json",
			contentType: "application/json",
			body:        `{"content":`,
			want:        fragment.FullDocument{HTML: `{"content":`},
		},
		{
			name:        "missing content type",
			contentType: "",
			body:        `{"content":"x"}`,
			want:        fragment.FullDocument{HTML: `{"content":"x"}`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := fragment.Decode(tt.contentType, []byte(tt.body))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Decode() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFragmentSet_Only(t *testing.T) {
	set := fragment.FragmentSet{"a": "1", "b": "2", "c": "3"}

	assert.Equal(t, set, set.Only(nil))
	assert.Equal(t, fragment.FragmentSet{"a": "1", "c": "3"}, set.Only([]string{"a", "c", "missing"}))
	assert.Equal(t, []string{"a", "b", "c"}, set.Keys())
}

func TestWrite_FragmentSet(t *testing.T) {
	w := httptest.NewRecorder()

	err := fragment.Write(w, fragment.FragmentSet{"content": "<p>a</p>"})
	require.NoError(t, err)

	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "true", w.Header().Get("X-Fluid"))

	var body map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, map[string]string{"content": "<p>a</p>"}, body)
}

func TestWrite_FullDocument(t *testing.T) {
	w := httptest.NewRecorder()

	err := fragment.Write(w, fragment.FullDocument{HTML: "<html></html>"})
	require.NoError(t, err)

	assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Empty(t, w.Header().Get("X-Fluid"))
	assert.Equal(t, "<html></html>", w.Body.String())
}

func TestRead_RoundTripThroughServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/set" {
			_ = fragment.Write(w, fragment.FragmentSet{"nav": "<nav></nav>"})
			return
		}
		_ = fragment.Write(w, fragment.FullDocument{HTML: "<p>full</p>"})
	}))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/set")
	require.NoError(t, err)
	got, err := fragment.Read(resp)
	require.NoError(t, err)
	assert.Equal(t, fragment.FragmentSet{"nav": "<nav></nav>"}, got)

	resp, err = http.Get(srv.URL + "/doc")
	require.NoError(t, err)
	got, err = fragment.Read(resp)
	require.NoError(t, err)
	assert.Equal(t, fragment.FullDocument{HTML: "<p>full</p>"}, got)
}

func TestRead_BodyError(t *testing.T) {
	resp := &http.Response{
		Header: http.Header{"Content-Type": []string{"application/json"}},
		Body:   io.NopCloser(&failingReader{}),
	}

	_, err := fragment.Read(resp)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "failed to read response body"))
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, io.ErrUnexpectedEOF }
