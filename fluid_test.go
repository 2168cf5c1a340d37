package fluid_test

import (
	"encoding/json"
	"html/template"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fluid "github.com/joetifa2003/fluidgo"
)

const pageTemplates = `
{{define "page"}}<html><head><title>test</title></head><body>
<a id="self" href="/page?tab=2">self</a>
<a id="other" href="/other">other</a>
<a id="plain" href="/plain">plain</a>
<a id="ext" href="https://elsewhere.test/x">ext</a>
<a id="mail" href="mailto:someone@example.com">mail</a>
<a id="hash" href="#top">hash</a>
<a id="marked" href="/plain" data-fluid="custom">marked</a>
<form id="form" method="post"></form>
{{fragment "content" .}}{{fragment "sidebar" .}}</body></html>{{end}}
{{define "content"}}<p>{{.Title}}</p>{{with .Flash}}<p id="flash">{{.notice}}</p>{{end}}{{end}}
{{define "sidebar"}}<ul><li>{{.User}}</li></ul>{{end}}
{{define "bare"}}<html><body><p>no blocks</p></body></html>{{end}}
`

func newTestFluid(t *testing.T, options ...fluid.FluidOption) (*fluid.Fluid, *http.ServeMux) {
	t.Helper()

	mux := http.NewServeMux()
	fsys := fstest.MapFS{"templates/page.html": {Data: []byte(pageTemplates)}}

	options = append([]fluid.FluidOption{
		fluid.WithTemplatesFS(fsys, "templates/*.html"),
		fluid.WithMux(mux),
		fluid.WithSharedData(fluid.Data{"User": "ada"}),
	}, options...)

	f, err := fluid.New(options...)
	require.NoError(t, err)

	render := func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, f.Render(w, r, "page", fluid.Data{"Title": "Hello"}))
	}
	mux.Handle("/page", fluid.ViewFunc(render))
	mux.Handle("/other", fluid.ViewFunc(render))
	mux.HandleFunc("/plain", render)

	return f, mux
}

func TestRender_FullDocument(t *testing.T) {
	_, mux := newTestFluid(t, fluid.WithVersion("v1"), fluid.WithClientScript("/static/fluid.js"))

	req := httptest.NewRequest(http.MethodGet, "/page", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))

	doc, err := goquery.NewDocumentFromReader(w.Body)
	require.NoError(t, err)

	assert.Equal(t, 1, doc.Find(`head script[src="/static/fluid.js"]`).Length())
	assert.Equal(t, "v1", doc.Find(`meta[name="fluid-version"]`).AttrOr("content", ""))
	assert.Equal(t, "Hello", doc.Find(`fluid-block[name="content"] p`).Text())
	assert.Equal(t, "ada", doc.Find(`fluid-block[name="sidebar"] li`).Text())

	marker := func(selector string) string {
		return doc.Find(selector).AttrOr(fluid.MarkerAttr, "<none>")
	}
	assert.Equal(t, fluid.MarkerSame, marker("#self"))
	assert.Equal(t, fluid.MarkerDerived, marker("#other"))
	assert.Equal(t, fluid.MarkerSame, marker("#form"))
	assert.Equal(t, "custom", marker("#marked"))
	assert.Equal(t, "<none>", marker("#plain"))
	assert.Equal(t, "<none>", marker("#ext"))
	assert.Equal(t, "<none>", marker("#mail"))
	assert.Equal(t, "<none>", marker("#hash"))
}

func TestRender_ScriptNotDuplicated(t *testing.T) {
	f, err := fluid.New(
		fluid.WithTemplates(template.Must(template.New("page").Parse(
			`<html><head><script src="/static/fluid.js?v=3"></script></head><body></body></html>`,
		))),
		fluid.WithClientScript("/static/fluid.js"),
	)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	require.NoError(t, f.Render(w, httptest.NewRequest(http.MethodGet, "/", nil), "page", nil))

	assert.Equal(t, 1, strings.Count(w.Body.String(), "<script"))
}

func TestRender_Fragments(t *testing.T) {
	_, mux := newTestFluid(t)

	tests := []struct {
		name    string
		headers map[string]string
		want    []string
	}{
		{
			name:    "fluid header",
			headers: map[string]string{"X-Fluid": "true"},
			want:    []string{"content", "sidebar"},
		},
		{
			name:    "legacy ajax header",
			headers: map[string]string{"X-Requested-With": "XMLHttpRequest"},
			want:    []string{"content", "sidebar"},
		},
		{
			name:    "select one block",
			headers: map[string]string{"X-Fluid": "true", "X-Fluid-Blocks": "sidebar"},
			want:    []string{"sidebar"},
		},
		{
			name:    "blank blocks header sends every block",
			headers: map[string]string{"X-Fluid": "true", "X-Fluid-Blocks": " , "},
			want:    []string{"content", "sidebar"},
		},
		{
			name:    "unknown blocks are ignored",
			headers: map[string]string{"X-Fluid": "true", "X-Fluid-Blocks": "content, missing"},
			want:    []string{"content"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/page", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			assert.Equal(t, "true", w.Header().Get("X-Fluid"))
			assert.Contains(t, w.Header().Values("Vary"), "X-Fluid")

			var set map[string]string
			require.NoError(t, json.NewDecoder(w.Body).Decode(&set))

			keys := make([]string, 0, len(set))
			for k := range set {
				keys = append(keys, k)
			}
			assert.ElementsMatch(t, tt.want, keys)

			for k, html := range set {
				assert.True(t, strings.HasPrefix(html, `<fluid-block name="`+k+`">`), html)
			}
		})
	}
}

func TestRender_FragmentContent(t *testing.T) {
	_, mux := newTestFluid(t)

	req := httptest.NewRequest(http.MethodGet, "/page", nil)
	req.Header.Set("X-Fluid", "true")
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	var set map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&set))
	assert.Equal(t, `<fluid-block name="content"><p>Hello</p></fluid-block>`, set["content"])
	assert.Equal(t, `<fluid-block name="sidebar"><ul><li>ada</li></ul></fluid-block>`, set["sidebar"])
}

func TestRender_FluidRequestWithoutBlocks(t *testing.T) {
	f, _ := newTestFluid(t)

	req := httptest.NewRequest(http.MethodGet, "/bare", nil)
	req.Header.Set("X-Fluid", "true")
	w := httptest.NewRecorder()

	require.NoError(t, f.Render(w, req, "bare", nil))

	assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "no blocks")
}

func TestRender_Errors(t *testing.T) {
	f, err := fluid.New()
	require.NoError(t, err)

	err = f.Render(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil), "page", nil)
	assert.Error(t, err)

	f, _ = newTestFluid(t)
	err = f.Render(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil), "missing", nil)
	assert.ErrorContains(t, err, `"missing"`)
}

func TestRender_ExternalTemplates(t *testing.T) {
	tmpl := template.Must(template.New("").Funcs(fluid.Funcs()).Parse(
		`{{define "page"}}<html><body>{{fragment "main" .}}</body></html>{{end}}{{define "main"}}<p>{{.Name}}</p>{{end}}`,
	))

	f, err := fluid.New(fluid.WithTemplates(tmpl))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Fluid", "true")
	w := httptest.NewRecorder()
	require.NoError(t, f.Render(w, req, "page", fluid.Data{"Name": "x"}))

	var set map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&set))
	assert.Equal(t, `<fluid-block name="main"><p>x</p></fluid-block>`, set["main"])
}

func TestRender_SharedDataNotMutated(t *testing.T) {
	shared := fluid.Data{"User": "ada", "Nested": map[string]any{"a": 1}}
	f, _ := newTestFluid(t, fluid.WithSharedData(shared))

	w := httptest.NewRecorder()
	require.NoError(t, f.Render(w, httptest.NewRequest(http.MethodGet, "/page", nil), "page",
		fluid.Data{"User": "bob", "Nested": map[string]any{"b": 2}}))

	assert.Contains(t, w.Body.String(), "<li>bob</li>")
	assert.Equal(t, map[string]any{"a": 1}, shared["Nested"])
	assert.Equal(t, "ada", shared["User"])
}

func TestFlash(t *testing.T) {
	f, mux := newTestFluid(t)
	mux.HandleFunc("/save", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, f.Flash(w, r, "notice", "saved"))
		require.NoError(t, f.Flash(w, r, "other", "too"))
		f.Redirect(w, r, "/page")
	})
	handler := f.Middleware(mux)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/save", nil))
	require.Equal(t, http.StatusFound, w.Code)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1, "one session for every flash of a request")

	next := func() string {
		req := httptest.NewRequest(http.MethodGet, "/page", nil)
		req.AddCookie(cookies[0])
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Body.String()
	}

	assert.Contains(t, next(), `<p id="flash">saved</p>`)
	assert.NotContains(t, next(), `id="flash"`, "flashed data is shown once")
}

func TestRender_FragmentAs(t *testing.T) {
	tmpl := template.Must(template.New("").Funcs(fluid.Funcs()).Parse(
		`{{define "page"}}<html><body>{{fragmentAs "content" (printf "page_%s" .Page) .}}</body></html>{{end}}` +
			`{{define "page_home"}}<p>home</p>{{end}}{{define "page_about"}}<p>about</p>{{end}}`,
	))

	f, err := fluid.New(fluid.WithTemplates(tmpl))
	require.NoError(t, err)

	for _, page := range []string{"home", "about"} {
		req := httptest.NewRequest(http.MethodGet, "/"+page, nil)
		req.Header.Set("X-Fluid", "true")
		w := httptest.NewRecorder()
		require.NoError(t, f.Render(w, req, "page", fluid.Data{"Page": page}))

		var set map[string]string
		require.NoError(t, json.NewDecoder(w.Body).Decode(&set))
		assert.Equal(t, `<fluid-block name="content"><p>`+page+`</p></fluid-block>`, set["content"])
	}
}

func TestRender_FragmentsAreAnnotated(t *testing.T) {
	tmpl := template.Must(template.New("").Funcs(fluid.Funcs()).Parse(
		`{{define "page"}}<html><body>{{fragment "list" .}}</body></html>{{end}}` +
			`{{define "list"}}<form method="post"><button name="action|remove|1">x</button></form><a href="https://elsewhere.test/">out</a>{{end}}`,
	))

	f, err := fluid.New(fluid.WithTemplates(tmpl))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/todos", nil)
	req.Header.Set("X-Fluid", "true")
	w := httptest.NewRecorder()
	require.NoError(t, f.Render(w, req, "page", nil))

	var set map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&set))
	assert.Contains(t, set["list"], `<form method="post" data-fluid="same">`)
	assert.Contains(t, set["list"], `<a href="https://elsewhere.test/">out</a>`)
}
