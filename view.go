package fluid

import (
	"maps"
	"net/http"
	"slices"
	"strings"
)

type view struct {
	http.Handler
}

// View marks h as a fluid view. Links to paths routed to a view are flagged
// for the client when the Fluid instance was given the mux (WithMux).
func View(h http.Handler) http.Handler {
	if IsView(h) {
		return h
	}
	return view{Handler: h}
}

// ViewFunc is View for a plain function.
func ViewFunc(fn func(http.ResponseWriter, *http.Request)) http.Handler {
	return View(http.HandlerFunc(fn))
}

// IsView reports whether h was wrapped by View.
func IsView(h http.Handler) bool {
	_, ok := h.(view)
	return ok
}

// ActionFunc handles a named action posted from a form. params are the
// pipe separated values following the action name.
type ActionFunc func(w http.ResponseWriter, r *http.Request, params []string) error

// ActionHandler dispatches form posts carrying an "action|name|param..." field
// to Actions, then renders View so the client receives fresh fragments.
type ActionHandler struct {
	Actions map[string]ActionFunc
	View    http.Handler
}

const actionPrefix = "action|"

// ParseAction finds the first form field named "action|name|param...".
// It must be called after the form was parsed.
func ParseAction(r *http.Request) (name string, params []string, ok bool) {
	for _, key := range slices.Sorted(maps.Keys(r.Form)) {
		if !strings.HasPrefix(key, actionPrefix) {
			continue
		}
		parts := strings.Split(strings.TrimPrefix(key, actionPrefix), "|")
		if parts[0] == "" {
			continue
		}
		return parts[0], parts[1:], true
	}

	return "", nil, false
}

func (a *ActionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		a.View.ServeHTTP(w, r)
		return
	}

	if !IsFluidRequest(r) {
		http.Error(w, "actions require a fluid request", http.StatusBadRequest)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	name, params, ok := ParseAction(r)
	if !ok {
		a.View.ServeHTTP(w, r)
		return
	}

	fn, ok := a.Actions[name]
	if !ok {
		http.Error(w, "unknown action", http.StatusBadRequest)
		return
	}

	if err := fn(w, r, params); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	a.View.ServeHTTP(w, r)
}
