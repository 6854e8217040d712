package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Renderer writes a page from the props a loader produced.
type Renderer interface {
	Render(w http.ResponseWriter, r *http.Request, props any) error
}

// RendererFunc adapts a function to [Renderer].
type RendererFunc func(w http.ResponseWriter, r *http.Request, props any) error

func (f RendererFunc) Render(w http.ResponseWriter, r *http.Request, props any) error {
	return f(w, r, props)
}

// JSONRenderer writes props as a JSON document.
var JSONRenderer Renderer = RendererFunc(func(w http.ResponseWriter, _ *http.Request, props any) error {
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(props)
})

// Handler serves a guarded page. Redirects become 302 Found, or 308
// Permanent Redirect when marked permanent. NotFound becomes 404 and a
// loader error becomes 500.
func (g *Guard) Handler(fn RenderFunc, req *Requirements, renderer Renderer) http.Handler {
	wrapped := g.Wrap(fn, req)
	if renderer == nil {
		renderer = JSONRenderer
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res, err := wrapped(RenderContext{Request: r, Writer: w})
		if err != nil {
			g.logger.Error("authstate: page loader failed",
				slog.String("path", r.URL.Path),
				slog.Any("error", err),
			)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		switch {
		case res.Redirect != nil:
			code := http.StatusFound
			if res.Redirect.Permanent {
				code = http.StatusPermanentRedirect
			}
			http.Redirect(w, r, res.Redirect.Destination, code)
		case res.NotFound:
			http.NotFound(w, r)
		default:
			if err := renderer.Render(w, r, res.Props); err != nil {
				g.logger.Error("authstate: render failed",
					slog.String("path", r.URL.Path),
					slog.Any("error", err),
				)
			}
		}
	})
}
