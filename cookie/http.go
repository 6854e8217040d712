package cookie

import (
	"net/http"
)

// HTTPJar adapts a request/response pair to [Jar]. Reads come from the
// incoming request; writes are emitted as Set-Cookie headers and also shadow
// later reads within the same request.
type HTTPJar struct {
	r       *http.Request
	w       http.ResponseWriter
	written map[string]*string
}

// NewHTTPJar returns a jar bound to one request. w may be nil for read-only use.
func NewHTTPJar(w http.ResponseWriter, r *http.Request) *HTTPJar {
	return &HTTPJar{
		r:       r,
		w:       w,
		written: make(map[string]*string),
	}
}

func (j *HTTPJar) Get(name string) (string, bool) {
	if v, ok := j.written[name]; ok {
		if v == nil {
			return "", false
		}
		return *v, true
	}
	if j.r == nil {
		return "", false
	}
	c, err := j.r.Cookie(name)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

func (j *HTTPJar) Set(name, value string, opts Options) {
	v := value
	j.written[name] = &v
	if j.w == nil {
		return
	}
	http.SetCookie(j.w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     opts.Path,
		MaxAge:   int(opts.MaxAge.Seconds()),
		Secure:   opts.Secure,
		HttpOnly: opts.HTTPOnly,
		SameSite: opts.SameSite,
	})
}

// Destroy expires the cookie on the client with Max-Age=-1 on the path and
// scope given by opts. An empty Path means [DefaultPath].
func (j *HTTPJar) Destroy(name string, opts Options) {
	j.written[name] = nil
	if j.w == nil {
		return
	}
	path := opts.Path
	if path == "" {
		path = DefaultPath
	}
	http.SetCookie(j.w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     path,
		MaxAge:   -1,
		Secure:   opts.Secure,
		HttpOnly: opts.HTTPOnly,
		SameSite: opts.SameSite,
	})
}
