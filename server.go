package lyralink

import (
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"go.uber.org/zap"
	"golang.org/x/xerrors"
)

type Server struct {
	allocator *Allocator
	resolver  *Resolver
	baseURL   string
	logger    *zap.Logger
	metrics   *Metrics
}

// NewServer returns a new Server handing out codes through a and resolving
// them through r. Short links are built from baseURL, or from the request's
// host if baseURL is empty. If l is nil, nothing is logged; if m is nil,
// /metrics is not served.
func NewServer(a *Allocator, r *Resolver, baseURL string, l *zap.Logger, m *Metrics) *Server {
	if l == nil {
		l = zap.NewNop()
	}

	return &Server{
		allocator: a,
		resolver:  r,
		baseURL:   strings.TrimRight(baseURL, "/"),
		logger:    l,
		metrics:   m,
	}
}

// SetupRoutes registers middleware and all handlers on the router.
func (s *Server) SetupRoutes(r chi.Router) {
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Get("/", s.index)
	r.Post("/", s.shortenForm)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "ok")
	})
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.HandleFunc("/http://*", s.shortenPath)
	r.HandleFunc("/https://*", s.shortenPath)
	r.Get("/{code:[A-Za-z0-9]+}", func(w http.ResponseWriter, r *http.Request) {
		// we proxy the call to s.resolve through this "middleware" to resolve the code URL parameter
		s.resolve(w, r, chi.URLParam(r, "code"))
	})

	r.NotFound(s.notFound)
}

// logRequests logs one line per request after it was served.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		s.logger.Info("request",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

// shortLink returns the absolute short URL for code.
func (s *Server) shortLink(r *http.Request, code string) string {
	if s.baseURL != "" {
		return s.baseURL + "/" + code
	}
	scheme := "https"
	if r.TLS == nil {
		scheme = "http"
	}
	return fmt.Sprintf("%s://%s/%s", scheme, r.Host, code)
}

// home returns the URL of the index page.
func (s *Server) home(r *http.Request) string {
	return strings.TrimSuffix(s.shortLink(r, ""), "/")
}

// wantsHTML reports whether the client prefers an HTML response (i.e. is a browser).
func wantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

// writeError writes a printf-formatted response using the specified status code to the client.
func writeError(w http.ResponseWriter, status int, format string, args ...interface{}) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintf(w, format+"\n", args...)
}

func (s *Server) render(w http.ResponseWriter, status int, t *template.Template, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := t.Execute(w, data); err != nil {
		s.logger.Error("rendering template failed", zap.String("template", t.Name()), zap.Error(err))
	}
}

func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, indexPage, pageData{Home: s.home(r)})
}

// shortenForm handles form submissions with the long URL in the "url" field.
// The URL is stored exactly as submitted.
func (s *Server) shortenForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "could not parse form: %v", err)
		return
	}
	values, ok := r.PostForm["url"]
	if !ok {
		writeError(w, http.StatusBadRequest, "missing form field 'url'")
		return
	}

	s.shorten(w, r, values[0])
}

// shortenPath handles requests with an absolute URL as request path, e.g.
// /https://example.com/page?q=1. The URL is taken verbatim from the request URI.
func (s *Server) shortenPath(w http.ResponseWriter, r *http.Request) {
	longURL := r.URL.RequestURI() // r.URL.RequestURI() is e.g. /http://example.com/
	longURL = longURL[1:]         // cut off leading slash

	s.shorten(w, r, longURL)
}

// shorten allocates a code for longURL and responds with the absolute short URL,
// as plain text or as an HTML page for browsers.
func (s *Server) shorten(w http.ResponseWriter, r *http.Request, longURL string) {
	l, err := s.allocator.Allocate(r.Context(), longURL)
	if err != nil {
		s.logger.Error("shortening failed", zap.String("url", longURL), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "error shortening URL")
		return
	}

	shortURL := s.shortLink(r, l.ShortCode)

	if !wantsHTML(r) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintln(w, shortURL)
		return
	}

	data := pageData{
		Home:        s.home(r),
		ShortURL:    shortURL,
		OriginalURL: l.OriginalURL,
	}
	if until, ok := s.resolver.ValidUntil(l); ok {
		data.ValidUntil = until.Truncate(time.Second).Format("2006-01-02 15:04:05 MST")
	}
	s.render(w, http.StatusOK, resultPage, data)
}

// resolve looks up the code and redirects the client to the original URL.
func (s *Server) resolve(w http.ResponseWriter, r *http.Request, code string) {
	l, err := s.resolver.Resolve(r.Context(), code)
	if err != nil {
		if xerrors.Is(err, ErrNotFound) {
			s.notFound(w, r)
			return
		}
		writeError(w, http.StatusInternalServerError, "error resolving short link")
		return
	}

	http.Redirect(w, r, l.OriginalURL, http.StatusFound)
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	if wantsHTML(r) {
		s.render(w, http.StatusNotFound, invalidPage, pageData{Home: s.home(r)})
		return
	}
	writeError(w, http.StatusNotFound, "unknown or expired short link")
}
