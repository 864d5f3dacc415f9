// Package preview runs the local development server for a deck repository:
// it serves the built site, watches the deck sources, rebuilds on change,
// and tells connected browsers to reload over a websocket. Unlike the batch
// build, a failed rebuild here is reported and absorbed so the server keeps
// serving the last good output.
package preview

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gorilla/mux"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/quayside/deckhand/pkg/decks"
	"github.com/quayside/deckhand/pkg/logger"
)

// ReloadEndpoint is the websocket path browsers connect to for live reload.
const ReloadEndpoint = "/__reload"

const defaultDebounce = 500 * time.Millisecond

var reloadMessage = []byte("reload")

// RebuildFunc runs a full site build. The production implementation wraps
// the site Builder; tests substitute a fake.
type RebuildFunc func(ctx context.Context) error

// Config holds the preview server configuration.
type Config struct {
	Host      string
	Port      int
	SourceDir string
	OutputDir string
	// RepoName is the base path segment the built site expects to be
	// served under. The server aliases it so the site's absolute links
	// resolve locally the way they would on the hosting platform.
	RepoName string
	// Debounce is how long to wait after the last source change before
	// rebuilding. Zero means the default of 500ms.
	Debounce time.Duration
	Rebuild  RebuildFunc
}

// Validate validates the preview server configuration.
func (c *Config) Validate() error {
	if c.Host == "" {
		return errors.New("host cannot be empty")
	}
	if c.Port < 1 || c.Port > 65535 {
		return errors.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if c.SourceDir == "" {
		return errors.New("source directory cannot be empty")
	}
	if c.OutputDir == "" {
		return errors.New("output directory cannot be empty")
	}
	if c.Rebuild == nil {
		return errors.New("rebuild func cannot be nil")
	}
	return nil
}

// Server is the preview server.
type Server struct {
	config     *Config
	hub        *Hub
	router     *mux.Router
	httpServer *http.Server
	debounce   time.Duration

	mu           sync.Mutex
	rebuildTimer *time.Timer
}

// NewServer creates a preview server from config.
func NewServer(config *Config) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid preview configuration")
	}

	debounce := config.Debounce
	if debounce == 0 {
		debounce = defaultDebounce
	}

	s := &Server{
		config:   config,
		hub:      NewHub(),
		router:   mux.NewRouter(),
		debounce: debounce,
	}
	s.setupRoutes()

	return s, nil
}

// setupRoutes wires the reload endpoint and the site file server. The
// output tree is mounted both at / and under /{repoName}/ so the absolute
// deck links baked into the built pages work locally.
func (s *Server) setupRoutes() {
	s.router.HandleFunc(ReloadEndpoint, s.hub.ServeWS)

	fileServer := http.FileServer(http.Dir(s.config.OutputDir))
	if s.config.RepoName != "" {
		prefix := "/" + s.config.RepoName + "/"
		s.router.PathPrefix(prefix).Handler(s.injectReload(http.StripPrefix(prefix, fileServer)))
	}
	s.router.PathPrefix("/").Handler(s.injectReload(fileServer))
}

// Run builds the site once, then serves it while watching the source
// directory, until ctx is cancelled. The initial build failing is an error;
// later rebuild failures are logged and the last good output stays up.
func (s *Server) Run(ctx context.Context) error {
	log := logger.G(ctx)

	if err := s.config.Rebuild(ctx); err != nil {
		return errors.Wrap(err, "initial site build")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "creating file watcher")
	}
	if err := watcher.Add(s.config.SourceDir); err != nil {
		watcher.Close()
		return errors.Wrapf(err, "watching %s", s.config.SourceDir)
	}

	go s.watchLoop(ctx, watcher)

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	log.WithField("addr", addr).WithField("source", s.config.SourceDir).Info("preview server listening")

	select {
	case err := <-serverErr:
		watcher.Close()
		return errors.Wrap(err, "preview server")
	case <-ctx.Done():
	}

	var result *multierror.Error
	if err := watcher.Close(); err != nil {
		result = multierror.Append(result, errors.Wrap(err, "closing file watcher"))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		result = multierror.Append(result, errors.Wrap(err, "shutting down preview server"))
	}

	return result.ErrorOrNil()
}

// watchLoop reacts to deck source changes. Events are debounced into a
// single pending rebuild so an editor save burst triggers one build.
func (s *Server) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	log := logger.G(ctx)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !strings.HasSuffix(event.Name, decks.Suffix) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			log.WithField("file", event.Name).WithField("op", event.Op.String()).Debug("deck source changed")
			s.scheduleRebuild(ctx)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.WithError(err).Error("file watcher error")
		case <-ctx.Done():
			s.mu.Lock()
			if s.rebuildTimer != nil {
				s.rebuildTimer.Stop()
			}
			s.mu.Unlock()
			return
		}
	}
}

// scheduleRebuild (re)arms the debounce timer.
func (s *Server) scheduleRebuild(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rebuildTimer != nil {
		s.rebuildTimer.Stop()
	}
	s.rebuildTimer = time.AfterFunc(s.debounce, func() {
		s.rebuildAndReload(ctx)
	})
}

// rebuildAndReload runs a rebuild and, on success, tells every connected
// browser to reload. A failed rebuild leaves the previous output in place.
func (s *Server) rebuildAndReload(ctx context.Context) {
	log := logger.G(ctx)

	log.Info("source changed, rebuilding site")
	if err := s.config.Rebuild(ctx); err != nil {
		log.WithError(err).Error("rebuild failed, still serving last good output")
		return
	}

	log.WithField("clients", s.hub.ClientCount()).Info("site rebuilt, reloading clients")
	s.hub.Broadcast(ctx, reloadMessage)
}

// injectReload splices the live-reload script into HTML responses before
// the closing body tag. Other content types pass through untouched.
func (s *Server) injectReload(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")

		isHTML := strings.HasSuffix(r.URL.Path, ".html") || strings.HasSuffix(r.URL.Path, "/")
		if !isHTML {
			next.ServeHTTP(w, r)
			return
		}

		iw := newInterceptingWriter(w)
		next.ServeHTTP(iw, r)

		for key, values := range iw.Header() {
			for _, value := range values {
				w.Header().Add(key, value)
			}
		}

		body := iw.body.Bytes()
		if iw.statusCode != http.StatusOK {
			w.WriteHeader(iw.statusCode)
			w.Write(body)
			return
		}

		injected := bytes.Replace(body, []byte("</body>"), []byte(reloadScript+"</body>"), 1)
		w.Header().Set("Content-Length", fmt.Sprint(len(injected)))
		w.WriteHeader(iw.statusCode)
		w.Write(injected)
	})
}

// interceptingWriter buffers a response so the body can be rewritten before
// it reaches the client.
type interceptingWriter struct {
	http.ResponseWriter
	body       *bytes.Buffer
	statusCode int
	header     http.Header
}

func newInterceptingWriter(w http.ResponseWriter) *interceptingWriter {
	return &interceptingWriter{
		ResponseWriter: w,
		body:           new(bytes.Buffer),
		header:         make(http.Header),
		statusCode:     http.StatusOK,
	}
}

func (iw *interceptingWriter) Header() http.Header {
	return iw.header
}

func (iw *interceptingWriter) Write(b []byte) (int, error) {
	return iw.body.Write(b)
}

func (iw *interceptingWriter) WriteHeader(statusCode int) {
	iw.statusCode = statusCode
}

const reloadScript = `
<script>
  (function() {
    let socket = new WebSocket("ws://" + window.location.host + "` + ReloadEndpoint + `");
    socket.onmessage = function(event) {
      if (event.data === "reload") {
        window.location.reload();
      }
    };
    socket.onerror = function() {
      console.error("Live reload connection lost. Restart 'deckhand preview'.");
    };
  })();
</script>
`
