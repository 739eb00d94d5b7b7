package ledscd

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/mdouchement/ledscd/ledsc"
	"github.com/mdouchement/logger"
)

//go:embed static
var staticFS embed.FS

// Server is the HTTP face of the bridge. It validates request input,
// forwards it to the LEDStrip and fans out applied commands to monitor
// watchers. It never retries: a failed send is reported once and the
// caller decides whether to re-issue the request.
type Server struct {
	log     logger.Logger
	cfg     Config
	strip   LEDStrip
	version string
	events  chan event
	done    chan struct{}
}

// NewServer builds the server and starts its event loop; the loop stops
// when Launch's context is done.
func NewServer(log logger.Logger, cfg Config, strip LEDStrip, version string) *Server {
	s := &Server{
		log:     log,
		cfg:     cfg,
		strip:   strip,
		version: version,
		events:  make(chan event, 10),
		done:    make(chan struct{}),
	}
	go s.eventLoop()
	return s
}

// Launch runs the HTTP server until ctx is done.
func (s *Server) Launch(ctx context.Context) error {
	log := s.log

	httpd := &http.Server{
		Addr:    s.cfg.Bind,
		Handler: s.Handler(),
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		<-ctx.Done()
		close(s.done)

		sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := httpd.Shutdown(sctx); err != nil {
			log.WithError(err).Error("Could not shutdown HTTP server")
		}
	}()

	log.Infof("Starting HTTP server on %s", s.cfg.Bind)
	err := httpd.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Handler builds the router. Exposed on its own for tests.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.logging)
	r.Use(httprate.LimitByIP(120, time.Minute))

	r.Get("/", s.index)
	r.Get("/healthz", s.healthz)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/brightness", s.setBrightness)
		r.Post("/effect", s.setEffect)
		r.Post("/color", s.setColor)
		r.Post("/palette", s.setFirePalette)
		r.Post("/debug", s.setDebugging)

		r.Get("/effects", s.listEffects)
		r.Get("/palettes", s.listPalettes)
		r.Get("/version", s.deviceVersion)
		r.Get("/status", s.deviceStatus)
		r.Get("/monitor", s.monitor)
	})

	return r
}

func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	page, err := staticFS.ReadFile("static/index.html")
	if err != nil {
		http.Error(w, "page not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(page)
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// setBrightness handles brightness_percent as an integer string in [0,100].
func (s *Server) setBrightness(w http.ResponseWriter, r *http.Request) {
	percent, err := strconv.Atoi(r.FormValue("brightness_percent"))
	if err != nil {
		s.invalid(w, "brightness_percent: not an integer")
		return
	}
	if percent < 0 || percent > 100 {
		s.invalid(w, "brightness_percent: out of range [0,100]")
		return
	}

	if err := s.strip.SetBrightness(percent); err != nil {
		s.fail(w, "set brightness", err)
		return
	}

	s.applied("brightness", strconv.Itoa(percent))
	s.render(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// setEffect handles effect_id as an integer string over the closed enum.
func (s *Server) setEffect(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.FormValue("effect_id"))
	if err != nil {
		s.invalid(w, "effect_id: not an integer")
		return
	}

	effect, err := ledsc.EffectFromID(id)
	if err != nil {
		s.invalid(w, "effect_id: unknown effect")
		return
	}

	if err := s.strip.SetEffect(effect); err != nil {
		s.fail(w, "set effect", err)
		return
	}

	s.applied("effect", effect.String())
	s.render(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// setColor handles color as a #rrggbb string, hash optional.
func (s *Server) setColor(w http.ResponseWriter, r *http.Request) {
	color, err := ledsc.ParseColor(r.FormValue("color"))
	if err != nil {
		s.invalid(w, "color: expected #rrggbb")
		return
	}

	if err := s.strip.SetColor(color); err != nil {
		s.fail(w, "set color", err)
		return
	}

	s.applied("color", color.String())
	s.render(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// setFirePalette handles palette_id as an integer string over the closed enum.
func (s *Server) setFirePalette(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.FormValue("palette_id"))
	if err != nil {
		s.invalid(w, "palette_id: not an integer")
		return
	}

	palette, err := ledsc.PaletteFromID(id)
	if err != nil {
		s.invalid(w, "palette_id: unknown palette")
		return
	}

	if err := s.strip.SetFirePalette(palette); err != nil {
		s.fail(w, "set fire palette", err)
		return
	}

	s.applied("palette", palette.String())
	s.render(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// setDebugging toggles the firmware's serial debug traces.
func (s *Server) setDebugging(w http.ResponseWriter, r *http.Request) {
	enabled, err := strconv.ParseBool(r.FormValue("enabled"))
	if err != nil {
		s.invalid(w, "enabled: expected a boolean")
		return
	}

	if err := s.strip.SetDebugging(enabled); err != nil {
		s.fail(w, "set debugging", err)
		return
	}

	s.applied("debug", strconv.FormatBool(enabled))
	s.render(w, http.StatusOK, StatusResponse{Status: "ok"})
}

func (s *Server) listEffects(w http.ResponseWriter, r *http.Request) {
	effects := ledsc.Effects()
	catalog := make([]CatalogEntry, 0, len(effects))
	for _, e := range effects {
		catalog = append(catalog, CatalogEntry{ID: int(e), Name: e.String()})
	}

	s.render(w, http.StatusOK, catalog)
}

func (s *Server) listPalettes(w http.ResponseWriter, r *http.Request) {
	palettes := ledsc.Palettes()
	catalog := make([]CatalogEntry, 0, len(palettes))
	for _, p := range palettes {
		catalog = append(catalog, CatalogEntry{ID: int(p), Name: p.String()})
	}

	s.render(w, http.StatusOK, catalog)
}

func (s *Server) deviceVersion(w http.ResponseWriter, r *http.Request) {
	fw, err := s.strip.FirmwareVersion()
	if err != nil {
		s.fail(w, "query firmware version", err)
		return
	}

	s.render(w, http.StatusOK, VersionResponse{Daemon: s.version, Firmware: fw})
}

func (s *Server) deviceStatus(w http.ResponseWriter, r *http.Request) {
	params, err := s.strip.Status()
	if err != nil {
		s.fail(w, "query status", err)
		return
	}

	s.render(w, http.StatusOK, DeviceStatusResponse{Params: params})
}

// monitor streams applied commands as SSE until the client disconnects.
func (s *Server) monitor(w http.ResponseWriter, r *http.Request) {
	// Set http headers required for SSE.
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	disconnected := r.Context().Done()

	id := genID()
	ch := make(chan []byte, 20)
	s.publish(event{name: eventWatch, watcherID: id, watcher: ch})

	rc := http.NewResponseController(w)
	rc.Flush()

	for {
		select {
		case <-disconnected:
			s.publish(event{name: eventUnwatch, watcherID: id})
			return
		case payload, ok := <-ch:
			if !ok {
				return
			}

			if _, err := w.Write(append(payload, '\n', '\n')); err != nil {
				s.log.WithError(err).Error("Could not write monitor SSE payload")
				return
			}

			if err := rc.Flush(); err != nil {
				s.log.WithError(err).Error("Could not flush monitor SSE payload")
				return
			}
		}
	}
}

// eventLoop owns the watcher registry. Watchers join and leave through
// the same channel as applied events so no extra locking is needed.
func (s *Server) eventLoop() {
	watchers := map[int64]chan<- []byte{}

	for {
		select {
		case <-s.done:
			for _, watcher := range watchers {
				close(watcher)
			}
			return

		case e := <-s.events:
			switch e.name {
			case eventApplied:
				payload, err := json.Marshal(e.applied)
				if err != nil {
					s.log.WithError(err).Error("Could not serialize applied event") // Should never happen
					continue
				}

				for _, watcher := range watchers {
					select {
					case watcher <- payload:
					default: // Slow watcher, drop rather than stall the loop.
					}
				}
			case eventWatch:
				watchers[e.watcherID] = e.watcher
			case eventUnwatch:
				if watcher, ok := watchers[e.watcherID]; ok {
					close(watcher)
					delete(watchers, e.watcherID)
				}
			}
		}
	}
}

func (s *Server) applied(op, value string) {
	s.publish(event{
		name:    eventApplied,
		applied: Applied{Op: op, Value: value, At: time.Now()},
	})
}

func (s *Server) publish(e event) {
	select {
	case s.events <- e:
	case <-s.done:
	}
}

func (s *Server) render(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.WithError(err).Error("Could not encode response")
	}
}

// invalid reports a validation failure. It is always the caller's fault
// and never touches the device.
func (s *Server) invalid(w http.ResponseWriter, reason string) {
	s.render(w, http.StatusBadRequest, StatusResponse{Status: "error", Error: reason})
}

// fail maps a bridge failure to a coarse outcome. Transport detail stays
// in the logs.
func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, ledsc.ErrValidation) {
		s.invalid(w, "invalid input")
		return
	}

	s.log.WithError(err).Errorf("Could not %s", op)
	s.render(w, http.StatusServiceUnavailable, StatusResponse{Status: "error", Error: "device unavailable"})
}

type loggingResponseWriter struct {
	http.ResponseWriter
	status int
}

func (w *loggingResponseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach Flush through the wrapper.
func (w *loggingResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (s *Server) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lw := &loggingResponseWriter{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(lw, r)
		s.log.Debugf("%s %s %d %s", r.Method, r.URL.Path, lw.status, time.Since(start))
	})
}
