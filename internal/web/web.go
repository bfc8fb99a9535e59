package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bookcal/internal/booking"
	"bookcal/internal/catalog"
	"bookcal/internal/config"
	appLog "bookcal/internal/log"
	"bookcal/internal/model"
	"bookcal/internal/timeline"
	"bookcal/internal/timeval"
)

// BookingLister is the read side of the store the server needs.
type BookingLister interface {
	ListAll(ctx context.Context) ([]model.Booking, error)
	ListByDate(ctx context.Context, date time.Time) ([]model.Booking, error)
	Fingerprint(ctx context.Context) (model.Fingerprint, error)
}

// BlockSource supplies externally imported blocking bookings.
type BlockSource interface {
	All() []model.Booking
}

// Server provides the HTTP API: catalog and booking access, booking
// submission, and the cached timeline layout.
type Server struct {
	cfg    *config.Config
	cat    *catalog.Catalog
	store  BookingLister
	blocks BlockSource
	svc    *booking.Service
	cache  *timeline.Cache
	loc    *time.Location
	now    func() time.Time
	mux    *http.ServeMux
}

// NewServer constructs a Server. blocks may be nil when no feeds are
// configured.
func NewServer(cfg *config.Config, cat *catalog.Catalog, store BookingLister, blocks BlockSource, svc *booking.Service, cache *timeline.Cache, loc *time.Location) *Server {
	if loc == nil {
		loc = time.Local
	}
	s := &Server{
		cfg:    cfg,
		cat:    cat,
		store:  store,
		blocks: blocks,
		svc:    svc,
		cache:  cache,
		loc:    loc,
		now:    time.Now,
		mux:    http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/catalog", s.handleCatalog)
	s.mux.HandleFunc("/api/bookings", s.handleBookings)
	s.mux.HandleFunc("/api/timeline", s.handleTimeline)
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Treat blank credentials as disabled.
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="bookcal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// kindDTO is a JSON-friendly view of one catalog kind.
type kindDTO struct {
	Name       string `json:"name"`
	Color      string `json:"color"`
	HourlyRate string `json:"hourly_rate"`
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	kinds := s.cat.Kinds()
	out := make([]kindDTO, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, kindDTO{
			Name:       k.Name,
			Color:      k.Color,
			HourlyRate: k.HourlyRate.String(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"resources": out})
}

// bookingDTO is a JSON-friendly view of a booking.
type bookingDTO struct {
	ID          string   `json:"id"`
	Date        string   `json:"date"`
	Start       string   `json:"start"`
	End         string   `json:"end"`
	Resources   []string `json:"resources"`
	Name        string   `json:"name"`
	Company     string   `json:"company"`
	Affiliation string   `json:"affiliation,omitempty"`
	External    bool     `json:"external,omitempty"`
	Source      string   `json:"source,omitempty"`
}

// submitRequest is the POST /api/bookings body.
type submitRequest struct {
	Date        string   `json:"date"`
	Start       string   `json:"start"`
	End         string   `json:"end"`
	Resources   []string `json:"resources"`
	Name        string   `json:"name"`
	Company     string   `json:"company"`
	Affiliation string   `json:"affiliation"`
	Email       string   `json:"email"`
}

func (s *Server) handleBookings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListBookings(w, r)
	case http.MethodPost:
		s.handleSubmitBooking(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleListBookings returns bookings for one date (?date=YYYY-MM-DD)
// or for the default rolling window, external blocks included.
func (s *Server) handleListBookings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	var rows []model.Booking
	if dateStr := q.Get("date"); dateStr != "" {
		date, err := time.ParseInLocation("2006-01-02", dateStr, s.loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date; want YYYY-MM-DD")
			return
		}
		stored, err := s.store.ListByDate(ctx, date)
		if err != nil {
			appLog.Error("listing bookings failed", err)
			writeError(w, http.StatusInternalServerError, "failed to list bookings")
			return
		}
		rows = stored
		if s.blocks != nil {
			for _, b := range s.blocks.All() {
				if sameDay(b.Date, date) {
					rows = append(rows, b)
				}
			}
		}
	} else {
		stored, err := s.store.ListAll(ctx)
		if err != nil {
			appLog.Error("listing bookings failed", err)
			writeError(w, http.StatusInternalServerError, "failed to list bookings")
			return
		}
		if s.blocks != nil {
			stored = append(stored, s.blocks.All()...)
		}
		win := timeline.WindowFrom(s.now().In(s.loc), s.cfg.Window.BackDays, s.cfg.Window.AheadDays)
		filtered, err := timeline.FilterWindow(stored, win)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		rows = filtered
	}

	out := make([]bookingDTO, 0, len(rows))
	for _, b := range rows {
		out = append(out, toBookingDTO(b))
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": out})
}

func (s *Server) handleSubmitBooking(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	date, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(req.Date), s.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date; want YYYY-MM-DD")
		return
	}
	start, err := timeval.Normalize(req.Start)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start time")
		return
	}
	end, err := timeval.Normalize(req.End)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid end time")
		return
	}

	receipt, err := s.svc.Submit(r.Context(), booking.Request{
		Date:      date,
		Start:     start,
		End:       end,
		Resources: req.Resources,
		Owner: model.Owner{
			Name:        req.Name,
			Company:     req.Company,
			Affiliation: req.Affiliation,
			Email:       req.Email,
		},
	})
	if err != nil {
		var ve *booking.ValidationError
		if errors.As(err, &ve) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"error":  ve.Error(),
				"fields": ve.Fields,
			})
			return
		}
		var ce *booking.ConflictError
		if errors.As(err, &ce) {
			writeJSON(w, http.StatusConflict, map[string]any{
				"error":     "time conflict",
				"detail":    ce.Conflict.Detail,
				"resources": ce.Conflict.Resources,
			})
			return
		}
		appLog.Error("booking submission failed", err)
		writeError(w, http.StatusInternalServerError, "failed to store booking")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"booking": toBookingDTO(receipt.Booking),
		"quote":   receipt.Quote.String(),
	})
}

// unitDTO is a JSON-friendly view of one layout unit. Geometry is in
// abstract time-day units; the render sink turns it into pixels.
type unitDTO struct {
	BookingID     string  `json:"booking_id"`
	Date          string  `json:"date"`
	StartHour     float64 `json:"start_hour"`
	DurationHours float64 `json:"duration_hours"`
	Resource      string  `json:"resource"`
	Color         string  `json:"color"`
	SlotIndex     int     `json:"slot_index"`
	Offset        float64 `json:"offset"`
}

// timelineResponse is the GET /api/timeline response shape.
type timelineResponse struct {
	Reason           string    `json:"reason"`
	Units            []unitDTO `json:"units,omitempty"`
	UnitWidth        float64   `json:"unit_width,omitempty"`
	RowsPlotted      int       `json:"rows_plotted"`
	InvalidDurations int       `json:"invalid_durations"`
	WindowStart      string    `json:"window_start"`
	WindowEnd        string    `json:"window_end"`
	MinDate          string    `json:"min_date,omitempty"`
	MaxDate          string    `json:"max_date,omitempty"`
}

// handleTimeline returns the laid-out timeline for the rolling window.
//
// GET /api/timeline?back=7&ahead=21
//   - back:  days before today to include (default from config)
//   - ahead: days after today to include (default from config)
//
// Responses for the default window are cached against the store
// fingerprint; custom windows always recompute.
func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	ctx := r.Context()
	q := r.URL.Query()

	back := parseIntDefault(q.Get("back"), s.cfg.Window.BackDays)
	ahead := parseIntDefault(q.Get("ahead"), s.cfg.Window.AheadDays)
	defaultWindow := back == s.cfg.Window.BackDays && ahead == s.cfg.Window.AheadDays

	win := timeline.WindowFrom(s.now().In(s.loc), back, ahead)

	// The rows are fetched on every request; the cache only spares the
	// layout computation, mirroring how the fingerprint is defined.
	rows, err := s.store.ListAll(ctx)
	if err != nil {
		appLog.Error("timeline: listing bookings failed", err)
		writeError(w, http.StatusInternalServerError, "failed to list bookings")
		return
	}
	if s.blocks != nil {
		rows = append(rows, s.blocks.All()...)
	}

	compute := func() timeline.Result {
		return timeline.Layout(rows, s.cat, win)
	}

	var res timeline.Result
	if defaultWindow {
		fp, err := s.store.Fingerprint(ctx)
		if err != nil {
			appLog.Error("timeline: fingerprint failed", err)
			res = compute()
		} else {
			res = s.cache.Cached(fp, compute)
		}
	} else {
		res = compute()
	}

	writeJSON(w, http.StatusOK, s.toTimelineResponse(res))
}

func (s *Server) toTimelineResponse(res timeline.Result) timelineResponse {
	out := timelineResponse{
		Reason:           string(res.Reason),
		UnitWidth:        res.UnitWidth,
		RowsPlotted:      res.RowsPlotted,
		InvalidDurations: res.InvalidDurations,
		WindowStart:      res.Window.Start.Format("2006-01-02"),
		WindowEnd:        res.Window.End.Format("2006-01-02"),
	}
	if !res.MinDate.IsZero() {
		out.MinDate = res.MinDate.Format("2006-01-02")
	}
	if !res.MaxDate.IsZero() {
		out.MaxDate = res.MaxDate.Format("2006-01-02")
	}
	for _, u := range res.Units {
		out.Units = append(out.Units, unitDTO{
			BookingID:     u.BookingID,
			Date:          u.Date.Format("2006-01-02"),
			StartHour:     u.StartHour,
			DurationHours: u.DurationHours,
			Resource:      u.Resource,
			Color:         s.cat.Color(u.Resource),
			SlotIndex:     u.SlotIndex,
			Offset:        u.Offset,
		})
	}
	return out
}

func toBookingDTO(b model.Booking) bookingDTO {
	start, end := "", ""
	if c, err := timeval.Normalize(b.Start); err == nil {
		start = c.String()
	}
	if c, err := timeval.Normalize(b.End); err == nil {
		end = c.String()
	}
	return bookingDTO{
		ID:          b.ID,
		Date:        b.Date.Format("2006-01-02"),
		Start:       start,
		End:         end,
		Resources:   b.Resources,
		Name:        b.Owner.Name,
		Company:     b.Owner.Company,
		Affiliation: b.Owner.Affiliation,
		External:    b.External,
		Source:      b.Source,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to encode JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}

// StartServer runs the HTTP server until ctx is canceled, then shuts
// down gracefully.
func StartServer(ctx context.Context, s *Server) error {
	srv := &http.Server{
		Addr:    s.cfg.Listen,
		Handler: s.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
