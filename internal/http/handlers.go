package httpapi

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/tow-dispatch/internal/dispatch"
	"github.com/example/tow-dispatch/internal/ledger"
	"github.com/example/tow-dispatch/internal/location"
	"github.com/example/tow-dispatch/internal/models"
	"github.com/example/tow-dispatch/internal/negotiation"
	"github.com/example/tow-dispatch/internal/offer"
)

// Server is the driver-facing API: availability, location, the current offer
// and the trip/earnings views.
type Server struct {
	Offers  *offer.Controller
	Ledger  *ledger.Ledger
	Tracker *location.Tracker
	WSReg   *dispatch.WSRegistry
	logger  *slog.Logger
	mux     *mux.Router

	// DemoOfferDelay > 0 presents offer.DemoOffer that long after the driver goes online.
	DemoOfferDelay time.Duration
	Scheduler      offer.Scheduler
}

// Options carries the Server's collaborators.
type Options struct {
	Offers         *offer.Controller
	Ledger         *ledger.Ledger
	Tracker        *location.Tracker
	WSReg          *dispatch.WSRegistry
	Logger         *slog.Logger
	DemoOfferDelay time.Duration
	Scheduler      offer.Scheduler
}

func NewServer(opts Options) *Server {
	s := &Server{
		Offers:         opts.Offers,
		Ledger:         opts.Ledger,
		Tracker:        opts.Tracker,
		WSReg:          opts.WSReg,
		logger:         opts.Logger,
		mux:            mux.NewRouter(),
		DemoOfferDelay: opts.DemoOfferDelay,
		Scheduler:      opts.Scheduler,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.Scheduler == nil {
		s.Scheduler = offer.RealScheduler()
	}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.mux.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/driver/status", s.handleStatus).Methods("GET")
	api.HandleFunc("/driver/status", s.handleSetStatus).Methods("POST")
	api.HandleFunc("/driver/location", s.handleLocation).Methods("POST")
	api.HandleFunc("/offers", s.handlePresentOffer).Methods("POST")
	api.HandleFunc("/offers/current", s.handleCurrentOffer).Methods("GET")
	api.HandleFunc("/offers/current/accept", s.handleAccept).Methods("POST")
	api.HandleFunc("/offers/current/reject", s.handleReject).Methods("POST")
	api.HandleFunc("/offers/current/negotiate", s.handleNegotiate).Methods("POST")
	api.HandleFunc("/offers/current/price-check", s.handlePriceCheck).Methods("GET")
	api.HandleFunc("/trips/active", s.handleActiveTrip).Methods("GET")
	api.HandleFunc("/trips/active/cancel", s.handleCancelTrip).Methods("POST")
	api.HandleFunc("/trips/active/complete", s.handleCompleteTrip).Methods("POST")
	api.HandleFunc("/trips", s.handleTrips).Methods("GET")
	api.HandleFunc("/earnings", s.handleEarnings).Methods("GET")

	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) }).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.HandleFunc("/ws", s.handleWS)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

type statusResponse struct {
	Online            bool                `json:"online"`
	Availability      models.Availability `json:"availability"`
	Location          *models.Coord       `json:"location,omitempty"`
	LocationUpdatedAt *time.Time          `json:"location_updated_at,omitempty"`
}

func (s *Server) status() statusResponse {
	resp := statusResponse{Online: s.Offers.Online(), Availability: s.Ledger.Availability()}
	if s.Tracker != nil {
		if c, ok := s.Tracker.Current(); ok {
			at := s.Tracker.UpdatedAt()
			resp.Location = &c
			resp.LocationUpdatedAt = &at
		}
	}
	return resp
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Online *bool `json:"online"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Online == nil {
		http.Error(w, "body must be {\"online\": bool}", http.StatusBadRequest)
		return
	}
	wasOnline := s.Offers.Online()
	s.Offers.SetOnline(*req.Online)
	if wasOnline != *req.Online {
		s.requestLogger(r).Info("driver status changed", "online", *req.Online)
	}
	if *req.Online && !wasOnline && s.DemoOfferDelay > 0 {
		s.scheduleDemoOffer()
	}
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) scheduleDemoOffer() {
	s.Scheduler.AfterFunc(s.DemoOfferDelay, func() {
		if err := s.Offers.PresentOffer(offer.DemoOffer()); err != nil {
			s.logger.Info("demo offer skipped", "error", err)
		}
	})
}

func (s *Server) handleLocation(w http.ResponseWriter, r *http.Request) {
	var c models.Coord
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if c.Lat < -90 || c.Lat > 90 || c.Lon < -180 || c.Lon > 180 {
		http.Error(w, "coordinates out of range", http.StatusBadRequest)
		return
	}
	u := s.Tracker.Update(c)
	writeJSON(w, http.StatusAccepted, u)
}

func (s *Server) handlePresentOffer(w http.ResponseWriter, r *http.Request) {
	var o models.Offer
	if err := json.NewDecoder(r.Body).Decode(&o); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !negotiation.ValidAmount(o.BasePrice) {
		s.writeError(w, offer.ErrInvalidOffer)
		return
	}
	if err := s.Offers.PresentOffer(o); err != nil {
		s.writeError(w, err)
		return
	}
	snap := s.Offers.Snapshot()
	s.requestLogger(r).Info("offer submitted", "offer_id", o.ID, "base_price", o.BasePrice.StringFixed(2))
	writeJSON(w, http.StatusCreated, snap)
}

func (s *Server) handleCurrentOffer(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Offers.Snapshot())
}

func (s *Server) handleAccept(w http.ResponseWriter, r *http.Request) {
	trip, err := s.Offers.Accept()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.requestLogger(r).Info("offer accepted", "offer_id", trip.OfferID, "trip_id", trip.ID)
	writeJSON(w, http.StatusOK, trip)
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	if err := s.Offers.Reject(); err != nil {
		s.writeError(w, err)
		return
	}
	snap := s.Offers.Snapshot()
	s.requestLogger(r).Info("offer rejected", "offer_id", snap.Offer.ID)
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleNegotiate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Price string `json:"price"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	attempt, err := s.Offers.BeginNegotiation(req.Price)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.requestLogger(r).Info("counter-offer sent", "offer_id", attempt.OfferID, "proposed", attempt.ProposedPrice.StringFixed(2), "parsed", attempt.Parsed)
	writeJSON(w, http.StatusAccepted, attempt)
}

func (s *Server) handlePriceCheck(w http.ResponseWriter, r *http.Request) {
	check, err := s.Offers.CheckPrice(r.URL.Query().Get("price"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, check)
}

func (s *Server) handleActiveTrip(w http.ResponseWriter, r *http.Request) {
	trip, ok := s.Ledger.ActiveTrip()
	if !ok {
		http.Error(w, "no active trip", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, trip)
}

func (s *Server) handleCancelTrip(w http.ResponseWriter, r *http.Request) {
	trip, err := s.Offers.CancelActiveTrip()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.requestLogger(r).Info("trip cancelled", "trip_id", trip.ID, "refunded", trip.FinalPrice.StringFixed(2))
	writeJSON(w, http.StatusOK, trip)
}

func (s *Server) handleCompleteTrip(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Next string `json:"next"`
	}
	// an empty body means "stay available"
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	next := offer.GoAvailable
	switch req.Next {
	case "", "available":
	case "offline":
		next = offer.GoOffline
	default:
		http.Error(w, "next must be \"available\" or \"offline\"", http.StatusBadRequest)
		return
	}
	trip, err := s.Offers.CompleteActiveTrip(next)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.requestLogger(r).Info("trip completed", "trip_id", trip.ID, "next", req.Next)
	writeJSON(w, http.StatusOK, trip)
}

func (s *Server) handleTrips(w http.ResponseWriter, r *http.Request) {
	trips, err := s.Ledger.History()
	if err != nil {
		s.writeError(w, err)
		return
	}
	if trips == nil {
		trips = []models.Trip{}
	}
	writeJSON(w, http.StatusOK, trips)
}

func (s *Server) handleEarnings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Ledger.Earnings())
}

var upgrader = websocket.Upgrader{}

// handleWS registers the screen for offer events and sends it the current
// snapshot. The read loop only exists to notice the client going away.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	if err := conn.WriteJSON(s.Offers.Snapshot()); err != nil {
		_ = conn.Close()
		return
	}
	id := s.WSReg.Add(conn)
	go func() {
		defer s.WSReg.Remove(id)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, offer.ErrInvalidTransition),
		errors.Is(err, offer.ErrOffline),
		errors.Is(err, offer.ErrOfferInFlight),
		errors.Is(err, offer.ErrDriverBusy),
		errors.Is(err, ledger.ErrTripActive):
		status = http.StatusConflict
	case errors.Is(err, ledger.ErrNoActiveTrip):
		status = http.StatusNotFound
	case errors.Is(err, offer.ErrInvalidOffer), errors.Is(err, ledger.ErrInvalidPrice):
		status = http.StatusUnprocessableEntity
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newID() string { b := make([]byte, 8); _, _ = rand.Read(b); return hex.EncodeToString(b) }
