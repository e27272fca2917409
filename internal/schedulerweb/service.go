package schedulerweb

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/boilerio/boilerio/db"
)

// NotifyFunc runs after a successful schedule or override mutation so
// controllers can pick up the change without waiting for a poll.
type NotifyFunc func()

type Server struct {
	db     *sql.DB
	clock  func() time.Time
	notify NotifyFunc
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func New(database *sql.DB, notify NotifyFunc) *Server {
	return &Server{
		db:     database,
		clock:  time.Now,
		notify: notify,
	}
}

func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.requireDevice)

	r.HandleFunc("/zones/", s.getZones).Methods("GET")
	r.HandleFunc("/sensor/", s.getSensors).Methods("GET")
	r.HandleFunc("/sensor/{id}/readings", s.getReadings).Methods("GET")
	r.HandleFunc("/sensor/{id}/readings", s.postReading).Methods("POST")
	r.HandleFunc("/schedule", s.getSchedule).Methods("GET")
	r.HandleFunc("/schedule/new_entry", s.newScheduleEntry).Methods("POST")
	r.HandleFunc("/schedule/delete_entry", s.deleteScheduleEntry).Methods("POST")
	r.HandleFunc("/zones/{id}/schedule", s.getZoneSchedule).Methods("GET")
	r.HandleFunc("/zones/{id}/override", s.getOverride).Methods("GET")
	r.HandleFunc("/zones/{id}/override", s.setOverride).Methods("POST")
	r.HandleFunc("/zones/{id}/override", s.clearOverride).Methods("DELETE")
	r.HandleFunc("/zones/{id}/gradient_measurements", s.postGradient).Methods("POST")
	r.HandleFunc("/zones/{id}/gradients", s.getGradients).Methods("GET")
	r.HandleFunc("/zones/{id}/reported_state", s.postReportedState).Methods("POST")
	r.HandleFunc("/zones/{id}/reported_state", s.getReportedState).Methods("GET")
	r.HandleFunc("/summary", s.getSummary).Methods("GET")

	return r
}

// requireDevice authenticates every request with HTTP basic auth where the
// username is a numeric device ID.
func (s *Server) requireDevice(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok {
			s.unauthorized(w)
			return
		}
		id, err := strconv.Atoi(user)
		if err != nil {
			s.unauthorized(w)
			return
		}
		salt, hash, err := db.GetDeviceSecret(s.db, id)
		if err != nil {
			log.Error().Err(err).Msg("Failed to look up device")
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if salt == "" || !VerifySecret(pass, salt, hash) {
			log.Warn().Int("device", id).Msg("Rejected device credentials")
			s.unauthorized(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="boilerio"`)
	s.writeError(w, http.StatusUnauthorized, "Unauthorized")
}

func (s *Server) notifyChanged() {
	if s.notify != nil {
		s.notify()
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{Error: message})
}
