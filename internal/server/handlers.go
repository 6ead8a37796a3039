package server

import (
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/beacon/internal/models"
	"github.com/woozymasta/beacon/internal/vars"
)

// handleListServers returns the public view of every live server.
func (s *Server) handleListServers(w http.ResponseWriter, _ *http.Request) {
	records := s.directory.Store().List()

	servers := make([]models.PublicServer, 0, len(records))
	for _, rec := range records {
		servers = append(servers, rec.Public())
	}

	writeJSON(w, http.StatusOK, servers)
}

// handleVersion returns build information.
func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, vars.Info())
}

// handleAdminServers returns full records, passwords and auth ports included.
// This endpoint is protected by AdminAuthMiddleware.
func (s *Server) handleAdminServers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.directory.Store().List())
}

// handleSightings returns the sighting journal, most recently seen first.
func (s *Server) handleSightings(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		http.Error(w, "Journal disabled", http.StatusServiceUnavailable)
		return
	}

	sightings, err := s.journal.Sightings(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch sightings")
		http.Error(w, "Database Error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, sightings)
}

// handleDeleteSighting removes one journal row.
// Query params: ?ip=1.2.3.4&port=37015
func (s *Server) handleDeleteSighting(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		http.Error(w, "Journal disabled", http.StatusServiceUnavailable)
		return
	}

	ip := r.URL.Query().Get("ip")
	portStr := r.URL.Query().Get("port")
	if ip == "" || portStr == "" {
		http.Error(w, "Missing required params (ip, port)", http.StatusBadRequest)
		return
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		http.Error(w, "Invalid port", http.StatusBadRequest)
		return
	}

	if err := s.journal.DeleteSighting(r.Context(), ip, port); err != nil {
		log.Error().Err(err).
			Str("ip", ip).
			Int("port", port).
			Msg("Failed to delete sighting")

		http.Error(w, "Database Error", http.StatusInternalServerError)
		return
	}

	log.Info().
		Str("ip", ip).
		Int("port", port).
		Msg("Sighting deleted manually")

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "message": "Sighting deleted"})
}
