package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/beacon/internal/models"
)

// journalTimeout bounds a single sighting write.
const journalTimeout = 5 * time.Second

// handleAddServer registers a game server. The caller address is taken from
// the transport; port, authPort and maxPlayers must be integers when present.
// An optional multipart file part carries the mod info JSON.
func (s *Server) handleAddServer(w http.ResponseWriter, r *http.Request) {
	ip := GetRealIP(r, s.trustProxy)
	q := r.URL.Query()

	port, err := queryInt(q, "port")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	authPort, err := queryInt(q, "authPort")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	maxPlayers, err := queryInt(q, "maxPlayers")
	if err != nil {
		writeBadRequest(w, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)

	req := models.RegisterRequest{
		IP:          ip,
		Name:        q.Get("name"),
		Description: q.Get("description"),
		Map:         q.Get("map"),
		Playlist:    q.Get("playlist"),
		Password:    q.Get("password"),
		ModInfo:     readModInfo(r),
		Port:        port,
		AuthPort:    authPort,
		MaxPlayers:  maxPlayers,
	}

	res := s.directory.Register(r.Context(), req)
	if res.Success {
		if rec, ok := s.directory.Store().Get(res.ID); ok {
			s.enqueueSighting(models.SightingOf(rec))
		}
	}

	writeJSON(w, http.StatusOK, res)
}

// handleHeartbeat refreshes the liveness of a server owned by the caller.
func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var players *int
	if q.Has("playerCount") {
		n, err := strconv.Atoi(q.Get("playerCount"))
		if err != nil {
			writeBadRequest(w, errors.New("playerCount must be an integer"))
			return
		}
		players = &n
	}

	s.directory.Refresh(q.Get("id"), GetRealIP(r, s.trustProxy), players)
	writeNull(w)
}

// handleUpdateValues patches listing fields of a server owned by the caller.
// Every query key except id is a candidate field; the first value wins.
func (s *Server) handleUpdateValues(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if !q.Has("id") {
		writeNull(w)
		return
	}

	values := make(map[string]string, len(q))
	for key, vals := range q {
		if key == "id" || len(vals) == 0 {
			continue
		}
		values[key] = vals[0]
	}

	s.directory.Patch(q.Get("id"), GetRealIP(r, s.trustProxy), values)
	writeNull(w)
}

// handleRemoveServer deregisters a server owned by the caller.
func (s *Server) handleRemoveServer(w http.ResponseWriter, r *http.Request) {
	s.directory.Deregister(r.URL.Query().Get("id"), GetRealIP(r, s.trustProxy))
	writeNull(w)
}

// enqueueSighting hands a registration to the journal writers without blocking.
func (s *Server) enqueueSighting(sighting models.Sighting) {
	if s.journal == nil {
		return
	}

	select {
	case <-s.shutdown:
		log.Debug().
			Str("ip", sighting.IP).
			Int("port", sighting.Port).
			Msg("Journal stopped, sighting dropped")
		return
	default:
	}

	select {
	case s.queue <- sightingJob{Sighting: sighting}:
	default:
		log.Warn().
			Str("ip", sighting.IP).
			Int("port", sighting.Port).
			Msg("Journal queue full, sighting dropped")
	}
}

// worker is a background goroutine that writes sightings from the queue.
// On shutdown it drains what is already queued and exits.
func (s *Server) worker() {
	defer s.wg.Done()

	for {
		select {
		case job := <-s.queue:
			s.processJob(job)
		case <-s.shutdown:
			for {
				select {
				case job := <-s.queue:
					s.processJob(job)
				default:
					return
				}
			}
		}
	}
}

func (s *Server) processJob(job sightingJob) {
	ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
	defer cancel()

	if err := s.journal.UpsertSighting(ctx, job.Sighting); err != nil {
		log.Error().
			Err(err).
			Str("ip", job.Sighting.IP).
			Int("port", job.Sighting.Port).
			Msg("Failed to save sighting")
		return
	}

	log.Trace().
		Str("ip", job.Sighting.IP).
		Int("port", job.Sighting.Port).
		Msg("Sighting saved")
}

// readModInfo returns the content of the first file part of a multipart
// body. Anything else, including read errors, yields nil.
func readModInfo(r *http.Request) []byte {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil
	}

	for {
		part, err := mr.NextPart()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Debug().Err(err).Msg("Failed to read multipart body")
			}
			return nil
		}

		if part.FileName() == "" {
			_ = part.Close()
			continue
		}

		data, err := io.ReadAll(part)
		_ = part.Close()
		if err != nil {
			log.Debug().Err(err).Msg("Failed to read mod info part")
			return nil
		}

		return data
	}
}

// queryInt parses an optional integer query parameter; missing means zero.
func queryInt(q url.Values, key string) (int, error) {
	if !q.Has(key) {
		return 0, nil
	}

	n, err := strconv.Atoi(q.Get(key))
	if err != nil {
		return 0, errors.New(key + " must be an integer")
	}

	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeNull is the uniform answer of the fire-and-forget routes.
func writeNull(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, nil)
}

func writeBadRequest(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": err.Error()})
}
