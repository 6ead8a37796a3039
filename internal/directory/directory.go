// Package directory implements the game server mutation protocol on top of
// the registry: Register, Refresh, Patch and Deregister.
//
// Only Register reports an outcome. The other operations are fire-and-forget
// for the caller: an unknown id and a foreign caller look exactly like success.
package directory

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/beacon/internal/models"
	"github.com/woozymasta/beacon/internal/pdiff"
	"github.com/woozymasta/beacon/internal/registry"
)

// Verifier confirms that the registrant controls ip by calling back to authPort.
type Verifier interface {
	Verify(ctx context.Context, ip string, authPort int) error
}

// Sanitizer cleans free text shown to players.
type Sanitizer interface {
	Clean(s string) string
}

// CountryResolver maps an address to an ISO country code, empty when unknown.
type CountryResolver interface {
	CountryCode(ip string) string
}

// Service runs directory operations against a registry.
type Service struct {
	store     *registry.Store
	verifier  Verifier
	sanitizer Sanitizer
	countries CountryResolver
}

// Option configures the Service.
type Option func(*Service)

// WithCountryResolver tags new records with a country code.
func WithCountryResolver(r CountryResolver) Option {
	return func(s *Service) {
		s.countries = r
	}
}

// New creates a Service. verifier and sanitizer are required.
func New(store *registry.Store, verifier Verifier, sanitizer Sanitizer, opts ...Option) *Service {
	s := &Service{
		store:     store,
		verifier:  verifier,
		sanitizer: sanitizer,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Store returns the registry the service mutates.
func (s *Service) Store() *registry.Store {
	return s.store
}

// Register verifies the registrant and inserts a new record. The verification
// callback runs before the registry is touched and holds no registry lock.
func (s *Service) Register(ctx context.Context, req models.RegisterRequest) models.RegisterResult {
	logCtx := log.With().
		Str("ip", req.IP).
		Int("port", req.Port).
		Int("auth_port", req.AuthPort).
		Logger()

	modInfo := decodeModInfo(req.ModInfo)

	if err := s.verifier.Verify(ctx, req.IP, req.AuthPort); err != nil {
		logCtx.Debug().Err(err).Msg("Registration rejected, verification failed")
		return models.RegisterResult{Success: false}
	}

	var mods *models.ModInfo
	if modInfo != nil {
		mods = &models.ModInfo{Mods: pdiff.ProcessMods(modInfo.Mods)}
	}

	rec := models.ServerRecord{
		Name:        s.sanitizer.Clean(req.Name),
		Description: s.sanitizer.Clean(req.Description),
		IP:          req.IP,
		Port:        req.Port,
		AuthPort:    req.AuthPort,
		Map:         req.Map,
		Playlist:    req.Playlist,
		MaxPlayers:  req.MaxPlayers,
		Password:    req.Password,
		ModInfo:     mods,
	}
	if s.countries != nil {
		rec.CountryCode = s.countries.CountryCode(req.IP)
	}

	rec.ID = s.store.Insert(rec)

	logCtx.Info().
		Str("id", rec.ID).
		Str("name", rec.Name).
		Str("country", rec.CountryCode).
		Bool("mods", mods != nil).
		Msg("Server registered")

	return models.RegisterResult{Success: true, ID: rec.ID}
}

// Refresh records a heartbeat from ip for id. players may be nil to keep the
// current count.
func (s *Service) Refresh(id, ip string, players *int) {
	if access := s.store.Heartbeat(id, ip, players); access != registry.Granted {
		log.Debug().Str("id", id).Str("ip", ip).Msg("Heartbeat ignored")
	}
}

// Patch applies field updates from ip to id. See registry.IsPatchable for the accepted fields.
func (s *Service) Patch(id, ip string, values map[string]string) {
	access, applied := s.store.Patch(id, ip, values)
	if access != registry.Granted {
		log.Debug().Str("id", id).Str("ip", ip).Msg("Update ignored")
		return
	}

	log.Trace().Str("id", id).Int("fields", applied).Msg("Server updated")
}

// Deregister removes id when ip owns it.
func (s *Service) Deregister(id, ip string) {
	if access := s.store.RemoveOwned(id, ip); access != registry.Granted {
		log.Debug().Str("id", id).Str("ip", ip).Msg("Removal ignored")
		return
	}

	log.Info().Str("id", id).Str("ip", ip).Msg("Server deregistered")
}

// decodeModInfo parses the registration mod payload. Anything that is not an
// object with a Mods array yields nil and does not fail the registration.
// Entries are decoded one by one, see models.RawMod.
func decodeModInfo(payload []byte) *models.RawModInfo {
	if len(payload) == 0 {
		return nil
	}

	var probe struct {
		Mods json.RawMessage `json:"Mods"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil || len(probe.Mods) == 0 || probe.Mods[0] != '[' {
		log.Debug().Err(err).Msg("Ignoring malformed mod info")
		return nil
	}

	var info models.RawModInfo
	if err := json.Unmarshal(payload, &info); err != nil {
		log.Debug().Err(err).Msg("Ignoring malformed mod info")
		return nil
	}
	if info.Mods == nil {
		info.Mods = []models.RawMod{}
	}

	return &info
}
