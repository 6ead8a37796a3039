// Package models defines the data structures used for API requests, registry records and journal persistence.
package models

import (
	"encoding/json"
	"time"
)

// RegisterRequest is a registration attempt as seen by the directory.
// IP comes from the transport layer, everything else from the registrant.
type RegisterRequest struct {
	IP          string
	Name        string
	Description string
	Map         string
	Playlist    string
	Password    string
	ModInfo     []byte // raw mod-info JSON, may be empty
	Port        int
	AuthPort    int
	MaxPlayers  int
}

// RegisterResult is the only mutation outcome reported back to a game server.
type RegisterResult struct {
	ID      string `json:"id,omitempty"`
	Success bool   `json:"success"`
}

// ServerRecord represents a registered game server held by the registry.
type ServerRecord struct {
	Registered    time.Time `json:"registered"`
	LastHeartbeat time.Time `json:"lastHeartbeat"`
	ModInfo       *ModInfo  `json:"modInfo"`
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	IP            string    `json:"ip"`
	CountryCode   string    `json:"countryCode,omitempty"`
	Map           string    `json:"map"`
	Playlist      string    `json:"playlist"`
	Password      string    `json:"password"`
	Port          int       `json:"port"`
	AuthPort      int       `json:"authPort"`
	PlayerCount   int       `json:"playerCount"`
	MaxPlayers    int       `json:"maxPlayers"`
}

// Clone returns a deep copy of the record.
func (r ServerRecord) Clone() ServerRecord {
	if r.ModInfo != nil {
		info := r.ModInfo.Clone()
		r.ModInfo = &info
	}

	return r
}

// ModInfo lists the mods a server runs.
type ModInfo struct {
	Mods []Mod `json:"Mods"`
}

// Clone returns a deep copy of the mod list.
func (m ModInfo) Clone() ModInfo {
	mods := make([]Mod, len(m.Mods))
	for i, mod := range m.Mods {
		if mod.Pdiff != nil {
			diff := mod.Pdiff.Clone()
			mod.Pdiff = &diff
		}
		mods[i] = mod
	}

	return ModInfo{Mods: mods}
}

// RawMod is a mod entry as submitted in the registration payload.
type RawMod struct {
	Name             string `json:"Name"`
	Version          string `json:"Version"`
	Pdiff            string `json:"pdiff"`
	RequiredOnClient bool   `json:"RequiredOnClient"`
}

// UnmarshalJSON decodes a mod entry field by field. A field of the wrong JSON
// type is left empty instead of failing the whole payload, and an entry that
// is not an object decodes to the zero RawMod.
func (m *RawMod) UnmarshalJSON(data []byte) error {
	var fields struct {
		Name             json.RawMessage `json:"Name"`
		Version          json.RawMessage `json:"Version"`
		Pdiff            json.RawMessage `json:"pdiff"`
		RequiredOnClient json.RawMessage `json:"RequiredOnClient"`
	}

	*m = RawMod{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil
	}

	decodeLoose(fields.Name, &m.Name)
	decodeLoose(fields.Version, &m.Version)
	decodeLoose(fields.Pdiff, &m.Pdiff)
	decodeLoose(fields.RequiredOnClient, &m.RequiredOnClient)

	return nil
}

// decodeLoose sets *dst from raw only when raw holds a value of the matching type.
func decodeLoose[T any](raw json.RawMessage, dst *T) {
	var v T
	if len(raw) == 0 || json.Unmarshal(raw, &v) != nil {
		return
	}
	*dst = v
}

// RawModInfo is the registration mod-info payload.
type RawModInfo struct {
	Mods []RawMod `json:"Mods"`
}

// Mod is a processed mod entry. Pdiff is nil when the mod has no usable diff,
// PdiffHash is set whenever diff text was supplied.
type Mod struct {
	Pdiff            *Diff  `json:"pdiff"`
	Name             string `json:"Name"`
	Version          string `json:"Version"`
	PdiffHash        string `json:"pdiffHash,omitempty"`
	RequiredOnClient bool   `json:"RequiredOnClient"`
}

// Diff is the structured form of a definition diff.
type Diff struct {
	Hash    string    `json:"hash"`
	Enums   []EnumAdd `json:"enums"`
	Members []Member  `json:"members"`
}

// Clone returns a deep copy of the diff.
func (d Diff) Clone() Diff {
	enums := make([]EnumAdd, len(d.Enums))
	for i, e := range d.Enums {
		enums[i] = EnumAdd{Name: e.Name, Values: append([]string(nil), e.Values...)}
	}
	d.Enums = enums
	d.Members = append([]Member(nil), d.Members...)

	return d
}

// EnumAdd appends values to a named enum.
type EnumAdd struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

// Member declares a new persistent field. ArraySize is empty for scalars
// and holds a number or enum name for arrays.
type Member struct {
	Type      string `json:"type"`
	Name      string `json:"name"`
	ArraySize string `json:"arraySize,omitempty"`
}

// PublicServer is the listing view of a record; secrets and callback details are hidden.
type PublicServer struct {
	ModInfo     *ModInfo `json:"modInfo"`
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	CountryCode string   `json:"countryCode,omitempty"`
	Map         string   `json:"map"`
	Playlist    string   `json:"playlist"`
	PlayerCount int      `json:"playerCount"`
	MaxPlayers  int      `json:"maxPlayers"`
	HasPassword bool     `json:"hasPassword"`
}

// Public converts a record to its listing view.
func (r ServerRecord) Public() PublicServer {
	return PublicServer{
		ModInfo:     r.ModInfo,
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		CountryCode: r.CountryCode,
		Map:         r.Map,
		Playlist:    r.Playlist,
		PlayerCount: r.PlayerCount,
		MaxPlayers:  r.MaxPlayers,
		HasPassword: r.Password != "",
	}
}

// Sighting is a journal row: one per game server endpoint ever registered.
type Sighting struct {
	FirstSeen   time.Time `json:"first_seen"`
	LastSeen    time.Time `json:"last_seen"`
	IP          string    `json:"ip"`
	Name        string    `json:"name"`
	CountryCode string    `json:"country_code"`
	Port        int       `json:"port"`
	AuthPort    int       `json:"auth_port"`
	Mods        int       `json:"mods"`
	Count       int64     `json:"count"`
}

// SightingOf builds the journal row for a freshly registered record.
func SightingOf(r ServerRecord) Sighting {
	mods := 0
	if r.ModInfo != nil {
		mods = len(r.ModInfo.Mods)
	}

	return Sighting{
		FirstSeen:   r.Registered,
		LastSeen:    r.Registered,
		IP:          r.IP,
		Name:        r.Name,
		CountryCode: r.CountryCode,
		Port:        r.Port,
		AuthPort:    r.AuthPort,
		Mods:        mods,
	}
}
