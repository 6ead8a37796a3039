package registry

import (
	"math"
	"strconv"
	"strings"

	"github.com/woozymasta/beacon/internal/models"
)

// patchField applies one raw value to a record and reports whether it did.
type patchField func(rec *models.ServerRecord, raw string) bool

// patchable is the closed set of fields game servers may update after
// registration. Identity, address, ports, mods and liveness are excluded.
var patchable = map[string]patchField{
	"name":        setString(func(r *models.ServerRecord) *string { return &r.Name }),
	"description": setString(func(r *models.ServerRecord) *string { return &r.Description }),
	"map":         setString(func(r *models.ServerRecord) *string { return &r.Map }),
	"playlist":    setString(func(r *models.ServerRecord) *string { return &r.Playlist }),
	"password":    setString(func(r *models.ServerRecord) *string { return &r.Password }),
	"playerCount": setInt(func(r *models.ServerRecord) *int { return &r.PlayerCount }),
	"maxPlayers":  setInt(func(r *models.ServerRecord) *int { return &r.MaxPlayers }),
}

// IsPatchable reports whether name is a field accepted by Patch.
func IsPatchable(name string) bool {
	_, ok := patchable[name]
	return ok
}

func applyPatch(rec *models.ServerRecord, values map[string]string) int {
	applied := 0
	for name, raw := range values {
		set, ok := patchable[name]
		if !ok {
			continue
		}
		if set(rec, raw) {
			applied++
		}
	}

	return applied
}

func setString(field func(*models.ServerRecord) *string) patchField {
	return func(rec *models.ServerRecord, raw string) bool {
		*field(rec) = raw
		return true
	}
}

func setInt(field func(*models.ServerRecord) *int) patchField {
	return func(rec *models.ServerRecord, raw string) bool {
		n, ok := ParseLeadingInt(raw)
		if !ok {
			return false
		}
		*field(rec) = n
		return true
	}
}

// ParseLeadingInt reads an optionally signed decimal integer from the start
// of s, ignoring leading whitespace and anything after the digits:
// "7" and " 7 players" give 7. It fails when no digit is present.
// Values beyond the int range saturate.
func ParseLeadingInt(s string) (int, bool) {
	s = strings.TrimLeft(s, " \t\n\r\v\f")

	sign := ""
	if s != "" && (s[0] == '+' || s[0] == '-') {
		if s[0] == '-' {
			sign = "-"
		}
		s = s[1:]
	}

	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}

	n, err := strconv.ParseInt(sign+s[:end], 10, strconv.IntSize)
	if err != nil {
		// only range errors remain after the digit scan
		if sign == "-" {
			return math.MinInt, true
		}
		return math.MaxInt, true
	}

	return int(n), true
}
