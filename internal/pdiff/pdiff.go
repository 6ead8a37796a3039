// Package pdiff parses and fingerprints mod definition diffs.
//
// A diff is line based text:
//
//	// comment
//	$ENUM_ADD eItemTypes
//		CUSTOM_ITEM
//	$END
//	bool unlockedCustom
//	int[eItemTypes] itemKills
//
// Enum blocks append values to an existing enum, other lines declare members.
package pdiff

import (
	"crypto/sha1" //nolint:gosec // compatibility fingerprint, not a security boundary
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/beacon/internal/models"
)

const (
	directiveEnumAdd = "$ENUM_ADD"
	directiveEnd     = "$END"
)

// ParseError reports a malformed diff line.
type ParseError struct {
	Msg  string
	Line int
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("pdiff line %d: %s", e.Line, e.Msg)
}

// Hash returns the hex SHA-1 of the raw diff text.
func Hash(raw string) string {
	sum := sha1.Sum([]byte(raw)) //nolint:gosec
	return hex.EncodeToString(sum[:])
}

// Parse converts diff text to its structured form. Hash is left empty.
func Parse(raw string) (*models.Diff, error) {
	diff := &models.Diff{
		Enums:   []models.EnumAdd{},
		Members: []models.Member{},
	}

	var block *models.EnumAdd
	blockLine := 0

	for i, line := range strings.Split(raw, "\n") {
		lineNo := i + 1
		line = stripComment(line)
		if line == "" {
			continue
		}

		fields := strings.Fields(line)

		switch {
		case fields[0] == directiveEnumAdd:
			if block != nil {
				return nil, &ParseError{Line: lineNo, Msg: fmt.Sprintf("%s inside block opened on line %d", directiveEnumAdd, blockLine)}
			}
			if len(fields) != 2 || !isIdent(fields[1]) {
				return nil, &ParseError{Line: lineNo, Msg: "expected enum name after " + directiveEnumAdd}
			}
			block = &models.EnumAdd{Name: fields[1], Values: []string{}}
			blockLine = lineNo

		case fields[0] == directiveEnd:
			if block == nil {
				return nil, &ParseError{Line: lineNo, Msg: directiveEnd + " without open block"}
			}
			if len(fields) != 1 {
				return nil, &ParseError{Line: lineNo, Msg: "unexpected tokens after " + directiveEnd}
			}
			diff.Enums = append(diff.Enums, *block)
			block = nil

		case strings.HasPrefix(fields[0], "$"):
			return nil, &ParseError{Line: lineNo, Msg: "unknown directive " + fields[0]}

		case block != nil:
			if len(fields) != 1 || !isIdent(fields[0]) {
				return nil, &ParseError{Line: lineNo, Msg: fmt.Sprintf("invalid enum value %q", line)}
			}
			block.Values = append(block.Values, fields[0])

		default:
			member, err := parseMember(fields)
			if err != nil {
				return nil, &ParseError{Line: lineNo, Msg: err.Error()}
			}
			diff.Members = append(diff.Members, member)
		}
	}

	if block != nil {
		return nil, &ParseError{Line: blockLine, Msg: fmt.Sprintf("enum %s is not closed with %s", block.Name, directiveEnd)}
	}

	return diff, nil
}

// Process fingerprints raw and parses it. The hash is always computed from
// the original text; diff is nil when parsing fails.
func Process(raw string) (diff *models.Diff, hash string, err error) {
	hash = Hash(raw)

	diff, err = Parse(raw)
	if err != nil {
		return nil, hash, err
	}
	diff.Hash = hash

	return diff, hash, nil
}

// ProcessMods converts submitted mods to registry form. A mod whose diff
// does not parse is kept with a nil Pdiff and its hash.
func ProcessMods(raw []models.RawMod) []models.Mod {
	mods := make([]models.Mod, 0, len(raw))

	for _, r := range raw {
		mod := models.Mod{
			Name:             r.Name,
			Version:          r.Version,
			RequiredOnClient: r.RequiredOnClient,
		}

		if r.Pdiff != "" {
			diff, hash, err := Process(r.Pdiff)
			if err != nil {
				log.Debug().
					Err(err).
					Str("mod", r.Name).
					Str("hash", hash).
					Msg("Discarding unparsable pdiff")
			}
			mod.Pdiff = diff
			mod.PdiffHash = hash
		}

		mods = append(mods, mod)
	}

	return mods
}

func parseMember(fields []string) (models.Member, error) {
	if len(fields) != 2 {
		return models.Member{}, fmt.Errorf("expected \"<type> <name>\", got %d tokens", len(fields))
	}

	typ, size := fields[0], ""
	if open := strings.IndexByte(typ, '['); open >= 0 {
		if !strings.HasSuffix(typ, "]") {
			return models.Member{}, fmt.Errorf("unterminated array size in %q", typ)
		}
		typ, size = typ[:open], typ[open+1:len(typ)-1]
		if !isArraySize(size) {
			return models.Member{}, fmt.Errorf("invalid array size %q", size)
		}
	}

	if !isIdent(typ) {
		return models.Member{}, fmt.Errorf("invalid type %q", typ)
	}
	if !isIdent(fields[1]) {
		return models.Member{}, fmt.Errorf("invalid member name %q", fields[1])
	}

	return models.Member{Type: typ, Name: fields[1], ArraySize: size}, nil
}

func stripComment(line string) string {
	if i := strings.Index(line, "//"); i >= 0 {
		line = line[:i]
	}
	line = strings.TrimSpace(line)
	if strings.HasPrefix(line, "#") {
		return ""
	}

	return line
}

func isArraySize(s string) bool {
	if n, err := strconv.Atoi(s); err == nil {
		return n > 0
	}

	return isIdent(s)
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}

	for i, c := range s {
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case i > 0 && c >= '0' && c <= '9':
		default:
			return false
		}
	}

	return true
}
