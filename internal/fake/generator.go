// Package fake provides utilities for generating random sighting journal data for testing and development purposes.
package fake

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/beacon/internal/models"
)

// Journal receives generated sightings.
type Journal interface {
	UpsertSighting(ctx context.Context, s models.Sighting) error
}

// GenerateData populates the journal with count randomized sightings.
// It simulates server names, mod counts, countries and repeated registrations.
// Returns the number of failed writes.
func GenerateData(ctx context.Context, journal Journal, count int) int {
	names := []string{"Frontier Defense", "Attrition 24/7", "Pilots Only", "Angel City LTS", "CTF Nights"}
	tags := []string{"[EU]", "[NA]", "[AS]", "[OCE]", "[RU]"}

	countriesHigh := []string{"US", "DE", "RU", "CN", "BR", "FR", "GB", "PL"}
	countriesMid := []string{"CA", "AU", "IT", "ES", "NL", "SE", "JP", "KR"}
	countriesLow := []string{"ZA", "AR", "MX", "IN", "NZ", "NO", "FI", "PT"}

	type cachedIP struct {
		Address string
		Country string
	}
	var ipHistory []cachedIP
	failed := 0

	for i := 0; i < count; i++ {
		daysAgo := rand.Intn(30)
		seen := time.Now().Add(-time.Duration(daysAgo) * 24 * time.Hour).
			Add(-time.Duration(rand.Intn(1440)) * time.Minute)

		var ip, country string

		// 20% of hosts run more than one server
		if len(ipHistory) > 0 && rand.Float32() < 0.2 {
			cached := ipHistory[rand.Intn(len(ipHistory))]
			ip, country = cached.Address, cached.Country
		} else {
			ip = fmt.Sprintf("%d.%d.%d.%d", rand.Intn(220)+1, rand.Intn(255), rand.Intn(255), rand.Intn(255))

			roll := rand.Float32()
			switch {
			case roll < 0.70:
				country = countriesHigh[rand.Intn(len(countriesHigh))]
			case roll < 0.90:
				country = countriesMid[rand.Intn(len(countriesMid))]
			default:
				country = countriesLow[rand.Intn(len(countriesLow))]
			}

			ipHistory = append(ipHistory, cachedIP{Address: ip, Country: country})
		}

		port := 37015 + rand.Intn(20)
		s := models.Sighting{
			IP:          ip,
			Port:        port,
			AuthPort:    8081 + (port - 37015),
			Name:        fmt.Sprintf("%s %s #%d", tags[rand.Intn(len(tags))], names[rand.Intn(len(names))], rand.Intn(100)),
			CountryCode: country,
			Mods:        rand.Intn(12),
			FirstSeen:   seen.Add(-7 * 24 * time.Hour),
			LastSeen:    seen,
		}

		// 30% re-register a few times
		repeats := 1
		if rand.Float32() < 0.3 {
			repeats += 2 + rand.Intn(5)
		}

		for r := 0; r < repeats; r++ {
			if err := journal.UpsertSighting(ctx, s); err != nil {
				log.Warn().Err(err).Msg("Failed to generate fake sighting")
				failed++
				break
			}
		}
	}

	return failed
}
