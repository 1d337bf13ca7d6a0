package matching

import (
	"regexp"

	"github.com/samirrijal/menuwatch/internal/core/domain"
	"github.com/samirrijal/menuwatch/internal/pkg/geospatial"
	"github.com/samirrijal/menuwatch/internal/pkg/jsontree"
)

var digitRun = regexp.MustCompile(`[0-9]{4,}`)

// Match is the resolver's answer for one reference point.
type Match struct {
	ID             string
	DistanceMeters float64
	Tier           domain.MatchTier
}

// Resolver picks the canonical identifier that best matches a reference
// coordinate among heterogeneous candidate records.
type Resolver struct {
	cfg Config
}

// NewResolver creates a Resolver. A non-positive threshold falls back to
// DefaultMatchMeters.
func NewResolver(cfg Config) *Resolver {
	if cfg.MatchMeters <= 0 {
		cfg.MatchMeters = DefaultMatchMeters
	}
	return &Resolver{cfg: cfg}
}

// Threshold returns the Tier-1 acceptance radius in meters.
func (r *Resolver) Threshold() float64 {
	return r.cfg.MatchMeters
}

// NumericID extracts the first run of four or more digits from raw.
func NumericID(raw string) (string, bool) {
	id := digitRun.FindString(raw)
	return id, id != ""
}

// Resolve applies the two-tier policy:
//
//   - Tier 1: the nearest candidate with usable coordinates, if it lies
//     within the threshold. Exact ties keep the earlier candidate.
//   - Tier 2: when no surviving candidate has coordinates at all, the first
//     surviving candidate, reported at exactly the threshold distance.
//
// Candidates without a numeric identifier are discarded up front. ok is
// false when nothing survives or every located candidate is too far.
func (r *Resolver) Resolve(ref domain.GeoPoint, candidates []*jsontree.Node) (Match, bool) {
	var (
		first     string
		bestID    string
		bestDist  float64
		located   bool
		surviving int
	)

	for _, c := range candidates {
		raw, ok := FindScalar(c, r.cfg.IDKeys)
		if !ok {
			continue
		}
		id, ok := NumericID(raw.Text())
		if !ok {
			continue
		}
		surviving++
		if first == "" {
			first = id
		}

		lat, lon, ok := r.coordinates(c)
		if !ok {
			continue
		}
		d := geospatial.Haversine(ref.Lat, ref.Lon, lat, lon)
		if !located || d < bestDist {
			bestID, bestDist, located = id, d, true
		}
	}

	switch {
	case surviving == 0:
		return Match{}, false
	case located:
		if bestDist <= r.cfg.MatchMeters {
			return Match{ID: bestID, DistanceMeters: bestDist, Tier: domain.TierGeometric}, true
		}
		return Match{}, false
	default:
		return Match{ID: first, DistanceMeters: r.cfg.MatchMeters, Tier: domain.TierPositional}, true
	}
}

func (r *Resolver) coordinates(c *jsontree.Node) (float64, float64, bool) {
	latNode, ok := FindScalar(c, r.cfg.LatKeys)
	if !ok {
		return 0, 0, false
	}
	lonNode, ok := FindScalar(c, r.cfg.LonKeys)
	if !ok {
		return 0, 0, false
	}
	lat, ok := latNode.Float()
	if !ok {
		return 0, 0, false
	}
	lon, ok := lonNode.Float()
	if !ok || !geospatial.ValidCoordinate(lat, lon) {
		return 0, 0, false
	}
	return lat, lon, true
}
