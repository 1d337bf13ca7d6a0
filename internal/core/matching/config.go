package matching

import "fmt"

// DefaultMatchMeters is the Tier-1 acceptance radius.
const DefaultMatchMeters = 400.0

// Config drives the Scanner and the Resolver. It is built once from the
// loaded configuration and passed in; nothing here reads the environment.
type Config struct {
	MatchMeters float64
	IDKeys      KeySet
	LatKeys     KeySet
	LonKeys     KeySet
	// Wrappers are the response wrapper names tried, in order, when no
	// coordinate-bearing array exists.
	Wrappers []string
}

// DefaultConfig returns the field names observed across gateway versions.
func DefaultConfig() Config {
	return Config{
		MatchMeters: DefaultMatchMeters,
		IDKeys:      NewKeySet("id", "storeid", "store_id", "storenumber", "store_number"),
		LatKeys:     NewKeySet("latitude", "lat"),
		LonKeys:     NewKeySet("longitude", "lon", "lng"),
		Wrappers:    []string{"items", "nodes", "edges"},
	}
}

// Validate rejects configurations the resolver cannot work with.
func (c Config) Validate() error {
	if c.MatchMeters <= 0 {
		return fmt.Errorf("matching: match threshold must be positive, got %v", c.MatchMeters)
	}
	if c.IDKeys.Len() == 0 || c.LatKeys.Len() == 0 || c.LonKeys.Len() == 0 {
		return fmt.Errorf("matching: id, latitude and longitude key sets must not be empty")
	}
	return nil
}
