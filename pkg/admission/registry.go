package admission

import (
	"fmt"
	"sort"
	"time"
)

// Canonical limit names for the protected resource classes.
const (
	LimitEvidenceScanPerUser = "evidence_scan_per_user"
	LimitOutreachPerUser     = "outreach_per_user"
	LimitKitPerUser          = "kit_per_user"
	LimitURLFetchPerIP       = "url_fetch_per_ip"
	LimitURLFetchPerUser     = "url_fetch_per_user"
	LimitAuthPerIP           = "auth_per_ip"
	LimitJDExtractPerUser    = "jd_extract_per_user"
)

// DefaultLimits returns the standard limit table. Values are overridable
// through server configuration before the registry is built.
func DefaultLimits() map[string]Config {
	return map[string]Config{
		LimitEvidenceScanPerUser: {Limit: 10, Window: 10 * time.Minute},
		LimitOutreachPerUser:     {Limit: 10, Window: 10 * time.Minute},
		LimitKitPerUser:          {Limit: 10, Window: 10 * time.Minute},
		LimitURLFetchPerIP:       {Limit: 20, Window: time.Hour},
		LimitURLFetchPerUser:     {Limit: 10, Window: time.Hour},
		LimitAuthPerIP:           {Limit: 20, Window: 10 * time.Minute},
		LimitJDExtractPerUser:    {Limit: 10, Window: 10 * time.Minute},
	}
}

// Registry holds the named limit configs for every protected resource
// class. It is immutable after construction and safe for concurrent reads.
// Adding a resource class means adding an entry, not changing the engine.
type Registry struct {
	limits map[string]Config
}

// NewRegistry validates every entry and builds an immutable registry.
// An invalid entry makes construction fail so misconfiguration is caught at
// startup rather than deferred into per-request failures.
func NewRegistry(limits map[string]Config) (*Registry, error) {
	reg := &Registry{limits: make(map[string]Config, len(limits))}
	for name, cfg := range limits {
		if name == "" {
			return nil, fmt.Errorf("%w: empty limit name", ErrInvalidConfig)
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("limit %q: %w", name, err)
		}
		reg.limits[name] = cfg
	}
	return reg, nil
}

// Get returns the config registered under name.
func (r *Registry) Get(name string) (Config, error) {
	cfg, exists := r.limits[name]
	if !exists {
		return Config{}, fmt.Errorf("%w: %q", ErrUnknownLimit, name)
	}
	return cfg, nil
}

// MustGet returns the config registered under name, panicking when the name
// is unknown. Intended for wiring code that runs at startup.
func (r *Registry) MustGet(name string) Config {
	cfg, err := r.Get(name)
	if err != nil {
		panic(err)
	}
	return cfg
}

// Names returns the registered limit names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.limits))
	for name := range r.limits {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
