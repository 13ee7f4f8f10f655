package config

import "strings"

// StorageConfig controls how internal object references are turned into public URLs.
type StorageConfig struct {
	// InternalScheme is the URI scheme workers use for objects in the bucket store.
	InternalScheme string `env:"STORAGE_INTERNAL_SCHEME" envDefault:"store"`

	// PublicBaseURL is prefixed to "<bucket>/<key>" to build a public URL.
	PublicBaseURL string `env:"STORAGE_PUBLIC_BASE_URL" envDefault:"http://localhost:9000"`
}

// Sanitize applies guardrails to storage configuration values.
func (s *StorageConfig) Sanitize() {
	s.InternalScheme = strings.ToLower(strings.TrimSuffix(strings.TrimSpace(s.InternalScheme), "://"))
	if s.InternalScheme == "" {
		s.InternalScheme = "store"
	}
	s.PublicBaseURL = strings.TrimRight(strings.TrimSpace(s.PublicBaseURL), "/")
}
