package credentials

import (
	"strings"
	"time"
)

// Credentials is the content of credentials.toml: one stored key per
// language-model or embedding provider, keyed by provider name.
type Credentials struct {
	Version   int                    `toml:"version"`
	Providers map[string]ProviderKey `toml:"providers"`
}

// ProviderKey is a stored API key and when `insurag auth` saved it.
// Files written before SavedAt existed decode with a zero time.
type ProviderKey struct {
	APIKey  string    `toml:"api_key"`
	SavedAt time.Time `toml:"saved_at,omitempty"`
}

// Masked renders the key for listings: the vendor prefix up to the first
// dash and the last four characters, e.g. "sk-…a1b2".
func (k ProviderKey) Masked() string {
	key := k.APIKey
	if len(key) <= 8 {
		return strings.Repeat("•", len(key))
	}

	prefix := ""
	if i := strings.IndexByte(key, '-'); i >= 0 && i < 8 {
		prefix = key[:i+1]
	}
	return prefix + "…" + key[len(key)-4:]
}
