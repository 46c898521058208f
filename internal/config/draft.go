package config

import "time"

// DraftConfig tunes autosaved drafts.
type DraftConfig struct {
	Debounce      time.Duration // idle delay before an autosave is written
	TTL           time.Duration // drafts untouched for longer are purged
	PurgeInterval time.Duration // 0 disables the janitor
}

func LoadDraftConfig() DraftConfig {
	return DraftConfig{
		Debounce:      envDur("DRAFT_DEBOUNCE", 500*time.Millisecond),
		TTL:           envDur("DRAFT_TTL", 30*24*time.Hour),
		PurgeInterval: envDur("DRAFT_PURGE_INTERVAL", time.Hour),
	}
}
