package scraper

import (
	"embed"
	"errors"
	"io/fs"
	"log/slog"
)

//go:embed selectors.json
var embeddedSelectors embed.FS

// LoadConfig resolves selectors in the following order:
// 1. External file at overridePath, when it exists
// 2. Embedded selectors.json
// 3. Hardcoded defaults
func LoadConfig(overridePath string) SelectorConfig {
	if overridePath != "" {
		sel, err := LoadSelectors(overridePath)
		switch {
		case err == nil:
			slog.Info("Loaded selectors from external file", "path", overridePath)
			return sel
		case errors.Is(err, fs.ErrNotExist):
			slog.Debug("No external selector file", "path", overridePath)
		default:
			slog.Warn("Failed to load external selectors, trying embedded config", "path", overridePath, "error", err)
		}
	}

	data, err := embeddedSelectors.ReadFile("selectors.json")
	if err == nil {
		sel, parseErr := LoadSelectorsFromBytes(data)
		if parseErr == nil {
			slog.Debug("Loaded selectors from embedded config")
			return sel
		}
		slog.Warn("Embedded selectors failed to parse", "error", parseErr)
	}

	slog.Info("Using hardcoded default selectors")
	return DefaultSelectors()
}
