package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/pauljones0/smart-shopper/internal/models"
)

const configPathEnv = "SMART_SHOPPER_CONFIG"

const (
	RendererColly      = "colly"
	RendererHTTP       = "http"
	RendererChromedp   = "chromedp"
	RendererPlaywright = "playwright"

	ClassifierHTTP   = "http"
	ClassifierGemini = "gemini"

	CacheNone      = "none"
	CacheSQLite    = "sqlite"
	CacheFirestore = "firestore"
)

type Config struct {
	Port        string
	FrontendURL string
	DocsSpecDir string

	SearchServiceURL   string
	AnalysisServiceURL string
	Sources            []models.Source
	SearchBatchSize    int
	EnrichChunkSize    int
	RequestTimeout     time.Duration

	Renderer            string
	ScrapeRatePerSecond float64
	SelectorsConfigPath string
	AllowedDomains      []string

	Classifier   string
	GeminiAPIKey string
	GeminiModel  string

	CacheBackend      string
	CacheDBPath       string
	CacheTTL          time.Duration
	ProjectID         string
	MaxCachedVerdicts int

	DiscordWebhookURL string

	DefaultSort        models.SortMode
	MaxSessions        int
	SessionIdleTimeout time.Duration

	LogLevel  string
	LogFormat string
}

// source resolves a key from the environment first, then the optional YAML file.
type source struct {
	file map[string]string
}

func (s source) get(key string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return s.file[strings.ToLower(key)]
}

func (s source) str(key, def string) string {
	if v := s.get(key); v != "" {
		return v
	}
	return def
}

func (s source) integer(key string, def int) (int, error) {
	v := s.get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be positive", key, v)
	}
	return n, nil
}

func (s source) duration(key string, def time.Duration) (time.Duration, error) {
	v := s.get(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}

func (s source) oneOf(key, def string, allowed ...string) (string, error) {
	v := strings.ToLower(strings.TrimSpace(s.str(key, def)))
	for _, a := range allowed {
		if v == a {
			return v, nil
		}
	}
	return "", fmt.Errorf("invalid %s %q: expected one of %s", key, v, strings.Join(allowed, ", "))
}

// Load reads an optional .env file and an optional YAML file named by
// SMART_SHOPPER_CONFIG, then applies environment overrides.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Failed to read .env file", "error", err)
	}

	src := source{file: map[string]string{}}
	if path := os.Getenv(configPathEnv); path != "" {
		file, err := readFile(path)
		if err != nil {
			return nil, err
		}
		src.file = file
	}

	cfg := &Config{
		Port:                src.str("PORT", "5000"),
		FrontendURL:         src.str("FRONTEND_URL", "http://localhost:3000"),
		DocsSpecDir:         src.str("DOCS_SPEC_DIR", "."),
		SearchServiceURL:    strings.TrimRight(src.get("SEARCH_SERVICE_URL"), "/"),
		SelectorsConfigPath: src.str("SELECTORS_CONFIG_PATH", "config/selectors.json"),
		GeminiAPIKey:        src.get("GEMINI_API_KEY"),
		GeminiModel:         src.str("GEMINI_MODEL", "gemini-2.0-flash"),
		CacheDBPath:         src.str("CACHE_DB_PATH", "./verdicts.db"),
		ProjectID:           src.get("GOOGLE_CLOUD_PROJECT"),
		DiscordWebhookURL:   src.get("DISCORD_WEBHOOK_URL"),
		LogLevel:            src.str("LOG_LEVEL", "info"),
		AllowedDomains: []string{
			"flipkart.com", "www.flipkart.com",
			"amazon.in", "www.amazon.in",
		},
	}

	cfg.AnalysisServiceURL = strings.TrimRight(src.str("ANALYSIS_SERVICE_URL", cfg.SearchServiceURL), "/")
	if cfg.AnalysisServiceURL == "" {
		cfg.AnalysisServiceURL = "http://localhost:8000"
	}

	var err error
	if cfg.Sources, err = parseSources(src.str("SOURCES", "flipkart,amazon")); err != nil {
		return nil, err
	}
	if cfg.SearchBatchSize, err = src.integer("SEARCH_BATCH_SIZE", 10); err != nil {
		return nil, err
	}
	if cfg.EnrichChunkSize, err = src.integer("ENRICH_CHUNK_SIZE", 4); err != nil {
		return nil, err
	}
	if cfg.MaxCachedVerdicts, err = src.integer("MAX_CACHED_VERDICTS", 2000); err != nil {
		return nil, err
	}
	if cfg.MaxSessions, err = src.integer("MAX_SESSIONS", 1000); err != nil {
		return nil, err
	}
	if cfg.RequestTimeout, err = src.duration("REQUEST_TIMEOUT", 100*time.Second); err != nil {
		return nil, err
	}
	if cfg.CacheTTL, err = src.duration("CACHE_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.SessionIdleTimeout, err = src.duration("SESSION_IDLE_TIMEOUT", 30*time.Minute); err != nil {
		return nil, err
	}

	rateStr := src.str("SCRAPE_RATE_PER_SECOND", "2")
	cfg.ScrapeRatePerSecond, err = strconv.ParseFloat(rateStr, 64)
	if err != nil || cfg.ScrapeRatePerSecond <= 0 {
		return nil, fmt.Errorf("invalid SCRAPE_RATE_PER_SECOND %q", rateStr)
	}

	if cfg.Renderer, err = src.oneOf("RENDERER", RendererColly, RendererColly, RendererHTTP, RendererChromedp, RendererPlaywright); err != nil {
		return nil, err
	}
	if cfg.Classifier, err = src.oneOf("CLASSIFIER", ClassifierHTTP, ClassifierHTTP, ClassifierGemini); err != nil {
		return nil, err
	}
	if cfg.CacheBackend, err = src.oneOf("CACHE_BACKEND", CacheNone, CacheNone, CacheSQLite, CacheFirestore); err != nil {
		return nil, err
	}
	if cfg.LogFormat, err = src.oneOf("LOG_FORMAT", "auto", "auto", "text", "json"); err != nil {
		return nil, err
	}
	if cfg.DefaultSort, err = models.ParseSortMode(src.str("DEFAULT_SORT", string(models.SortRelevance))); err != nil {
		return nil, fmt.Errorf("invalid DEFAULT_SORT: %w", err)
	}

	if cfg.Classifier == ClassifierGemini && cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required when CLASSIFIER=gemini")
	}
	if cfg.CacheBackend == CacheFirestore && cfg.ProjectID == "" {
		return nil, fmt.Errorf("GOOGLE_CLOUD_PROJECT is required when CACHE_BACKEND=firestore")
	}
	if cfg.DiscordWebhookURL == "" {
		slog.Info("DISCORD_WEBHOOK_URL not set, recommendation notifications disabled")
	}

	return cfg, nil
}

func readFile(path string) (map[string]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	out := make(map[string]string, len(doc))
	for k, v := range doc {
		key := strings.ToLower(k)
		switch val := v.(type) {
		case nil:
		case []any:
			parts := make([]string, 0, len(val))
			for _, item := range val {
				parts = append(parts, fmt.Sprint(item))
			}
			out[key] = strings.Join(parts, ",")
		default:
			out[key] = fmt.Sprint(val)
		}
	}
	return out, nil
}

func parseSources(list string) ([]models.Source, error) {
	var sources []models.Source
	seen := make(map[models.Source]bool)
	for _, name := range strings.Split(list, ",") {
		if strings.TrimSpace(name) == "" {
			continue
		}
		src, err := models.ParseSource(name)
		if err != nil {
			return nil, fmt.Errorf("invalid SOURCES: %w", err)
		}
		if seen[src] {
			continue
		}
		seen[src] = true
		sources = append(sources, src)
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("SOURCES must name at least one source")
	}
	return sources, nil
}
