package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	// SaveDebounceMs is the quiet period before a changed document is written.
	SaveDebounceMs int `json:"save_debounce_ms"`

	// ContentDebounceMs is the per-tab quiet period before an editor content change
	// is folded into the document tree.
	ContentDebounceMs int `json:"content_debounce_ms"`

	// RecentFilesMax caps the recent-files list.
	RecentFilesMax int `json:"recent_files_max"`

	// DefaultSidebarWidth and DefaultTheme seed the settings of newly created documents.
	DefaultSidebarWidth int    `json:"default_sidebar_width"`
	DefaultTheme        string `json:"default_theme"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level"`

	// LogFormat is "console" or "json". Logs always go to stderr.
	LogFormat string `json:"log_format"`

	// AllowedPaths is an allowlist of directories for markdown export.
	// Paths outside ~/.jb/exports require either being in this list or AllowUnsafePaths=true.
	// Paths should be absolute (relative paths are ignored).
	AllowedPaths []string `json:"allowed_paths,omitempty"`

	// AllowUnsafePaths disables directory restrictions for export.
	// Symlink and extension checks still apply.
	AllowUnsafePaths bool `json:"allow_unsafe_paths,omitempty"`

	// DisableFrontmatter omits the YAML header from exported markdown.
	DisableFrontmatter bool `json:"disable_frontmatter,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use sql.DB default.
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	DisabledTools []string `json:"disabled_tools,omitempty"`

	// DisabledTypes is a list of tool type prefixes to disable entirely
	// (e.g. "recent" disables recent_list, recent_remove and recent_clear).
	DisabledTypes []string `json:"disabled_types,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		SaveDebounceMs:      1000,
		ContentDebounceMs:   500,
		RecentFilesMax:      10,
		DefaultSidebarWidth: 300,
		DefaultTheme:        "light",
		LogLevel:            "info",
		LogFormat:           "console",
	}
}

// SaveDebounce returns the save debounce as a duration.
func (c *Config) SaveDebounce() time.Duration {
	return time.Duration(c.SaveDebounceMs) * time.Millisecond
}

// ContentDebounce returns the per-tab content debounce as a duration.
func (c *Config) ContentDebounce() time.Duration {
	return time.Duration(c.ContentDebounceMs) * time.Millisecond
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.jb.
func Load(baseDir string) (*Config, error) {
	return loadFile(filepath.Join(baseDir, "config.json"))
}

// LoadWithRepo loads configuration from both global (~/.jb) and repo (.jb) directories.
// Repo config is found by walking upward from startDir to find the nearest .jb/config.json.
// Repo config takes precedence for scalar values; arrays are merged (deduplicated).
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}

	repo, err := loadFileRaw(FindRepoConfig(startDir))
	if err != nil {
		return nil, err
	}

	return Merge(Merge(DefaultConfig(), global), repo), nil
}

// FindRepoConfig walks upward from startDir to find the nearest .jb/config.json.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	dir := startDir
	for {
		configPath := filepath.Join(dir, ".jb", "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// loadFileRaw returns a zero-valued config (not defaults) if the file doesn't exist.
func loadFileRaw(configPath string) (*Config, error) {
	if configPath == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{
		SaveDebounceMs:      firstInt(overlay.SaveDebounceMs, base.SaveDebounceMs),
		ContentDebounceMs:   firstInt(overlay.ContentDebounceMs, base.ContentDebounceMs),
		RecentFilesMax:      firstInt(overlay.RecentFilesMax, base.RecentFilesMax),
		DefaultSidebarWidth: firstInt(overlay.DefaultSidebarWidth, base.DefaultSidebarWidth),
		DefaultTheme:        firstString(overlay.DefaultTheme, base.DefaultTheme),
		LogLevel:            firstString(overlay.LogLevel, base.LogLevel),
		LogFormat:           firstString(overlay.LogFormat, base.LogFormat),
		DBMaxOpenConns:      firstInt(overlay.DBMaxOpenConns, base.DBMaxOpenConns),
		DBMaxIdleConns:      firstInt(overlay.DBMaxIdleConns, base.DBMaxIdleConns),
	}

	// Booleans: overlay wins if true, else base
	result.AllowUnsafePaths = base.AllowUnsafePaths || overlay.AllowUnsafePaths
	result.DisableFrontmatter = base.DisableFrontmatter || overlay.DisableFrontmatter

	result.AllowedPaths = mergeStringSlice(base.AllowedPaths, overlay.AllowedPaths)
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)
	result.DisabledTypes = mergeStringSlice(base.DisabledTypes, overlay.DisabledTypes)

	return result
}

func firstInt(overlay, base int) int {
	if overlay != 0 {
		return overlay
	}
	return base
}

func firstString(overlay, base string) string {
	if strings.TrimSpace(overlay) != "" {
		return overlay
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string{}, a...), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
