package config

import (
	"errors"
	"fmt"
	"maps"
	"net/url"
	"os"
	"regexp"
	"slices"

	"gopkg.in/yaml.v2"
)

const (
	SelectorModeFirst = "first"
	SelectorModeUnion = "union"

	DefaultThreshold      = 0.75
	DefaultTimeoutSec     = 20
	DefaultUserAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	DefaultMinTitleLen    = 5
	DefaultMaxTitleLen    = 200
	DefaultAncestorDepth  = 3
	MaxAncestorDepth      = 3
	DefaultMinParagraph   = 20
	DefaultMinFullText    = 100
	DefaultMinAuxiliary   = 10
	DefaultOutputPath     = "data/crime_news.csv"
	DefaultModelPath      = "model/crime_nb.json"
	DefaultLogLevel       = "info"
	DefaultLogMaxSizeMB   = 50
	DefaultLogMaxBackups  = 5
	DefaultDBName         = "crimenet"
	DefaultRunsCollection = "runs"
	DefaultHeadlinesColl  = "headlines"
)

var (
	DefaultBoilerplate = []string{"read more", "continue reading", "watch video", "watch live", "listen now"}
	DefaultAuxiliary   = []string{"blockquote", ".quote", ".highlight", "strong", "em"}
)

type FeedConfig struct {
	URL                string `yaml:"url"`
	PreferEmbeddedLink bool   `yaml:"prefer_embedded_link"`
}

type FullTextConfig struct {
	Selectors       []string `yaml:"selectors"`
	SkipPhrases     []string `yaml:"skip_phrases"`
	MinParagraphLen int      `yaml:"min_paragraph_len"`
	MinLength       int      `yaml:"min_length"`
}

type AuxiliaryConfig struct {
	Selectors   []string `yaml:"selectors"`
	SkipPhrases []string `yaml:"skip_phrases"`
	MinLen      int      `yaml:"min_len"`
}

// SourceConfig is the selector and pattern table for one outlet.
type SourceConfig struct {
	Name                 string            `yaml:"name"`
	BaseURL              string            `yaml:"base_url"`
	ListingURLs          []string          `yaml:"listing_urls"`
	Feed                 FeedConfig        `yaml:"feed"`
	Domains              []string          `yaml:"domains"`
	AnchorSelectors      []string          `yaml:"anchor_selectors"`
	SelectorMode         string            `yaml:"selector_mode"`
	TitleSelectors       []string          `yaml:"title_selectors"`
	DescriptionSelectors []string          `yaml:"description_selectors"`
	Boilerplate          []string          `yaml:"boilerplate"`
	AllowPatterns        []string          `yaml:"allow_patterns"`
	DenyPatterns         []string          `yaml:"deny_patterns"`
	MinTitleLen          int               `yaml:"min_title_len"`
	MaxTitleLen          int               `yaml:"max_title_len"`
	DedupeTitles         *bool             `yaml:"dedupe_titles"`
	AncestorDepth        int               `yaml:"ancestor_depth"`
	MaxRecords           int               `yaml:"max_records"`
	RespectRobots        bool              `yaml:"respect_robots"`
	Languages            []string          `yaml:"languages"`
	FullText             FullTextConfig    `yaml:"full_text"`
	Auxiliary            AuxiliaryConfig   `yaml:"auxiliary"`
	Categories           map[string]string `yaml:"categories"`
	Disabled             bool              `yaml:"disabled"`

	// Category is set on copies made by ForCategory.
	Category string `yaml:"-"`
}

func (s *SourceConfig) HasFeed() bool {
	return s.Feed.URL != ""
}

func (s *SourceConfig) HasMarkup() bool {
	return len(s.ListingURLs) > 0
}

// CategoryNames returns the configured category names in sorted order.
func (s *SourceConfig) CategoryNames() []string {
	return slices.Sorted(maps.Keys(s.Categories))
}

// ForCategory returns a copy of s that lists only the page of the named
// category and tags its records with it. The feed is dropped.
func (s SourceConfig) ForCategory(name string) (SourceConfig, bool) {
	page, ok := s.Categories[name]
	if !ok {
		return SourceConfig{}, false
	}
	s.ListingURLs = []string{page}
	s.Feed = FeedConfig{}
	s.Category = name
	return s, true
}

func (s *SourceConfig) DedupeTitlesEnabled() bool {
	return s.DedupeTitles == nil || *s.DedupeTitles
}

type DBConfig struct {
	Connection  string `yaml:"connection"`
	Database    string `yaml:"database"`
	TimeoutSec  int    `yaml:"timeout_sec"`
	Collections struct {
		Runs      string `yaml:"runs"`
		Headlines string `yaml:"headlines"`
	} `yaml:"collections"`
}

func (d DBConfig) Enabled() bool {
	return d.Connection != ""
}

type LogicConfig struct {
	TimeoutSec           int     `yaml:"timeout_sec"`
	UserAgent            string  `yaml:"user_agent"`
	Threshold            float64 `yaml:"threshold"`
	MaxConcurrentSources int     `yaml:"max_concurrent_sources"`
}

type ModelConfig struct {
	Path string `yaml:"path"`
}

type OutputConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

type Config struct {
	Logic   LogicConfig    `yaml:"logic"`
	Model   ModelConfig    `yaml:"model"`
	Output  OutputConfig   `yaml:"output"`
	Log     LogConfig      `yaml:"log"`
	DB      DBConfig       `yaml:"db"`
	Metrics MetricsConfig  `yaml:"metrics"`
	Sources []SourceConfig `yaml:"sources"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults fills zero values. An explicit threshold of 0 is not
// representable; use a tiny positive value instead.
func (c *Config) SetDefaults() {
	if c.Logic.TimeoutSec <= 0 {
		c.Logic.TimeoutSec = DefaultTimeoutSec
	}
	if c.Logic.UserAgent == "" {
		c.Logic.UserAgent = DefaultUserAgent
	}
	if c.Logic.Threshold == 0 {
		c.Logic.Threshold = DefaultThreshold
	}
	if c.Logic.MaxConcurrentSources <= 0 {
		c.Logic.MaxConcurrentSources = 1
	}
	if c.Model.Path == "" {
		c.Model.Path = DefaultModelPath
	}
	if c.Output.Path == "" {
		c.Output.Path = DefaultOutputPath
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.MaxSizeMB <= 0 {
		c.Log.MaxSizeMB = DefaultLogMaxSizeMB
	}
	if c.Log.MaxBackups <= 0 {
		c.Log.MaxBackups = DefaultLogMaxBackups
	}
	if c.DB.Database == "" {
		c.DB.Database = DefaultDBName
	}
	if c.DB.TimeoutSec <= 0 {
		c.DB.TimeoutSec = 10
	}
	if c.DB.Collections.Runs == "" {
		c.DB.Collections.Runs = DefaultRunsCollection
	}
	if c.DB.Collections.Headlines == "" {
		c.DB.Collections.Headlines = DefaultHeadlinesColl
	}
	for i := range c.Sources {
		c.Sources[i].SetDefaults()
	}
}

func (s *SourceConfig) SetDefaults() {
	// Markup links stay on the outlet's own host unless domains says
	// otherwise. Feed-only sources have no base_url and stay unrestricted.
	if len(s.Domains) == 0 && s.BaseURL != "" {
		if u, err := url.Parse(s.BaseURL); err == nil && u.Hostname() != "" {
			s.Domains = []string{u.Hostname()}
		}
	}
	if s.SelectorMode == "" {
		s.SelectorMode = SelectorModeFirst
	}
	if s.MinTitleLen <= 0 {
		s.MinTitleLen = DefaultMinTitleLen
	}
	if s.MaxTitleLen <= 0 {
		s.MaxTitleLen = DefaultMaxTitleLen
	}
	if s.AncestorDepth <= 0 || s.AncestorDepth > MaxAncestorDepth {
		s.AncestorDepth = DefaultAncestorDepth
	}
	if s.Boilerplate == nil {
		s.Boilerplate = DefaultBoilerplate
	}
	if len(s.AnchorSelectors) == 0 {
		s.AnchorSelectors = []string{"a[href]"}
	}
	if s.FullText.MinParagraphLen <= 0 {
		s.FullText.MinParagraphLen = DefaultMinParagraph
	}
	if s.FullText.MinLength <= 0 {
		s.FullText.MinLength = DefaultMinFullText
	}
	if len(s.Auxiliary.Selectors) == 0 {
		s.Auxiliary.Selectors = DefaultAuxiliary
	}
	if s.Auxiliary.MinLen <= 0 {
		s.Auxiliary.MinLen = DefaultMinAuxiliary
	}
}

func (c *Config) Validate() error {
	if c.Logic.Threshold < 0 || c.Logic.Threshold > 1 {
		return fmt.Errorf("logic.threshold %v outside [0,1]", c.Logic.Threshold)
	}
	seen := make(map[string]bool, len(c.Sources))
	var errs []error
	for i := range c.Sources {
		s := &c.Sources[i]
		if s.Name == "" {
			errs = append(errs, fmt.Errorf("sources[%d]: name is required", i))
			continue
		}
		if seen[s.Name] {
			errs = append(errs, fmt.Errorf("source %s: duplicate name", s.Name))
		}
		seen[s.Name] = true
		if err := s.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("source %s: %w", s.Name, err))
		}
	}
	return errors.Join(errs...)
}

func (s *SourceConfig) Validate() error {
	if !s.HasFeed() && !s.HasMarkup() {
		return errors.New("either feed.url or listing_urls is required")
	}
	if s.HasMarkup() || len(s.Categories) > 0 {
		if _, err := parseAbsolute(s.BaseURL); err != nil {
			return fmt.Errorf("base_url: %w", err)
		}
	}
	for _, name := range s.CategoryNames() {
		if name == "" {
			return errors.New("category name is empty")
		}
		if _, err := parseAbsolute(s.Categories[name]); err != nil {
			return fmt.Errorf("category %s: %w", name, err)
		}
	}
	for _, raw := range append(append([]string{}, s.ListingURLs...), s.Feed.URL) {
		if raw == "" {
			continue
		}
		if _, err := parseAbsolute(raw); err != nil {
			return fmt.Errorf("url %q: %w", raw, err)
		}
	}
	if s.SelectorMode != SelectorModeFirst && s.SelectorMode != SelectorModeUnion {
		return fmt.Errorf("selector_mode %q must be %q or %q", s.SelectorMode, SelectorModeFirst, SelectorModeUnion)
	}
	if s.MinTitleLen > s.MaxTitleLen {
		return fmt.Errorf("min_title_len %d greater than max_title_len %d", s.MinTitleLen, s.MaxTitleLen)
	}
	for _, pattern := range append(append([]string{}, s.AllowPatterns...), s.DenyPatterns...) {
		if _, err := regexp.Compile(pattern); err != nil {
			return fmt.Errorf("pattern %q: %w", pattern, err)
		}
	}
	return nil
}

// ForCategory returns a copy of c holding only the enabled sources that
// define the category, each scoped to it.
func (c *Config) ForCategory(name string) (*Config, error) {
	scoped := *c
	scoped.Sources = nil
	for _, s := range c.Sources {
		if s.Disabled {
			continue
		}
		if cs, ok := s.ForCategory(name); ok {
			scoped.Sources = append(scoped.Sources, cs)
		}
	}
	if len(scoped.Sources) == 0 {
		return nil, fmt.Errorf("no enabled source lists category %q", name)
	}
	return &scoped, nil
}

// Source returns the configuration of the named source.
func (c *Config) Source(name string) (*SourceConfig, bool) {
	for i := range c.Sources {
		if c.Sources[i].Name == name {
			return &c.Sources[i], true
		}
	}
	return nil, false
}

func parseAbsolute(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.New("must be an absolute URL")
	}
	return u, nil
}
