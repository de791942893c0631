package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakhadib/CRIMENET-Global-Crime-Intelligence-Engine/internal/config"
)

const sampleConfig = `
logic:
  timeout_sec: 15
  threshold: 0.8
model:
  path: model/nb.json
sources:
  - name: dw
    base_url: https://www.dw.com
    listing_urls: [https://www.dw.com/en]
    domains: [dw.com]
    selector_mode: union
    min_title_len: 10
    allow_patterns: ['/en/', '/a-']
    deny_patterns: ['/service/']
  - name: yahoo
    feed:
      url: https://news.yahoo.com/rss/
    dedupe_titles: false
`

func TestParse_AppliesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.Parse([]byte(sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, 15, cfg.Logic.TimeoutSec)
	assert.InDelta(t, 0.8, cfg.Logic.Threshold, 1e-9)
	assert.Equal(t, 1, cfg.Logic.MaxConcurrentSources)
	assert.Equal(t, config.DefaultUserAgent, cfg.Logic.UserAgent)
	assert.Equal(t, config.DefaultOutputPath, cfg.Output.Path)
	assert.Equal(t, "model/nb.json", cfg.Model.Path)
	assert.False(t, cfg.DB.Enabled())

	require.Len(t, cfg.Sources, 2)
	dw := cfg.Sources[0]
	assert.Equal(t, "dw", dw.Name)
	assert.Equal(t, config.SelectorModeUnion, dw.SelectorMode)
	assert.Equal(t, 10, dw.MinTitleLen)
	assert.Equal(t, config.DefaultMaxTitleLen, dw.MaxTitleLen)
	assert.Equal(t, config.DefaultAncestorDepth, dw.AncestorDepth)
	assert.Equal(t, config.DefaultBoilerplate, dw.Boilerplate)
	assert.True(t, dw.DedupeTitlesEnabled())
	assert.True(t, dw.HasMarkup())
	assert.False(t, dw.HasFeed())

	yahoo := cfg.Sources[1]
	assert.True(t, yahoo.HasFeed())
	assert.False(t, yahoo.DedupeTitlesEnabled())
	assert.Equal(t, config.SelectorModeFirst, yahoo.SelectorMode)
}

func TestParse_DefaultThreshold(t *testing.T) {
	t.Parallel()

	cfg, err := config.Parse([]byte("sources: []\n"))
	require.NoError(t, err)
	assert.InDelta(t, config.DefaultThreshold, cfg.Logic.Threshold, 1e-9)
	assert.Equal(t, config.DefaultTimeoutSec, cfg.Logic.TimeoutSec)
}

func TestValidate_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		yaml string
	}{
		{"threshold out of range", "logic: {threshold: 1.5}\n"},
		{"missing name", "sources: [{feed: {url: 'https://a.com/rss'}}]\n"},
		{"duplicate name", "sources: [{name: a, feed: {url: 'https://a.com/rss'}}, {name: a, feed: {url: 'https://b.com/rss'}}]\n"},
		{"no listing or feed", "sources: [{name: a}]\n"},
		{"relative base url", "sources: [{name: a, base_url: '/x', listing_urls: ['https://a.com']}]\n"},
		{"bad selector mode", "sources: [{name: a, base_url: 'https://a.com', listing_urls: ['https://a.com'], selector_mode: all}]\n"},
		{"bad pattern", "sources: [{name: a, base_url: 'https://a.com', listing_urls: ['https://a.com'], allow_patterns: ['(']}]\n"},
		{"min above max", "sources: [{name: a, feed: {url: 'https://a.com/rss'}, min_title_len: 50, max_title_len: 20}]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := config.Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig_File(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o644))

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	src, ok := cfg.Source("yahoo")
	require.True(t, ok)
	assert.Equal(t, "https://news.yahoo.com/rss/", src.Feed.URL)

	_, ok = cfg.Source("missing")
	assert.False(t, ok)

	_, err = config.LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadConfig_ExampleFile(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig(filepath.Join("..", "..", "config.example.yaml"))
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.Sources)
}

func TestSetDefaults_DomainsFromBaseURL(t *testing.T) {
	t.Parallel()

	cfg, err := config.Parse([]byte(`
sources:
  - name: voa
    base_url: https://www.voanews.com
    listing_urls: [https://www.voanews.com]
  - name: dw
    base_url: https://www.dw.com
    listing_urls: [https://www.dw.com/en]
    domains: [dw.com, dw.de]
  - name: googlenews
    feed:
      url: https://news.google.com/rss
`))
	require.NoError(t, err)

	assert.Equal(t, []string{"www.voanews.com"}, cfg.Sources[0].Domains)
	assert.Equal(t, []string{"dw.com", "dw.de"}, cfg.Sources[1].Domains)
	assert.Empty(t, cfg.Sources[2].Domains)
}

const categoryConfig = `
sources:
  - name: dw
    base_url: https://www.dw.com
    listing_urls: [https://www.dw.com/en]
    feed:
      url: https://rss.dw.com/rdf/rss-en-all
    categories:
      crime: https://www.dw.com/en/crime/t-1
      africa: https://www.dw.com/en/africa/s-1
  - name: voa
    base_url: https://www.voanews.com
    listing_urls: [https://www.voanews.com]
    categories:
      crime: https://www.voanews.com/z/crime
    disabled: true
  - name: apnews
    base_url: https://apnews.com
    listing_urls: [https://apnews.com]
`

func TestConfig_ForCategory(t *testing.T) {
	t.Parallel()

	cfg, err := config.Parse([]byte(categoryConfig))
	require.NoError(t, err)
	assert.Equal(t, []string{"africa", "crime"}, cfg.Sources[0].CategoryNames())

	scoped, err := cfg.ForCategory("crime")
	require.NoError(t, err)
	require.Len(t, scoped.Sources, 1)
	dw := scoped.Sources[0]
	assert.Equal(t, "crime", dw.Category)
	assert.Equal(t, []string{"https://www.dw.com/en/crime/t-1"}, dw.ListingURLs)
	assert.False(t, dw.HasFeed())

	assert.Len(t, cfg.Sources, 3, "the original configuration is untouched")
	assert.Equal(t, []string{"https://www.dw.com/en"}, cfg.Sources[0].ListingURLs)
	assert.Empty(t, cfg.Sources[0].Category)

	_, err = cfg.ForCategory("sport")
	assert.ErrorContains(t, err, `category "sport"`)
}

func TestValidate_BadCategoryURL(t *testing.T) {
	t.Parallel()

	_, err := config.Parse([]byte(`
sources:
  - name: dw
    base_url: https://www.dw.com
    listing_urls: [https://www.dw.com/en]
    categories: {crime: /en/crime}
`))
	assert.ErrorContains(t, err, "category crime")
}
