package indexer

import (
	"path/filepath"

	"github.com/dshills/docindex/internal/config"
	"github.com/dshills/docindex/internal/converter"
)

// ConfigFrom builds a run configuration from loaded settings. A relative
// superdoc script is resolved against the root.
func ConfigFrom(c *config.Config) (*Config, error) {
	policy, err := ParsePolicy(c.Policy)
	if err != nil {
		return nil, err
	}
	cfg := &Config{
		Root:           c.Root,
		Workers:        c.Workers,
		DocxConverter:  c.Converter(),
		Exclude:        append([]string(nil), c.Exclude...),
		Policy:         policy,
		KeepUnreadable: c.KeepUnreadable,
	}
	if len(c.MarkitdownCommand) > 0 {
		cfg.Markdown = converter.NewMarkitdown(c.MarkitdownCommand)
	}
	if c.SuperdocScript != "" {
		script := c.SuperdocScript
		if !filepath.IsAbs(script) {
			script = filepath.Join(c.Root, script)
		}
		cfg.Structured = converter.NewSuperdoc(script)
	}
	return cfg, nil
}
