package config

import (
	"fmt"
	"io"
)

// Features reports which optional integrations are configured
type Features struct {
	NetdocsAccess   bool
	ArtifactRemoval bool
}

// Features derives the integration flags. Missing variables only disable a
// feature.
func (c *Config) Features() Features {
	return Features{
		NetdocsAccess:   c.MattersDB != "" && c.NDAPIKey != "" && c.NDHelperURL != "",
		ArtifactRemoval: c.ArtifactAPIToken != "" && c.ArtifactURL != "",
	}
}

// WriteBanner prints the enabled integrations and the DOCX converter
func (c *Config) WriteBanner(w io.Writer) error {
	f := c.Features()
	lines := []string{"Tools available to agent..."}
	if f.NetdocsAccess {
		lines = append(lines, "\tNetdocs access")
	}
	if f.ArtifactRemoval {
		lines = append(lines, "\tPDF artifact removal")
	}
	lines = append(lines, "\tDOCX converter: "+string(c.Converter()))
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
