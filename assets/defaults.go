package assets

import (
	_ "embed"
)

// DefaultConfigYAML contains the embedded default configuration.
//
//go:embed defaults/config.yaml
var DefaultConfigYAML []byte

// DefaultPolicyYAML contains the embedded default policy rules.
//
//go:embed defaults/policy.yaml
var DefaultPolicyYAML []byte

// DefaultCatalogYAML contains the embedded default command catalog.
//
//go:embed defaults/catalog.yaml
var DefaultCatalogYAML []byte
