// Package config loads and saves the nanrtt configuration file.
//
// The file is YAML and lives in the platform configuration directory:
//   - Linux: $XDG_CONFIG_HOME/nanrtt/config.yaml or $HOME/.config/nanrtt/config.yaml
//   - macOS: $HOME/.config/nanrtt/config.yaml
//   - Windows: %LOCALAPPDATA%\nanrtt\config.yaml
//
// Sections missing from the file take their defaults, so a file holding
// only the version is a subscribing node with ranging enabled:
//
//	version: 1
//	node:
//	  name: walker
//	  service: General
//	  subscribe: true
//	anchors:
//	  anchor-1: {x: 0, y: 0}
//	  anchor-2: {x: 6, y: 0}
//
// Saves go through a temporary file and a rename so a crash never leaves a
// truncated file behind.
package config
