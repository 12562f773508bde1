// Package config loads the QVeritas daemon configuration from YAML or JSON
// files, fills defaults relative to the file location and applies
// QVERITAS_* environment overrides.
package config
