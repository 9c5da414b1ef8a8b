// Package config provides configuration structures and utilities for sitecrawl.
// It defines the crawl budget, politeness, output and archive settings, and
// the per-site overrides read from the .sitecrawl YAML file.
package config
