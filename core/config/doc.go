// Package config loads the application configuration from environment
// variables and an optional .env file, with defaults taken from struct tags.
package config
