// Package config loads application configuration from GATEKEEPER_*
// environment variables and validates it at startup.
package config
