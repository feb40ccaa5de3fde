// Package config loads, normalizes, and validates castscribe configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, loads optional .env files, and honours
// environment fallbacks such as OPENAI_API_KEY and CHROMA_HOST. Always obtain
// settings through this package so downstream code receives sanitized paths
// and clear validation errors.
package config
