// Package config provides YAML configuration loading and validation.
// Secrets (recognition API key, analysis token) and the interview identifier
// can be overridden from the environment.
package config
