// Package config handles YAML configuration loading with environment variable substitution.
//
// Configuration files support ${VAR} syntax for environment variable
// interpolation, useful for keeping API keys out of checked-in configs.
// See configs/bookfeed.example.yaml for the full schema.
package config
