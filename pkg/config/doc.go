// Package config loads application configuration from environment variables.
//
// All variables share the GATEHOUSE_ prefix. Every setting has a sane
// default except the token signing secret, which must be provided.
package config
