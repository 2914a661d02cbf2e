// Package config loads service configuration and defines the library context
// value threaded through every component.
package config
