// Package middleware provides HTTP request logging and metrics wrappers.
package middleware
