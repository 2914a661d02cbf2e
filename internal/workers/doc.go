// Package workers sizes worker pools from available CPUs and environment
// overrides.
package workers
