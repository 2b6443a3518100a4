// Package staging manages the per-request directories that timeline builds
// and video uploads leave under the work directory. Successful requests
// remove their own directories; CleanStale reclaims whatever a crash or an
// abandoned client left behind.
package staging
