// Package download orchestrates the job lifecycle: planning extraction
// attempts, driving them with retry and fallback, and normalizing the
// downloaded artifact.
package download
