// Package resultstore implements the single-slot durable holder for the
// most recent analysis outcome. Every backend keeps at most one value under
// the logical key "latestAnalysis" and replaces it wholesale on each write.
// A stored payload that no longer decodes is logged and reported as absence
// rather than as a parse error.
package resultstore

// storageKey is the logical key the surrounding application knows the
// current analysis under.
const storageKey = "latestAnalysis"
