// Package sidecar finds cover images stored next to an audio file, such as
// cover.jpg or "<track>.jpg" in the same directory.
//
// Candidate URLs are grouped by stem and probed with HEAD requests, ranged
// GETs or a full decode, depending on the validation mode. Verdicts are kept
// in a session store twice, once per probe method and once per overall mode,
// so repeated lookups for the same folder cost nothing.
package sidecar
