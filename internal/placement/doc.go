// Package placement implements the transform and placement engine: it draws
// a random rotation and/or perspective distortion for a rendered glyph and
// finds a translation that keeps the transformed quadrilateral inside the
// canvas.
//
// # Algorithm
//
// Each attempt of the bounded rejection loop in Engine.Place:
//
//  1. Samples an angle from the configured range and, when perspective is
//     enabled, displaces each glyph corner by up to Ratio*min(w, h) pixels.
//     Quadrilaterals that self-intersect are rejected.
//  2. Applies the perspective mapping to the glyph corners, then rotates the
//     result about the glyph center.
//  3. Rejects the sample when its bounding box exceeds the canvas.
//  4. Draws an integer offset uniformly from [0, W-bw] x [0, H-bh] and
//     translates the corners by it. Offsets whose box overlaps an occupied
//     box are rejected.
//  5. Re-derives the bounding box from the translated corners and rejects
//     the attempt unless it matches step 3 exactly.
//
// A glyph larger than the canvas fails at once with ErrGlyphTooLarge. When
// every attempt is rejected the engine returns a *PlacementError wrapping
// ErrBudgetExhausted that reports the budget used.
//
// # Randomness
//
// The engine never touches global random state. Callers pass a *rand.Rand so
// that results are reproducible and workers do not share a stream.
package placement
