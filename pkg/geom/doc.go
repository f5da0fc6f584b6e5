// Package geom holds the transform math used to place notes in a tracked
// environment.
//
// Every function is total: zero-length vectors, anti-parallel normals and
// NaN-contaminated matrices produce a well-defined identity-like result
// instead of propagating NaN. Callers never receive an error for a
// degenerate geometry input.
//
// Conventions:
//
//   - +Y is up.
//   - A note's visible face points along its local +Z; a camera looks along
//     its local -Z, so a note facing the camera has +Z pointing at it.
//   - Matrices are column-major (mgl64), translation lives in column 3.
package geom
