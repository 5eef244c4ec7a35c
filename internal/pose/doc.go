// Package pose holds the landmark data model and the geometry primitives
// that exercise rules are built from.
//
// Coordinates are normalized fractions of the frame, angles are degrees.
// Nothing in this package keeps state between frames.
package pose
