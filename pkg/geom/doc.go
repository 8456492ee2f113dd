// Package geom holds the vector and local-frame utilities used to derive
// turtle-shell cutting planes. Everything here is pure math on gonum r3/r2
// vectors; nothing depends on a geometry kernel.
package geom
