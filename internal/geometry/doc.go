// Package geometry provides the pure point-set math used to place and warp
// rendered text: rotation about a pivot, 4-point projective mappings,
// axis-aligned bounding boxes and canvas containment.
//
// # Coordinate System
//
// Points use pixel-center coordinates with the origin at the top-left of the
// canvas, X increasing rightward and Y increasing downward. A raster of
// w x h pixels therefore has its corners at (0,0), (w-1,0), (w-1,h-1) and
// (0,h-1), listed clockwise as seen on screen.
//
// Because Y points down, a positive rotation angle turns points clockwise on
// screen.
//
// # Bounding Boxes
//
// BoundingBox snaps a point set to the pixels it touches: the position is the
// floor of the minimum coordinate and the size counts every pixel up to and
// including the floor of the maximum coordinate. An untransformed w x h
// raster yields a box of exactly w x h.
//
// # Error Handling
//
// Point sets with zero area (coincident or collinear points) cannot be boxed
// or mapped and are reported as *DegenerateGeometryError. Callers must
// propagate it; no substitute geometry is ever produced.
//
// # Thread Safety
//
// Every function is pure and safe for concurrent use.
package geometry
