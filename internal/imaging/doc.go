// Package imaging provides the raster side of text synthesis: background
// canvases, color parsing, glyph warping and compositing, preview outlines
// and atomic image persistence.
//
// All operations work with standard Go image.Image types and use a
// coordinate system where (0,0) is at the top-left corner, X increases
// rightward, and Y increases downward.
//
// # Backgrounds
//
// Backgrounds loads a directory of PNG, JPEG or BMP files and hands out a
// randomly chosen one, cropped and resized to the canvas. With an empty
// directory it falls back to a solid color or to random noise.
//
// # Warping
//
// Warp maps a rendered glyph onto the quadrilateral computed by the
// placement engine. The layer it returns covers exactly the annotated
// bounding box, so pixels and annotations always agree.
//
// # Persistence
//
// WriteImage, WriteFileAtomic, CopyFile and MoveFile never leave a half
// written file at the final path: data goes to a temporary file in the
// target directory which is then renamed into place.
//
// # Thread Safety
//
// The ImageCache and Backgrounds types are safe for concurrent use once
// loaded. Warp, Composite and Preview never modify their inputs.
package imaging
