// Package imaging decodes, resizes and analyses raster images for the
// image and document activities.
//
// JPEG, PNG, GIF, WebP, BMP and TIFF decode natively. Anything else (PSD,
// SVG, HEIC and friends) is rasterized to PNG through ImageMagick first.
package imaging
