// Package orient bakes EXIF orientation into pixels so stored files display
// upright everywhere, using only transforms that cannot degrade the image.
package orient
