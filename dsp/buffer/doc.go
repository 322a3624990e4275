// Package buffer provides a reusable sample buffer wrapper with helpers
// for circular-buffer maintenance in the render path.
package buffer
