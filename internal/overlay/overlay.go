// Package overlay assembles the camera-overlay scene broadcast every
// video-frame tick. The actual drawing primitives (text layout, rasterized
// outlines) belong to the renderer outside this module (spec §1); this
// package only accumulates the rectangle list the Controller hands off.
package overlay

import "github.com/tucoflyer/flyer-controller/internal/message"

// DrawingContext accumulates OverlayRects for one frame.
type DrawingContext struct {
	scene []message.OverlayRect
}

// NewDrawingContext returns an empty context.
func NewDrawingContext() *DrawingContext {
	return &DrawingContext{}
}

// Clear discards any accumulated primitives, starting a new frame.
func (d *DrawingContext) Clear() {
	d.scene = d.scene[:0]
}

// Add appends one primitive to the current frame.
func (d *DrawingContext) Add(r message.OverlayRect) {
	d.scene = append(d.scene, r)
}

// Drain returns the accumulated scene and clears the context, mirroring the
// source's `self.draw.scene.drain(..).collect()`.
func (d *DrawingContext) Drain() []message.OverlayRect {
	out := d.scene
	d.scene = nil
	return out
}
