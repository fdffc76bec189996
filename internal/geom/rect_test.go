package geom

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestRect(t *testing.T) {
	Convey("Given two overlapping rects", t, func() {
		a := Rect{0, 0, 10, 10}
		b := Rect{5, 5, 10, 10}

		Convey("Intersect returns their overlap", func() {
			got := Intersect(a, b)
			So(got, ShouldResemble, Rect{5, 5, 5, 5})
		})

		Convey("Constrain keeps a rect inside its bound", func() {
			bound := Rect{0, 0, 8, 8}
			got := Constrain(Rect{6, 6, 4, 4}, bound)
			So(got.X()+got.W(), ShouldBeLessThanOrEqualTo, bound.X()+bound.W())
			So(got.Y()+got.H(), ShouldBeLessThanOrEqualTo, bound.Y()+bound.H())
		})
	})

	Convey("Given two disjoint rects", t, func() {
		a := Rect{0, 0, 1, 1}
		b := Rect{5, 5, 1, 1}

		Convey("Intersect returns a zero-area rect", func() {
			got := Intersect(a, b)
			So(got.IsEmpty(), ShouldBeTrue)
		})
	})

	Convey("Lerp moves toward target by param", t, func() {
		got := Lerp(0, 10, 0.5)
		So(got, ShouldEqual, 5)
	})
}
