package core

// Orientation is the EXIF orientation tag (values 1-8).
type Orientation int

const (
	OrientationUndefined Orientation = iota
	OrientationTopLeft
	OrientationTopRight
	OrientationBottomRight
	OrientationBottomLeft
	OrientationLeftTop
	OrientationRightTop
	OrientationRightBottom
	OrientationLeftBottom
)

func (o Orientation) String() string {
	switch o {
	case OrientationTopLeft:
		return "TOP_LEFT"
	case OrientationTopRight:
		return "TOP_RIGHT"
	case OrientationBottomRight:
		return "BOTTOM_RIGHT"
	case OrientationBottomLeft:
		return "BOTTOM_LEFT"
	case OrientationLeftTop:
		return "LEFT_TOP"
	case OrientationRightTop:
		return "RIGHT_TOP"
	case OrientationRightBottom:
		return "RIGHT_BOTTOM"
	case OrientationLeftBottom:
		return "LEFT_BOTTOM"
	}
	return "UNDEFINED"
}

// TransformOp is a single pixel operation used to undo an orientation.
type TransformOp int

const (
	OpFlipHorizontal TransformOp = iota + 1
	OpRotate
)

// Transform is one step of an orientation correction. Degrees is clockwise
// and only meaningful for OpRotate.
type Transform struct {
	Op      TransformOp
	Degrees float64
}

var (
	flip = Transform{Op: OpFlipHorizontal}

	corrections = map[Orientation][]Transform{
		OrientationTopLeft:     nil,
		OrientationTopRight:    {flip},
		OrientationBottomRight: {{Op: OpRotate, Degrees: 180}},
		OrientationBottomLeft:  {flip, {Op: OpRotate, Degrees: 180}},
		OrientationLeftTop:     {flip, {Op: OpRotate, Degrees: -90}},
		OrientationRightTop:    {{Op: OpRotate, Degrees: 90}},
		OrientationRightBottom: {flip, {Op: OpRotate, Degrees: 90}},
		OrientationLeftBottom:  {{Op: OpRotate, Degrees: -90}},
	}
)

// Corrections returns the operations that bring an image tagged with o back
// to TopLeft, in the order they must be applied. Unknown values need none.
func (o Orientation) Corrections() []Transform {
	ops := corrections[o]
	out := make([]Transform, len(ops))
	copy(out, ops)
	return out
}

// Valid reports whether o is one of the eight EXIF orientation states.
func (o Orientation) Valid() bool {
	return o >= OrientationTopLeft && o <= OrientationLeftBottom
}
