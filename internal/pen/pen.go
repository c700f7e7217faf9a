// Package pen defines the pen sample value type produced by input sources.
package pen

// Stylus button bits as they appear in Sample.Buttons.
const (
	ButtonTip    uint8 = 1 << 0
	ButtonLower  uint8 = 1 << 1 // lower barrel switch
	ButtonUpper  uint8 = 1 << 2 // upper barrel switch
	ButtonEraser uint8 = 1 << 3
)

// Sample is one observation from an input surface: normalized position,
// raw pressure and the stylus button bitfield. Samples are immutable
// values; a source produces them and the steering mapper consumes them.
type Sample struct {
	// X is the horizontal position, normalized to [-1, 1].
	X float32 `json:"x"`

	// Y is the vertical position, normalized to [-1, 1].
	Y float32 `json:"y"`

	// Pressure is the raw pen pressure in device units.
	Pressure uint32 `json:"pressure"`

	// Buttons is the stylus button bitfield.
	Buttons uint8 `json:"buttons"`
}

// Clamped returns a copy with X and Y forced into [-1, 1]. Tablets can
// report slight overshoot past the advertised axis range; positions are
// clamped rather than rejected.
func (s Sample) Clamped() Sample {
	s.X = clamp(s.X)
	s.Y = clamp(s.Y)
	return s
}

func clamp(v float32) float32 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}
