package geometry

import "strings"

// EasingFunc maps [0, 1] onto [0, 1].
type EasingFunc func(t float64) float64

// Linear easing.
func Linear(t float64) float64 { return Clamp01(t) }

// EaseIn accelerates from zero velocity.
func EaseIn(t float64) float64 {
	t = Clamp01(t)
	return t * t
}

// EaseOut decelerates to zero velocity.
func EaseOut(t float64) float64 {
	t = Clamp01(t)
	return t * (2 - t)
}

// EaseInOut accelerates until halfway, then decelerates.
func EaseInOut(t float64) float64 {
	t = Clamp01(t)
	if t < 0.5 {
		return 2 * t * t
	}
	return -1 + (4-2*t)*t
}

var easings = map[string]EasingFunc{
	"linear":    Linear,
	"easein":    EaseIn,
	"easeout":   EaseOut,
	"easeinout": EaseInOut,
}

// Easing looks an easing up by name ("linear", "easeIn", "ease-out",
// "ease_in_out", ...). Unknown names fall back to Linear.
func Easing(name string) EasingFunc {
	key := strings.ToLower(name)
	key = strings.NewReplacer("-", "", "_", "", " ", "").Replace(key)
	if fn, ok := easings[key]; ok {
		return fn
	}
	return Linear
}
