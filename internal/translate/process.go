package translate

import (
	"math"
	"strconv"
	"strings"
)

// legacy parameter name -> canonical name
var legacyNames = map[string]Name{
	"imwidth":       Width,
	"width":         Width,
	"w":             Width,
	"resize.width":  Width,
	"imheight":      Height,
	"height":        Height,
	"h":             Height,
	"resize.height": Height,

	"imquality":     Quality,
	"quality":       Quality,
	"q":             Quality,
	"quality.value": Quality,

	"imformat":      Format,
	"format":        Format,
	"f":             Format,
	"output.format": Format,

	"impolicy":   Derivative,
	"policy":     Derivative,
	"derivative": Derivative,

	"imrotate":       Rotate,
	"rotate":         Rotate,
	"rotate.degrees": Rotate,

	"imdensity":      DPR,
	"density":        DPR,
	"dpr":            DPR,
	"output.density": DPR,

	"imcolor":               Background,
	"background":            Background,
	"backgroundcolor.color": Background,

	"imcrop":      Crop,
	"crop":        Crop,
	"imbypass":    Bypass,
	"bypass":      Bypass,
	"fit":         Fit,
	"resize.type": Fit,
	"resize.mode": Fit,

	"gravity":      Gravity,
	"crop.gravity": Gravity,
	"aspect":       Aspect,

	"blur":           Blur,
	"blur.sigma":     Blur,
	"sharpen":        Sharpen,
	"sharpen.amount": Sharpen,
}

// resize modes the backend understands, keyed by legacy spelling
var fitModes = map[string]string{
	"normal":     "contain",
	"fit":        "contain",
	"contain":    "contain",
	"stretch":    "fill",
	"fill":       "fill",
	"cover":      "cover",
	"crop":       "crop",
	"pad":        "pad",
	"scale-down": "scale-down",
}

// options that are meaningless at zero or below
var positiveOnly = map[Name]struct{}{
	Width:   {},
	Height:  {},
	Quality: {},
	DPR:     {},
}

var formatAliases = map[string]string{
	"jpg":  "jpeg",
	"pjpg": "jpeg",
}

const (
	aspectCropWidth  = "aspectcrop.width"
	aspectCropHeight = "aspectcrop.height"
)

// Process folds params into Options. Later parameters overwrite earlier ones
// with the same canonical name. Unknown names and values that do not coerce
// to the canonical kind are ignored.
func Process(params []Param) Options {
	out := Options{}
	var aw, ah float64
	for _, p := range params {
		switch p.Name {
		case aspectCropWidth, aspectCropHeight:
			n, ok := p.Value.Float()
			if !ok || n <= 0 || math.IsInf(n, 0) {
				continue
			}
			if p.Name == aspectCropWidth {
				aw = n
			} else {
				ah = n
			}
			if aw > 0 && ah > 0 {
				out[Aspect] = String(formatNumber(aw) + ":" + formatNumber(ah))
			}
			continue
		}

		name, ok := legacyNames[p.Name]
		if !ok {
			continue
		}
		v, ok := coerce(name, p.Value)
		if !ok {
			continue
		}
		out[name] = v
	}
	return out
}

// coerce converts v to the kind expected for n and applies per-option value
// normalisation.
func coerce(n Name, v Value) (Value, bool) {
	switch n.Kind() {
	case KindNumber:
		f, ok := v.Float()
		if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
			return Value{}, false
		}
		if _, sized := positiveOnly[n]; sized && f <= 0 {
			return Value{}, false
		}
		return Number(f), true
	case KindBool:
		switch v.Kind() {
		case KindBool:
			return Bool(v.b), true
		case KindNumber:
			return Bool(v.n != 0), true
		}
		switch strings.ToLower(strings.TrimSpace(v.s)) {
		case "true", "1", "yes", "on":
			return Bool(true), true
		case "false", "0", "no", "off":
			return Bool(false), true
		}
		return Value{}, false
	default:
		s := strings.TrimSpace(v.String())
		if s == "" {
			return Value{}, false
		}
		switch n {
		case Fit:
			m, ok := fitModes[strings.ToLower(s)]
			if !ok {
				return Value{}, false
			}
			s = m
		case Format, Gravity:
			s = strings.ToLower(s)
			if a, ok := formatAliases[s]; ok && n == Format {
				s = a
			}
		}
		return String(s), true
	}
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
