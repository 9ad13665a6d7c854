package decoder

import "strings"

// vendors maps upper-cased make prefixes to their short, consistent names.
var vendors = []struct {
	prefix string
	clean  string
}{
	{"NIKON", "Nikon"},
	{"CANON", "Canon"},
	{"SONY", "Sony"},
	{"FUJIFILM", "Fujifilm"},
	{"OLYMPUS", "Olympus"},
	{"OM DIGITAL SOLUTIONS", "OM System"},
	{"PANASONIC", "Panasonic"},
	{"PENTAX", "Pentax"},
	{"RICOH", "Ricoh"},
	{"SAMSUNG", "Samsung"},
	{"LEICA", "Leica"},
	{"HASSELBLAD", "Hasselblad"},
	{"PHASE ONE", "Phase One"},
	{"SIGMA", "Sigma"},
	{"APPLE", "Apple"},
	{"GOOGLE", "Google"},
	{"DJI", "DJI"},
}

// CleanMake returns a short vendor name for a maker string as written by
// the camera, or the trimmed input when the vendor is not known.
func CleanMake(maker string) string {
	trimmed := strings.TrimSpace(maker)
	upper := strings.ToUpper(trimmed)
	for _, v := range vendors {
		if strings.HasPrefix(upper, v.prefix) {
			return v.clean
		}
	}
	return trimmed
}

// CleanModel strips a leading vendor name from model.
func CleanModel(maker, model string) string {
	trimmed := strings.TrimSpace(model)

	// Compared in place: case mapping can change the byte length.
	for _, c := range []string{strings.TrimSpace(maker), CleanMake(maker)} {
		if c == "" || len(c) >= len(trimmed) || trimmed[len(c)] != ' ' {
			continue
		}
		if strings.EqualFold(trimmed[:len(c)], c) {
			return strings.TrimSpace(trimmed[len(c):])
		}
	}
	return trimmed
}

func newCamera(maker, model string) Camera {
	return Camera{
		Make:       maker,
		Model:      model,
		CleanMake:  CleanMake(maker),
		CleanModel: CleanModel(maker, model),
	}
}
