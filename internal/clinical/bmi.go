// Package clinical holds the derived-metric computations shared by the
// patient profile (stored snapshot) and the consultation record (computed on
// read). Keeping both call sites on the same normalization rule avoids the
// two drifting apart.
package clinical

import "math"

// NormalizeHeight converts a height to meters. Intake forms collect the value
// in centimeters but historical rows mix units, so anything above 3 is treated
// as centimeters and divided by 100.
func NormalizeHeight(h float64) float64 {
	if h > 3 {
		return h / 100
	}
	return h
}

// BMI computes weight/height_m² rounded to the given number of decimals.
// Returns nil when either value is missing or not positive, so callers never
// divide by zero and an absent measurement stays absent.
func BMI(weight, height *float64, decimals int) *float64 {
	if weight == nil || height == nil || *weight <= 0 || *height <= 0 {
		return nil
	}
	h := NormalizeHeight(*height)
	v := roundTo(*weight/(h*h), decimals)
	return &v
}

func roundTo(v float64, decimals int) float64 {
	p := math.Pow10(decimals)
	return math.Round(v*p) / p
}

// Status is a BMI classification band with the display color used by the
// frontend badges.
type Status struct {
	Label string `json:"label"`
	Color string `json:"color"`
}

// Classify maps a BMI value to its band. A nil (or zero) value classifies as
// unknown rather than underweight.
func Classify(bmi *float64) Status {
	if bmi == nil || *bmi == 0 {
		return Status{Label: "Inconnu", Color: "secondary"}
	}
	switch v := *bmi; {
	case v < 18.5:
		return Status{Label: "Insuffisance pondérale", Color: "info"}
	case v < 25:
		return Status{Label: "Normal", Color: "success"}
	case v < 30:
		return Status{Label: "Surpoids", Color: "warning"}
	default:
		return Status{Label: "Obésité", Color: "danger"}
	}
}
