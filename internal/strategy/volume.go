package strategy

import (
	"fmt"
	"math"
)

// VolumeBand classifies a volume ratio
type VolumeBand string

const (
	VolumeShrink   VolumeBand = "shrink"
	VolumeNeutral  VolumeBand = "neutral"
	VolumeModerate VolumeBand = "moderate"
	VolumeStrong   VolumeBand = "strong"
	VolumeExtreme  VolumeBand = "extreme"
)

// ClassifyVolume maps a volume ratio (current / 5-bar average) to its band
func ClassifyVolume(ratio float64) VolumeBand {
	switch {
	case ratio < 0.8:
		return VolumeShrink
	case ratio < 1.2:
		return VolumeNeutral
	case ratio < 1.8:
		return VolumeModerate
	case ratio < 3.0:
		return VolumeStrong
	default:
		return VolumeExtreme
	}
}

// volume judges whether volume behaviour at the current price position is
// healthy (exhaustion at support, accumulation on up bars) or alarming
// (thin breakouts, heavy volume at the upper band, distribution).
func (g *Generator) volume(in Input) []Signal {
	f := in.Latest
	ratio := f.VolumeRatio
	band := ClassifyVolume(ratio)
	prox := g.config.ProximityPct

	bbPos := f.BBPosition
	swingPos := bbPos
	nearSwingHigh := false
	if in.Swing != nil && f.Close > 0 {
		swingPos = in.Swing.Position(f.Close)
		nearSwingHigh = math.Abs(f.Close-in.Swing.High())/f.Close < prox
	}

	upBar := f.Close >= f.Open
	if in.HasPrevious {
		upBar = f.Close > in.Previous.Close
	}
	atSupport := bbPos <= 0.2 || swingPos <= 0.2
	atBreakout := bbPos >= 0.9 || nearSwingHigh

	var out []Signal
	switch band {
	case VolumeShrink:
		if atBreakout {
			out = append(out, Risk(KindFalseBreakout, SideBuy, DimVolume, 20,
				fmt.Sprintf("volume %.2fx shrinking at a breakout level", ratio)))
		} else if atSupport {
			out = append(out, Positive(KindVolExhaustion, SideBuy, DimVolume, 20,
				fmt.Sprintf("selling exhausted: volume %.2fx at support", ratio)))
		}
	case VolumeModerate, VolumeStrong:
		if upBar && bbPos <= 0.6 && ratio >= in.Regime.Params.VolumeRatioMin {
			strength := 15.0
			if band == VolumeStrong {
				strength = 25
			}
			out = append(out, Positive(KindVolAccumulate, SideBuy, DimVolume, strength,
				fmt.Sprintf("volume %.2fx (%s) on an up bar", ratio, band)))
		}
	}

	if (band == VolumeStrong || band == VolumeExtreme) && bbPos >= 0.9 {
		strength := 20.0
		if band == VolumeExtreme {
			strength = 30
		}
		out = append(out, Positive(KindVolPressure, SideSell, DimVolume, strength,
			fmt.Sprintf("heavy volume %.2fx at the upper band", ratio)))
	}
	if band == VolumeExtreme && !upBar {
		out = append(out, Positive(KindVolDistribute, SideSell, DimVolume, 25,
			fmt.Sprintf("extreme volume %.2fx on a down bar", ratio)))
	}
	return out
}
