package grid

import (
	opensimplex "github.com/ojrac/opensimplex-go"
)

// NoiseConfig controls layered simplex noise sampling.
type NoiseConfig struct {
	Seed        int64
	Octaves     int     // number of layered samples (default 4)
	Frequency   float64 // base frequency per cell (default 0.08)
	Persistence float64 // amplitude falloff per octave (default 0.5)
}

// DefaultNoiseConfig returns settings that give smooth patches on a ~100 cell grid.
func DefaultNoiseConfig(seed int64) NoiseConfig {
	return NoiseConfig{Seed: seed, Octaves: 4, Frequency: 0.08, Persistence: 0.5}
}

// FillNoise samples normalized noise in [0, 1) for every cell of l and writes
// classify(sample). Writes go through the layer's update discipline.
func FillNoise(l *Layer, cfg NoiseConfig, classify func(sample float64) any) {
	if cfg.Octaves <= 0 {
		cfg.Octaves = 4
	}
	if cfg.Frequency <= 0 {
		cfg.Frequency = 0.08
	}
	if cfg.Persistence <= 0 {
		cfg.Persistence = 0.5
	}
	noise := opensimplex.NewNormalized(cfg.Seed)

	for y := 0; y < l.h; y++ {
		for x := 0; x < l.w; x++ {
			sample := octaveNoise(noise, float64(x), float64(y), cfg.Octaves, cfg.Frequency, cfg.Persistence)
			l.write(y*l.w+x, classify(sample))
		}
	}
}

func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}
