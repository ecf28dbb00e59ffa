package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"reflect"
	"runtime"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/ironsheep/dot-tracker-mcp/internal/refine"
)

// Defaults used by the original tracker UI.
const (
	DefaultPeakCutoff     = 0.34
	DefaultDistanceCutoff = 4.0
	DefaultRangeCutoff    = 0.25
	DefaultIntensityFloor = 0.2
	DefaultSearchRadius   = 10

	// MaxSearchRadius bounds the refinement neighbourhood. The scan is
	// quadratic in the radius.
	MaxSearchRadius = 64
)

// ErrInvalidConfig is returned when a tunable is negative, non-finite or out
// of its range.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the full set of pipeline tunables.
type Config struct {
	// PeakCutoff is the confidence a pixel must exceed to become a feature.
	PeakCutoff float64 `json:"peak_cutoff" yaml:"peak_cutoff" validate:"finite,gte=0,lte=1"`

	// DistanceCutoff is the link distance, in pixels, for child and sibling
	// edges. Pairs strictly closer than this are linked.
	DistanceCutoff float64 `json:"distance_cutoff" yaml:"distance_cutoff" validate:"finite,gte=0"`

	// RangeCutoff is the minimum local dynamic range below which refinement
	// suppresses a pixel.
	RangeCutoff float64 `json:"range_cutoff" yaml:"range_cutoff" validate:"finite,gte=0,lte=1"`

	// IntensityFloor is the locally stretched value treated as background.
	IntensityFloor float64 `json:"intensity_floor" yaml:"intensity_floor" validate:"finite,gte=0,lt=1"`

	// SearchRadius is the refinement neighbourhood radius in pixels.
	SearchRadius int `json:"search_radius" yaml:"search_radius" validate:"gte=0,lte=64"`

	// Workers bounds per-frame parallelism. Zero means GOMAXPROCS.
	Workers int `json:"workers" yaml:"workers" validate:"gte=0"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("finite", validateFinite); err != nil {
		panic(fmt.Sprintf("register finite validator: %v", err))
	}
	return v
}

// validateFinite rejects NaN and infinities on float fields.
func validateFinite(fl validator.FieldLevel) bool {
	f := fl.Field()
	if f.Kind() != reflect.Float64 && f.Kind() != reflect.Float32 {
		return true
	}
	x := f.Float()
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

// Default returns the configuration the original tracker started with.
func Default() Config {
	return Config{
		PeakCutoff:     DefaultPeakCutoff,
		DistanceCutoff: DefaultDistanceCutoff,
		RangeCutoff:    DefaultRangeCutoff,
		IntensityFloor: DefaultIntensityFloor,
		SearchRadius:   DefaultSearchRadius,
	}
}

// Validate checks every tunable. The returned error wraps ErrInvalidConfig
// and names each offending field.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q (value %v)", fe.Field(), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
}

// RefineParams returns the refinement subset of c.
func (c Config) RefineParams() refine.Params {
	return refine.Params{
		SearchRadius:   c.SearchRadius,
		RangeCutoff:    c.RangeCutoff,
		IntensityFloor: c.IntensityFloor,
	}
}

// WorkerCount returns the effective parallelism.
func (c Config) WorkerCount() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// Load reads a YAML file and overlays it onto Default. Keys missing from the
// file keep their default values.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML onto Default and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: parse yaml: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
