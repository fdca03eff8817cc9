package stats

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ncruces/go-strftime"
	"github.com/sbinet/npyio"
)

// SaveParameters writes params as a one-dimensional float64 .npy array.
func SaveParameters(path string, params []float64) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := npyio.Write(file, params); err != nil {
		_ = file.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return file.Close()
}

// LoadParameters reads a flat parameter vector from a .npy file. float32
// arrays are widened to float64.
func LoadParameters(path string) ([]float64, error) {
	params, err := readNPY[float64](path)
	if err == nil {
		return params, nil
	}
	narrow, err32 := readNPY[float32](path)
	if err32 != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	params = make([]float64, len(narrow))
	for i, v := range narrow {
		params[i] = float64(v)
	}
	return params, nil
}

func readNPY[T float32 | float64](path string) ([]T, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var out []T
	if err := npyio.Read(file, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FormatFloat renders v the way the reference checkpoint names do: the
// shortest round-trip form, whole numbers keep a ".0", and very large or
// small magnitudes switch to exponent notation.
func FormatFloat(v float64) string {
	switch {
	case math.IsNaN(v):
		return "nan"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	if abs := math.Abs(v); abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.FormatFloat(v, 'e', -1, 64)
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// CheckpointSpec describes the run a checkpoint belongs to; its fields end
// up in the file name.
type CheckpointSpec struct {
	Network        string
	PopulationSize int
	Generations    int
	PMutation      float64
	PCrossover     float64
}

// CheckpointName builds
// <date>_NN=<net>_POPSIZE=<n>_GEN=<g>_PMUTATION_<pm>_PCROSSOVER_<pc>_I=<iter>_SCORE=<score>.npy.
func CheckpointName(now time.Time, spec CheckpointSpec, iteration int, score string) string {
	return fmt.Sprintf("%s_NN=%s_POPSIZE=%d_GEN=%d_PMUTATION_%s_PCROSSOVER_%s_I=%d_SCORE=%s.npy",
		strftime.Format(TimestampFormat, now),
		spec.Network,
		spec.PopulationSize,
		spec.Generations,
		FormatFloat(spec.PMutation),
		FormatFloat(spec.PCrossover),
		iteration,
		score,
	)
}

// Checkpointer stores best-individual parameter files under Dir.
type Checkpointer struct {
	Dir  string
	Spec CheckpointSpec
	Now  func() time.Time
}

func NewCheckpointer(dir string, spec CheckpointSpec) *Checkpointer {
	return &Checkpointer{Dir: dir, Spec: spec, Now: time.Now}
}

func (c *Checkpointer) SaveBest(ctx context.Context, iteration int, score string, params []float64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	path := filepath.Join(c.Dir, CheckpointName(now(), c.Spec, iteration, score))
	if err := SaveParameters(path, params); err != nil {
		return "", err
	}
	return path, nil
}
