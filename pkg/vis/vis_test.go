package vis

import (
	"math"
	"math/cmplx"
	"os"
	"path/filepath"
	"testing"

	"github.com/wtclarke/nifti-mrs-tools/internal/ndarray"
	"github.com/wtclarke/nifti-mrs-tools/pkg/mrs"
)

// sineObject builds an object whose FID is a pure complex exponential at
// the given offset frequency in Hz.
func sineObject(t *testing.T, n int, dwell, offsetHz float64) *mrs.NiftiMRS {
	t.Helper()
	vals := make([]complex128, n)
	for i := range vals {
		phase := 2 * math.Pi * offsetHz * float64(i) * dwell
		vals[i] = cmplx.Exp(complex(0, phase))
	}
	data, err := ndarray.FromSlice(vals, 1, 1, 1, n)
	if err != nil {
		t.Fatalf("FromSlice failed: %v", err)
	}
	m, err := mrs.Generate(data, mrs.GenerateParams{
		Dwelltime:             dwell,
		SpectrometerFrequency: 100.0,
	}, mrs.WithNoConjugate())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	return m
}

func TestAverageSpectrumPeakPosition(t *testing.T) {
	// 500 Hz offset at 100 MHz is 5 ppm
	m := sineObject(t, 512, 1.0/2048.0, 500.0)

	s, err := AverageSpectrum(m)
	if err != nil {
		t.Fatalf("AverageSpectrum failed: %v", err)
	}
	if len(s.PPM) != 512 || len(s.Magnitude) != 512 {
		t.Fatalf("Unexpected spectrum length %d", len(s.Magnitude))
	}

	peak := 0
	for i, v := range s.Magnitude {
		if v > s.Magnitude[peak] {
			peak = i
		}
	}
	if got := s.PPM[peak]; math.Abs(got-5.0) > 0.1 {
		t.Errorf("Expected peak near 5 ppm, got %v", got)
	}
}

func TestAverageSpectrumAveragesHigherDims(t *testing.T) {
	n := 64
	vals := make([]complex128, n*2)
	// Two transients with opposite signs average to zero
	for i := 0; i < n; i++ {
		vals[2*i] = complex(1, 0)
		vals[2*i+1] = complex(-1, 0)
	}
	data, err := ndarray.FromSlice(vals, 1, 1, 1, n, 2)
	if err != nil {
		t.Fatalf("FromSlice failed: %v", err)
	}
	m, err := mrs.Generate(data, mrs.GenerateParams{
		Dwelltime:             1e-3,
		SpectrometerFrequency: 100.0,
		DimTags:               []string{"DIM_DYN"},
	}, mrs.WithNoConjugate())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	s, err := AverageSpectrum(m)
	if err != nil {
		t.Fatalf("AverageSpectrum failed: %v", err)
	}
	for i, v := range s.Magnitude {
		if v > 1e-9 {
			t.Errorf("Expected zero spectrum after averaging, bin %d = %v", i, v)
		}
	}
}

func TestSpectraAlongSplitsDimension(t *testing.T) {
	n := 256
	dwell := 1.0 / 1024.0
	// Two elements along DIM_EDIT with peaks at 1 ppm and 3 ppm
	vals := make([]complex128, n*2)
	for i := 0; i < n; i++ {
		tm := float64(i) * dwell
		vals[2*i] = cmplx.Exp(complex(0, 2*math.Pi*100.0*tm))
		vals[2*i+1] = cmplx.Exp(complex(0, 2*math.Pi*300.0*tm))
	}
	data, err := ndarray.FromSlice(vals, 1, 1, 1, n, 2)
	if err != nil {
		t.Fatalf("FromSlice failed: %v", err)
	}
	m, err := mrs.Generate(data, mrs.GenerateParams{
		Dwelltime:             dwell,
		SpectrometerFrequency: 100.0,
		DimTags:               []string{"DIM_EDIT"},
	}, mrs.WithNoConjugate())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	spectra, err := SpectraAlong(m, "DIM_EDIT")
	if err != nil {
		t.Fatalf("SpectraAlong failed: %v", err)
	}
	if len(spectra) != 2 {
		t.Fatalf("Expected 2 spectra, got %d", len(spectra))
	}
	for k, wantPPM := range []float64{1.0, 3.0} {
		s := spectra[k]
		peak := 0
		for i, v := range s.Magnitude {
			if v > s.Magnitude[peak] {
				peak = i
			}
		}
		if got := s.PPM[peak]; math.Abs(got-wantPPM) > 0.1 {
			t.Errorf("Spectrum %d: expected peak near %v ppm, got %v", k, wantPPM, got)
		}
	}

	if _, err := SpectraAlong(m, "DIM_COIL"); err == nil {
		t.Errorf("Expected error for an absent dimension tag")
	}
}

func TestSavePNG(t *testing.T) {
	m := sineObject(t, 128, 1e-3, 100.0)
	s, err := AverageSpectrum(m)
	if err != nil {
		t.Fatalf("AverageSpectrum failed: %v", err)
	}

	path := filepath.Join(t.TempDir(), "plots", "spectrum.png")
	if err := s.SavePNG(path, 640, 320); err != nil {
		t.Fatalf("SavePNG failed: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Output missing: %v", err)
	}
	if info.Size() == 0 {
		t.Errorf("Output file is empty")
	}
}

func TestRejectsSinglePointTime(t *testing.T) {
	data := ndarray.New(1, 1, 1, 1)
	m, err := mrs.Generate(data, mrs.GenerateParams{
		Dwelltime:             1e-3,
		SpectrometerFrequency: 100.0,
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if _, err := AverageSpectrum(m); err == nil {
		t.Errorf("Expected error for a single time point")
	}
}
