// Package vis renders quick-look spectra from NIfTI-MRS objects. The time
// domain data is averaged over every non-time dimension, Fourier
// transformed and drawn as a magnitude plot against chemical shift, giving
// a one-glance sanity check of a file's content. One higher dimension can
// be kept apart and drawn as overlaid traces instead of averaged.
package vis

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"math/cmplx"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/wtclarke/nifti-mrs-tools/internal/ndarray"
	"github.com/wtclarke/nifti-mrs-tools/pkg/mrs"
)

// Spectrum is one processed magnitude spectrum ready for plotting.
type Spectrum struct {
	// PPM is the chemical shift axis, ascending.
	PPM []float64

	// Magnitude is the spectral magnitude at each PPM value.
	Magnitude []float64
}

// AverageSpectrum averages the data over every dimension except time,
// Fourier transforms the mean FID and returns the centred magnitude
// spectrum with its chemical shift axis.
func AverageSpectrum(m *mrs.NiftiMRS) (*Spectrum, error) {
	return spectrumOf(m.Data(), m.SpectralWidth(), m.SpectrometerFrequency()[0])
}

// SpectraAlong returns one spectrum per index of the dimension carrying
// tag, each averaged over every other non-time dimension. An empty tag
// yields the single fully averaged spectrum.
func SpectraAlong(m *mrs.NiftiMRS, tag string) ([]*Spectrum, error) {
	if tag == "" {
		s, err := AverageSpectrum(m)
		if err != nil {
			return nil, err
		}
		return []*Spectrum{s}, nil
	}

	axis, err := m.DimPosition(tag)
	if err != nil {
		return nil, err
	}
	sw := m.SpectralWidth()
	cf := m.SpectrometerFrequency()[0]

	n := m.Shape()[axis]
	out := make([]*Spectrum, n)
	for k := 0; k < n; k++ {
		sub, err := m.Data().Take(axis, []int{k})
		if err != nil {
			return nil, err
		}
		if out[k], err = spectrumOf(sub, sw, cf); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// spectrumOf averages the array over every dimension except time and
// transforms the mean FID.
func spectrumOf(arr *ndarray.Array, sw, cf float64) (*Spectrum, error) {
	shape := arr.Shape()
	nt := shape[3]
	if nt < 2 {
		return nil, fmt.Errorf("time dimension has length %d; nothing to transform", nt)
	}

	// Mean FID across all voxels and higher dimensions. With row-major
	// data the time index of flat element i is (i / inner) % nt where
	// inner is the element count of the axes after time.
	inner := 1
	for _, d := range shape[4:] {
		inner *= d
	}
	fid := make([]complex128, nt)
	flat := arr.Data()
	for i, v := range flat {
		fid[(i/inner)%nt] += v
	}
	scale := complex(float64(nt)/float64(len(flat)), 0)
	for i := range fid {
		fid[i] *= scale
	}

	fft := fourier.NewCmplxFFT(nt)
	coeffs := fft.Coefficients(nil, fid)

	// Shift so zero frequency sits at the centre
	mag := make([]float64, nt)
	half := (nt + 1) / 2
	for i, c := range coeffs {
		mag[(i+nt-half)%nt] = cmplx.Abs(c)
	}

	ppm := make([]float64, nt)
	for i := range ppm {
		hz := (float64(i) - float64(nt-half)) * sw / float64(nt)
		ppm[i] = hz / cf
	}
	return &Spectrum{PPM: ppm, Magnitude: mag}, nil
}

// palette holds the trace colours cycled through when several spectra are
// overlaid in one plot.
var palette = []color.RGBA{
	{20, 60, 180, 255},
	{180, 40, 40, 255},
	{30, 140, 60, 255},
	{170, 110, 20, 255},
	{120, 50, 160, 255},
	{30, 150, 150, 255},
}

// Render draws the spectrum as a line plot of the given pixel size.
func (s *Spectrum) Render(width, height int) *image.RGBA {
	return RenderAll([]*Spectrum{s}, width, height)
}

// RenderAll overlays the given spectra in one line plot, all scaled to the
// shared maximum magnitude.
func RenderAll(spectra []*Spectrum, width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	bg := color.RGBA{255, 255, 255, 255}
	axis := color.RGBA{80, 80, 80, 255}

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, bg)
		}
	}

	const margin = 10
	plotW := width - 2*margin
	plotH := height - 2*margin
	if plotW < 1 || plotH < 1 {
		return img
	}

	maxMag := 0.0
	for _, s := range spectra {
		for _, v := range s.Magnitude {
			maxMag = math.Max(maxMag, v)
		}
	}
	if maxMag == 0 {
		maxMag = 1
	}

	// Axis box
	for x := margin; x < width-margin; x++ {
		img.Set(x, height-margin, axis)
	}
	for y := margin; y < height-margin; y++ {
		img.Set(margin, y, axis)
	}

	// Spectra are conventionally drawn with chemical shift decreasing to
	// the right, so each trace is reversed.
	for k, s := range spectra {
		n := len(s.Magnitude)
		if n < 2 {
			continue
		}
		line := palette[k%len(palette)]
		prevX, prevY := -1, -1
		for i := 0; i < n; i++ {
			v := s.Magnitude[n-1-i]
			x := margin + i*(plotW-1)/(n-1)
			y := height - margin - int(v/maxMag*float64(plotH-1))
			if prevX >= 0 {
				drawLine(img, prevX, prevY, x, y, line)
			}
			prevX, prevY = x, y
		}
	}
	return img
}

// SavePNG writes the rendered spectrum to path, creating the directory if
// needed.
func (s *Spectrum) SavePNG(path string, width, height int) error {
	return SaveAllPNG([]*Spectrum{s}, path, width, height)
}

// SaveAllPNG writes the overlaid spectra to path as one PNG, creating the
// directory if needed.
func SaveAllPNG(spectra []*Spectrum, path string, width, height int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("error creating output directory: %w", err)
	}
	fh, err := os.Create(path)
	if err != nil {
		return err
	}
	defer fh.Close()
	if err := png.Encode(fh, RenderAll(spectra, width, height)); err != nil {
		return fmt.Errorf("error encoding PNG: %w", err)
	}
	return nil
}

// drawLine draws a straight segment with the integer midpoint algorithm.
func drawLine(img *image.RGBA, x0, y0, x1, y1 int, c color.RGBA) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy
	for {
		img.Set(x0, y0, c)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
