package mrs

import (
	"fmt"
	"math"

	log "github.com/sirupsen/logrus"

	"github.com/wtclarke/nifti-mrs-tools/internal/ndarray"
	"github.com/wtclarke/nifti-mrs-tools/pkg/definitions"
	"github.com/wtclarke/nifti-mrs-tools/pkg/hdrext"
	"github.com/wtclarke/nifti-mrs-tools/pkg/nifti"
)

// GenerateParams describes a NIfTI-MRS object to build from bare data, for
// converters that have the acquisition facts but no NIfTI container yet.
type GenerateParams struct {
	// Dwelltime is the spectral sampling interval in seconds.
	Dwelltime float64

	// SpectrometerFrequency is the spectrometer frequency. Values of 1e5
	// and above are taken as Hz and converted to MHz.
	SpectrometerFrequency float64

	// Nucleus is the resonant nucleus, e.g. "1H". Defaults to 1H.
	Nucleus string

	// Affine is the voxel-to-world transform. When nil a large-voxel
	// identity is used so unlocalised data still renders sensibly.
	Affine *[4][4]float64

	// DimTags are the tags for dimensions 5..N, one per higher dimension
	// of the data.
	DimTags []string
}

// defaultAffine is the transform used when none is given: a 10 m voxel at
// the origin, the convention for unlocalised acquisitions.
func defaultAffine() [4][4]float64 {
	var a [4][4]float64
	a[0][0], a[1][1], a[2][2] = 10000, 10000, 10000
	a[3][3] = 1
	return a
}

// Generate builds a NIfTI-MRS object from raw complex data. The time domain
// data is conjugated to match the standard's frequency convention unless
// WithNoConjugate is given.
func Generate(data *ndarray.Array, p GenerateParams, opts ...Option) (*NiftiMRS, error) {
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}

	nd := data.NDim()
	if nd < 4 || nd > 7 {
		return nil, &ShapeError{
			Op:  "generate",
			Msg: fmt.Sprintf("data must have between 4 and 7 dimensions, got %d", nd),
		}
	}
	if len(p.DimTags) != nd-4 {
		return nil, fmt.Errorf("data has %d higher dimensions but %d tags were given", nd-4, len(p.DimTags))
	}

	freq := p.SpectrometerFrequency
	if freq >= 1e5 {
		log.WithField("frequency", freq).Warn("spectrometer frequency looks like Hz, converting to MHz")
		freq /= 1e6
	}
	nucleus := p.Nucleus
	if nucleus == "" {
		nucleus = "1H"
	}

	ext, err := hdrext.NewSingle(freq, nucleus)
	if err != nil {
		return nil, err
	}
	if err := ext.SetDimensions(nd); err != nil {
		return nil, err
	}
	for i, tag := range p.DimTags {
		if err := ext.SetDimTag(i, tag); err != nil {
			return nil, err
		}
	}

	affine := defaultAffine()
	if p.Affine != nil {
		affine = *p.Affine
	}

	hdr := nifti.Header{
		IntentName: definitions.IntentName(definitions.Version[0], definitions.Version[1]),
		XYZTUnits:  nifti.UnitsMM | nifti.UnitsSec,
		SFormCode:  2,
		Affine:     affine,
	}
	hdr.PixDim[0] = 1
	for i := 0; i < 3; i++ {
		hdr.PixDim[i+1] = columnNorm(affine, i)
	}
	hdr.PixDim[4] = p.Dwelltime
	for i := 5; i < 8; i++ {
		hdr.PixDim[i] = 1
	}

	d := data.Copy()
	if o.conjugate {
		d.ConjInPlace()
	}

	m := &NiftiMRS{data: d, hdr: hdr, ext: ext, filename: o.filename}
	if o.validate {
		if err := m.validate(o.swTol); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// columnNorm is the Euclidean length of one spatial column of the affine,
// the voxel size along that axis.
func columnNorm(a [4][4]float64, col int) float64 {
	return math.Sqrt(a[0][col]*a[0][col] + a[1][col]*a[1][col] + a[2][col]*a[2][col])
}
