// mrs_tools is the command line interface to the NIfTI-MRS library: inspect
// files, render quick-look spectra and apply the higher-dimension shape
// transforms (merge, split, reorder, reshape, conjugate).
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fatih/color"
	log "github.com/sirupsen/logrus"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/wtclarke/nifti-mrs-tools/pkg/config"
	"github.com/wtclarke/nifti-mrs-tools/pkg/definitions"
	"github.com/wtclarke/nifti-mrs-tools/pkg/mrs"
	"github.com/wtclarke/nifti-mrs-tools/pkg/tools"
	"github.com/wtclarke/nifti-mrs-tools/pkg/vis"
)

var (
	app        = kingpin.New("mrs_tools", "Tools for handling NIfTI-MRS format data.")
	configPath = app.Flag("config", "Path to a YAML configuration file.").Default("mrs_tools.yaml").String()
	verbose    = app.Flag("verbose", "Enable debug logging.").Short('v').Bool()

	infoCmd   = app.Command("info", "Print the metadata of one or more NIfTI-MRS files.")
	infoFiles = infoCmd.Arg("files", "Files to inspect.").Required().ExistingFiles()

	visCmd        = app.Command("vis", "Render a quick-look magnitude spectrum to a PNG file.")
	visFile       = visCmd.Arg("file", "File to render.").Required().ExistingFile()
	visDisplayDim = visCmd.Flag("display_dim", "Overlay one spectrum per index of this dimension tag instead of averaging it, e.g. DIM_COIL.").String()
	visSave       = visCmd.Flag("save", "Output PNG path. Defaults to the input file name with a .png extension.").String()

	mergeCmd      = app.Command("merge", "Concatenate files along a higher dimension.")
	mergeFiles    = mergeCmd.Flag("files", "Files to merge, in order.").Required().ExistingFiles()
	mergeDim      = mergeCmd.Flag("dim", "Dimension tag to concatenate along, e.g. DIM_DYN.").Required().String()
	mergeNewAxis  = mergeCmd.Flag("newaxis", "Append the tag as a new singleton dimension to each input first.").Bool()
	mergeOut      = mergeCmd.Flag("output", "Output directory.").Default(".").String()
	mergeFilename = mergeCmd.Flag("filename", "Output file name without extension.").String()

	splitCmd      = app.Command("split", "Divide a file along a higher dimension.")
	splitFile     = splitCmd.Flag("file", "File to split.").Required().ExistingFile()
	splitDim      = splitCmd.Flag("dim", "Dimension tag to split along, e.g. DIM_DYN.").Required().String()
	splitIndex    = splitCmd.Flag("index", "Zero-based index to split after.").Default("-1").Int()
	splitIndices  = splitCmd.Flag("indices", "Comma separated indices to extract.").String()
	splitOut      = splitCmd.Flag("output", "Output directory.").Default(".").String()
	splitFilename = splitCmd.Flag("filename", "Output file name stem without extension.").String()

	reorderCmd      = app.Command("reorder", "Permute the higher dimensions into a given tag order.")
	reorderFile     = reorderCmd.Flag("file", "File to reorder.").Required().ExistingFile()
	reorderOrder    = reorderCmd.Flag("dim_order", "Comma separated tag order, e.g. DIM_COIL,DIM_DYN.").Required().String()
	reorderOut      = reorderCmd.Flag("output", "Output directory.").Default(".").String()
	reorderFilename = reorderCmd.Flag("filename", "Output file name without extension.").String()

	reshapeCmd      = app.Command("reshape", "Reorganise the higher dimensions into a new shape.")
	reshapeFile     = reshapeCmd.Flag("file", "File to reshape.").Required().ExistingFile()
	reshapeShape    = reshapeCmd.Flag("shape", "Comma separated higher-dimension shape; one entry may be -1.").Required().String()
	reshapeD5       = reshapeCmd.Flag("d5", "Tag for dimension 5.").String()
	reshapeD6       = reshapeCmd.Flag("d6", "Tag for dimension 6.").String()
	reshapeD7       = reshapeCmd.Flag("d7", "Tag for dimension 7.").String()
	reshapeOut      = reshapeCmd.Flag("output", "Output directory.").Default(".").String()
	reshapeFilename = reshapeCmd.Flag("filename", "Output file name without extension.").String()

	conjCmd      = app.Command("conjugate", "Complex conjugate the data.")
	conjFile     = conjCmd.Flag("file", "File to conjugate.").Required().ExistingFile()
	conjOut      = conjCmd.Flag("output", "Output directory.").Default(".").String()
	conjFilename = conjCmd.Flag("filename", "Output file name without extension.").String()
)

func main() {
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fatal(err)
	}
	if *verbose || cfg.Output.Verbose {
		log.SetLevel(log.DebugLevel)
	}

	var loadOpts []mrs.Option
	if cfg.Validation.Disabled {
		loadOpts = append(loadOpts, mrs.WithoutValidation())
	}
	loadOpts = append(loadOpts, mrs.WithSpectralWidthTolerance(cfg.Validation.SpectralWidthTolerance))

	switch command {
	case infoCmd.FullCommand():
		err = runInfo(*infoFiles, loadOpts)
	case visCmd.FullCommand():
		err = runVis(*visFile, *visDisplayDim, *visSave, loadOpts)
	case mergeCmd.FullCommand():
		err = runMerge(*mergeFiles, *mergeDim, *mergeNewAxis, *mergeOut, *mergeFilename, loadOpts)
	case splitCmd.FullCommand():
		err = runSplit(*splitFile, *splitDim, *splitIndex, *splitIndices, *splitOut, *splitFilename, loadOpts)
	case reorderCmd.FullCommand():
		err = runReorder(*reorderFile, *reorderOrder, *reorderOut, *reorderFilename, loadOpts)
	case reshapeCmd.FullCommand():
		err = runReshape(*reshapeFile, *reshapeShape, *reshapeD5, *reshapeD6, *reshapeD7, *reshapeOut, *reshapeFilename, loadOpts)
	case conjCmd.FullCommand():
		err = runConjugate(*conjFile, *conjOut, *conjFilename, loadOpts)
	}
	if err != nil {
		fatal(err)
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "mrs_tools: %v\n", err)
	os.Exit(1)
}

func runInfo(paths []string, opts []mrs.Option) error {
	heading := color.New(color.FgCyan, color.Bold)
	label := color.New(color.FgGreen)

	for _, path := range paths {
		m, err := mrs.Load(path, opts...)
		if err != nil {
			return err
		}

		heading.Printf("%s\n", path)
		major, minor := m.Version()
		label.Print("  Format version: ")
		fmt.Printf("%d.%d\n", major, minor)
		label.Print("  Shape: ")
		fmt.Printf("%v\n", m.Shape())
		label.Print("  Dimension tags: ")
		if tags := m.DimTags(); len(tags) > 0 {
			fmt.Printf("%s\n", strings.Join(tags, ", "))
		} else {
			fmt.Println("none")
		}
		label.Print("  Spectral width: ")
		fmt.Printf("%.1f Hz\n", m.SpectralWidth())
		label.Print("  Dwell time: ")
		fmt.Printf("%.3e s\n", m.Dwelltime())
		label.Print("  Nucleus: ")
		fmt.Printf("%s\n", strings.Join(m.Nucleus(), ", "))

		cf := m.SpectrometerFrequency()[0]
		label.Print("  Spectrometer frequency: ")
		fmt.Printf("%.4f MHz\n", cf)
		if gamma, ok := definitions.GyromagneticRatios[m.Nucleus()[0]]; ok {
			label.Print("  Field strength: ")
			fmt.Printf("%.2f T\n", cf/gamma)
		}
	}
	return nil
}

func runVis(path, displayDim, save string, opts []mrs.Option) error {
	m, err := mrs.Load(path, opts...)
	if err != nil {
		return err
	}
	spectra, err := vis.SpectraAlong(m, displayDim)
	if err != nil {
		return err
	}
	if save == "" {
		save = stem(path) + ".png"
	}
	const plotWidth, plotHeight = 800, 400
	if err := vis.SaveAllPNG(spectra, save, plotWidth, plotHeight); err != nil {
		return err
	}
	log.WithField("path", save).Info("wrote spectrum plot")
	return nil
}

func runMerge(paths []string, dim string, newAxis bool, outDir, name string, opts []mrs.Option) error {
	if len(paths) < 2 {
		return fmt.Errorf("merge needs at least two files")
	}
	parts := make([]*mrs.NiftiMRS, len(paths))
	for i, p := range paths {
		m, err := mrs.Load(p, opts...)
		if err != nil {
			return err
		}
		if newAxis {
			if m, err = tools.AddDimension(m, dim); err != nil {
				return err
			}
		}
		parts[i] = m
	}
	merged, err := tools.Merge(dim, parts...)
	if err != nil {
		return err
	}
	if name == "" {
		name = stem(paths[0]) + "_merged"
	}
	return merged.Save(filepath.Join(outDir, name+".nii.gz"))
}

func runSplit(path, dim string, index int, indicesArg, outDir, name string, opts []mrs.Option) error {
	m, err := mrs.Load(path, opts...)
	if err != nil {
		return err
	}
	if name == "" {
		name = stem(path)
	}

	if indicesArg != "" {
		indices, err := parseIntList(indicesArg)
		if err != nil {
			return err
		}
		remainder, selected, err := tools.SplitIndices(m, dim, indices)
		if err != nil {
			return err
		}
		if err := remainder.Save(filepath.Join(outDir, name+"_others.nii.gz")); err != nil {
			return err
		}
		return selected.Save(filepath.Join(outDir, name+"_selected.nii.gz"))
	}

	if index < 0 {
		return fmt.Errorf("one of --index or --indices is required")
	}
	low, high, err := tools.SplitAt(m, dim, index)
	if err != nil {
		return err
	}
	if err := low.Save(filepath.Join(outDir, name+"_low.nii.gz")); err != nil {
		return err
	}
	return high.Save(filepath.Join(outDir, name+"_high.nii.gz"))
}

func runReorder(path, orderArg, outDir, name string, opts []mrs.Option) error {
	m, err := mrs.Load(path, opts...)
	if err != nil {
		return err
	}
	order := splitNonEmpty(orderArg)
	out, err := tools.Reorder(m, order)
	if err != nil {
		return err
	}
	if name == "" {
		name = stem(path) + "_reordered"
	}
	return out.Save(filepath.Join(outDir, name+".nii.gz"))
}

func runReshape(path, shapeArg, d5, d6, d7, outDir, name string, opts []mrs.Option) error {
	m, err := mrs.Load(path, opts...)
	if err != nil {
		return err
	}
	shape, err := parseIntList(shapeArg)
	if err != nil {
		return err
	}
	tags := map[int]string{}
	if d5 != "" {
		tags[5] = d5
	}
	if d6 != "" {
		tags[6] = d6
	}
	if d7 != "" {
		tags[7] = d7
	}
	out, err := tools.Reshape(m, shape, tags)
	if err != nil {
		return err
	}
	if name == "" {
		name = stem(path) + "_reshaped"
	}
	return out.Save(filepath.Join(outDir, name+".nii.gz"))
}

func runConjugate(path, outDir, name string, opts []mrs.Option) error {
	m, err := mrs.Load(path, opts...)
	if err != nil {
		return err
	}
	out := tools.Conjugate(m)
	if name == "" {
		name = stem(path) + "_conjugated"
	}
	return out.Save(filepath.Join(outDir, name+".nii.gz"))
}

// stem strips the directory and the .nii/.nii.gz extension from a path.
func stem(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, ".gz")
	base = strings.TrimSuffix(base, ".nii")
	return base
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseIntList(s string) ([]int, error) {
	parts := splitNonEmpty(s)
	out := make([]int, len(parts))
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q", p)
		}
		out[i] = v
	}
	return out, nil
}
