// Command raster2rgb converts three bands of a multi-band GeoTIFF into an
// 8-bit RGB GeoTIFF with a .tfw world file.
//
// Usage:
//
//	raster2rgb input.tif output.tif -r 4 -g 3 -b 2
//	raster2rgb input.tif output.tif -r 1 -g 2 -b 3 --min 0 --max 10000
//	raster2rgb https://example.com/scene.tif output.tif -r 4 -g 3 -b 2 --stats
package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"

	"github.com/spf13/pflag"
	"github.com/tingold/georgb"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

const defaultPreviewSize = 1024

type options struct {
	input, output    string
	red, green, blue int
	min, max         float64
	explicit         bool
	strict           bool
	stats            bool
	preview          string
	previewSize      int
	verbose          bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the command and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	flags := pflag.NewFlagSet("raster2rgb", pflag.ContinueOnError)
	flags.SetOutput(stderr)

	var opts options
	var showVersion bool
	flags.IntVarP(&opts.red, "red", "r", 0, "Band number for red channel (1-indexed, required)")
	flags.IntVarP(&opts.green, "green", "g", 0, "Band number for green channel (1-indexed, required)")
	flags.IntVarP(&opts.blue, "blue", "b", 0, "Band number for blue channel (1-indexed, required)")
	flags.Float64Var(&opts.min, "min", 0, "Minimum value for scaling (default: auto from data)")
	flags.Float64Var(&opts.max, "max", 0, "Maximum value for scaling (default: auto from data)")
	flags.BoolVar(&opts.strict, "strict", false, "Fail when a valid sample lies outside --min/--max instead of clipping it")
	flags.BoolVar(&opts.stats, "stats", false, "Print per-channel statistics of the selected bands")
	flags.StringVar(&opts.preview, "preview", "", "Also write a downscaled PNG or JPEG quick-look to this path")
	flags.IntVar(&opts.previewSize, "preview-size", defaultPreviewSize, "Maximum width and height of the preview in pixels")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Log progress to stderr")
	flags.BoolVar(&showVersion, "version", false, "Print version information")
	flags.SortFlags = false
	flags.Usage = func() {
		fmt.Fprintln(stderr, "raster2rgb - convert a multi-band geospatial raster to an 8-bit RGB GeoTIFF")
		fmt.Fprintln(stderr)
		fmt.Fprintln(stderr, "Usage: raster2rgb INPUT OUTPUT -r R -g G -b B [options]")
		fmt.Fprintln(stderr)
		fmt.Fprintln(stderr, "Options:")
		flags.PrintDefaults()
		fmt.Fprintln(stderr)
		fmt.Fprintln(stderr, "Environment variables:")
		fmt.Fprintln(stderr, "  RASTER2RGB_LOG_LEVEL=debug    Enable debug logging")
	}

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "Error: %v\n\n", err)
		flags.Usage()
		return 1
	}

	if showVersion {
		fmt.Fprintf(stdout, "raster2rgb %s\n", Version)
		fmt.Fprintf(stdout, "  Build time: %s\n", BuildTime)
		fmt.Fprintf(stdout, "  Git commit: %s\n", GitCommit)
		return 0
	}

	if flags.NArg() != 2 {
		fmt.Fprintf(stderr, "Error: INPUT and OUTPUT are required\n\n")
		flags.Usage()
		return 1
	}
	for _, name := range []string{"red", "green", "blue"} {
		if !flags.Changed(name) {
			fmt.Fprintf(stderr, "Error: --%s is required\n\n", name)
			flags.Usage()
			return 1
		}
	}
	opts.input, opts.output = flags.Arg(0), flags.Arg(1)

	if !georgb.IsURL(opts.input) {
		if _, err := os.Stat(opts.input); err != nil {
			fmt.Fprintf(stderr, "Error: Input file '%s' not found.\n", opts.input)
			return 1
		}
	}

	if flags.Changed("min") != flags.Changed("max") {
		fmt.Fprintln(stderr, "Error: Both --min and --max must be specified together.")
		return 1
	}
	opts.explicit = flags.Changed("min")

	logger := newLogger(stderr, opts.verbose || os.Getenv("RASTER2RGB_LOG_LEVEL") == "debug")
	logger.Printf("raster2rgb v%s (built %s, commit %s)", Version, BuildTime, GitCommit)

	if err := convert(opts, stdout, logger); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// newLogger returns a stderr logger, or a silent one unless debug is set.
func newLogger(w io.Writer, debug bool) *log.Logger {
	if !debug {
		return log.New(io.Discard, "", 0)
	}
	return log.New(w, "", log.Ldate|log.Ltime)
}

func convert(opts options, stdout io.Writer, logger *log.Logger) error {
	src, err := georgb.Open(opts.input)
	if err != nil {
		return err
	}
	defer src.Close()
	md := src.Metadata()
	logger.Printf("Opened %s: %dx%d, %d bands, %s", opts.input, md.Width, md.Height, md.BandCount, md.ElementType)

	var spec georgb.DomainSpec
	if opts.explicit {
		spec = georgb.ExplicitDomain(opts.min, opts.max)
	}
	convertOpts := []georgb.ConvertOption{georgb.WithLogger(logger)}
	if opts.strict {
		convertOpts = append(convertOpts, georgb.WithStrictDomain())
	}

	fmt.Fprintf(stdout, "Reading bands %d, %d, %d from %s\n", opts.red, opts.green, opts.blue, opts.input)
	sel := georgb.BandSelection{Red: opts.red, Green: opts.green, Blue: opts.blue}
	res, err := georgb.Convert(src, sel, spec, convertOpts...)
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "Writing 8-bit RGB GeoTIFF to %s\n", opts.output)
	worldPath, err := georgb.Publish(opts.output, res, georgb.OutputMetadata{
		Georeference: md.Georeference,
		GeoKeys:      md.GeoKeys,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Created world file: %s\n", worldPath)

	if opts.preview != "" {
		if err := georgb.WritePreview(opts.preview, res.RGB, opts.previewSize); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Created preview: %s\n", opts.preview)
	}

	printSummary(stdout, md, res, opts.stats)
	return nil
}

func printSummary(w io.Writer, md georgb.Metadata, res *georgb.Result, withStats bool) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Conversion complete!")
	fmt.Fprintf(w, "Input: %d bands, %s\n", md.BandCount, md.ElementType)
	fmt.Fprintln(w, "Output: 3 bands (RGB), uint8")
	fmt.Fprintf(w, "Dimensions: %d x %d\n", md.Width, md.Height)
	if md.CRS != "" {
		fmt.Fprintf(w, "CRS: %s\n", md.CRS)
	}
	if md.Georeference != nil {
		b := res.Georeference.Bounds(md.Width, md.Height)
		fmt.Fprintf(w, "Bounds: %s, %s, %s, %s\n", coord(b.Min.X()), coord(b.Min.Y()), coord(b.Max.X()), coord(b.Max.Y()))
	}
	fmt.Fprintf(w, "Scaling range: %s\n", res.Domain)

	if !withStats {
		return
	}
	fmt.Fprintln(w, "Statistics:")
	for c, s := range res.Stats {
		name := [3]string{"Red", "Green", "Blue"}[c]
		if s.Count == 0 {
			fmt.Fprintf(w, "  %-5s  no valid samples\n", name)
			continue
		}
		fmt.Fprintf(w, "  %-5s  min=%g max=%g mean=%.4f stddev=%.4f valid=%d\n",
			name, s.Min, s.Max, s.Mean, s.StdDev, s.Count)
	}
}

// coord formats a model coordinate without an exponent.
func coord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
