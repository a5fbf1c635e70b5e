package main

import (
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/gogpu/stereossim"
	"github.com/gogpu/stereossim/internal/capture"
	"github.com/gogpu/stereossim/internal/config"
	"github.com/gogpu/stereossim/internal/exact"
)

var (
	reducerName   string
	targetSize    int
	threshold     float64
	captureDir    string
	captureFormat string
	verify        bool
)

var validateCmd = &cobra.Command{
	Use:   "validate <input-file> <width> <height> <layout-code>",
	Short: "Measure the SSIM between the eyes of an NV12 frame",
	Long: `Reads one NV12 frame, splits its luma plane into two eye regions
according to the layout code (0 = 2D, 1 = side-by-side, 2 = top-bottom)
and prints the global SSIM between them with a PASS or FAIL verdict.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(4)(cmd, args); err != nil {
			return usagef("%w", err)
		}
		return nil
	},
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringVar(&reducerName, "reducer", config.ReducerAuto, "Reducer: auto, gpu or software")
	validateCmd.Flags().IntVar(&targetSize, "target-size", stereossim.DefaultTargetSize, "Side of the reduction targets (power of two)")
	validateCmd.Flags().Float64Var(&threshold, "threshold", stereossim.DefaultThreshold, "SSIM at or above which the layout passes")
	validateCmd.Flags().StringVar(&captureDir, "capture-dir", "", "Dump every mip level into this directory")
	validateCmd.Flags().StringVar(&captureFormat, "capture-format", "raw", "Capture format: raw or tiff")
	validateCmd.Flags().BoolVar(&verify, "verify", false, "Also print the unquantized reference SSIM")

	rootCmd.AddCommand(validateCmd)
}

// validateArgs are the positional arguments of validate.
type validateArgs struct {
	path   string
	width  int
	height int
	layout stereossim.StereoLayout
}

func parseValidateArgs(args []string) (validateArgs, error) {
	if len(args) != 4 {
		return validateArgs{}, usagef("expected 4 arguments, got %d", len(args))
	}
	in := validateArgs{path: args[0]}

	var err error
	if in.width, err = strconv.Atoi(args[1]); err != nil || in.width <= 0 {
		return validateArgs{}, usagef("width %q is not a positive integer", args[1])
	}
	if in.height, err = strconv.Atoi(args[2]); err != nil || in.height <= 0 {
		return validateArgs{}, usagef("height %q is not a positive integer", args[2])
	}
	code, err := strconv.Atoi(args[3])
	if err != nil {
		return validateArgs{}, usagef("layout code %q is not an integer", args[3])
	}
	if in.layout, err = stereossim.LayoutFromCode(code); err != nil {
		return validateArgs{}, usagef("%w", err)
	}
	return in, nil
}

// applyFlags overrides c with the validate flags the user set.
func applyFlags(cmd *cobra.Command, c *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("reducer") {
		c.Reducer = reducerName
	}
	if flags.Changed("target-size") {
		c.TargetSize = targetSize
	}
	if flags.Changed("threshold") {
		c.Threshold = threshold
	}
	if flags.Changed("capture-dir") {
		c.Capture.Dir = captureDir
	}
	if flags.Changed("capture-format") {
		c.Capture.Format = captureFormat
	}
	if flags.Changed("verify") {
		c.Verify = verify
	}
	return c.Validate()
}

func runValidate(cmd *cobra.Command, args []string) error {
	in, err := parseValidateArgs(args)
	if err != nil {
		return err
	}
	c := *cfg
	if err := applyFlags(cmd, &c); err != nil {
		return usagef("%w", err)
	}

	frame, err := stereossim.LoadFrame(in.path, in.width, in.height)
	if err != nil {
		return usagef("%w", err)
	}

	opts := []stereossim.Option{
		stereossim.WithTargetSize(c.TargetSize),
		stereossim.WithThreshold(c.Threshold),
	}
	if c.Reducer != config.ReducerAuto {
		r, err := stereossim.NewReducer(c.Reducer)
		if err != nil {
			return failure(err)
		}
		opts = append(opts, stereossim.WithReducer(r))
	}
	var dumps *capture.Writer
	if c.Capture.Dir != "" {
		format, err := capture.ParseFormat(c.Capture.Format)
		if err != nil {
			return usagef("%w", err)
		}
		dumps = capture.NewWriter(c.Capture.Dir, format)
		opts = append(opts, stereossim.WithCapture(dumps.Func()))
	}

	v, err := stereossim.NewValidator(opts...)
	if err != nil {
		return failure(err)
	}
	defer v.Close()

	res, err := v.Validate(cmd.Context(), frame, in.layout)
	if err != nil {
		return failure(err)
	}

	var ref *float64
	if c.Verify {
		s, err := exact.SSIM(frame, in.layout, v.TargetSize())
		if err != nil {
			return failure(fmt.Errorf("reference SSIM: %w", err))
		}
		ref = &s
	}
	if dumps != nil {
		slog.Info("mip levels captured", "run", res.RunID, "files", len(dumps.Files()), "dir", c.Capture.Dir)
	}

	writeReport(cmd.OutOrStdout(), res, ref)
	return nil
}

// writeReport prints the validation result block.
func writeReport(w io.Writer, res stereossim.Result, ref *float64) {
	p := message.NewPrinter(language.English)
	p.Fprintf(w, "******\n")
	p.Fprintf(w, "Result:\n")
	p.Fprintf(w, "Selected stereo mode: %s\n", res.Layout.Name())
	p.Fprintf(w, "SSIM: %f\n", res.SSIM)
	if ref != nil {
		p.Fprintf(w, "Reference SSIM: %f\n", *ref)
	}
	p.Fprintf(w, "Time elapsed: %dus\n", res.Elapsed.Microseconds())
	p.Fprintf(w, "Stereo mode validation result: %s\n", res.Verdict())
}
