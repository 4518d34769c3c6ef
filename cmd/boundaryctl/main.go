package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"runtime/debug"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/samirrijal/siteboundary/internal/core/domain"
	"github.com/samirrijal/siteboundary/internal/core/usecases"
	"github.com/samirrijal/siteboundary/internal/pkg/logging"
)

var errInvalidPolygon = errors.New("polygon failed validation")

var exampleUsage = strings.TrimSpace(`
  boundaryctl convert site.kml --to geojson > site.geojson
  boundaryctl convert boundary.txt --from wkt --to csv -o boundary.csv
  boundaryctl validate walk.gpx
  boundaryctl formats
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	// stdout carries converted files, so logs go to stderr.
	slog.SetDefault(logging.New(os.Stderr, "warn", "text"))
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "boundaryctl",
		Short:         "Convert and validate site boundary files offline",
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newConvertCmd(), newValidateCmd(), newFormatsCmd())
	return root
}

// newService returns a service without persistence or events. Only its codec
// and validation paths are used.
func newService(cfg usecases.ValidatorConfig) *usecases.BoundaryService {
	return usecases.NewBoundaryService(nil, nil, nil, nil, nil, usecases.BoundaryConfig{Validator: cfg})
}

func newConvertCmd() *cobra.Command {
	var from, to, out string

	cmd := &cobra.Command{
		Use:   "convert <file>",
		Short: "Decode a boundary file and write it in another format",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := domain.ParseFormat(to)
			if err != nil {
				return err
			}
			svc := newService(usecases.ValidatorConfig{})
			p, _, err := decodeFile(cmd.Context(), svc, args[0], from)
			if err != nil {
				return err
			}

			sessionID := "boundaryctl"
			if _, err := svc.Apply(cmd.Context(), sessionID, p, false); err != nil {
				return err
			}
			data, err := svc.Export(cmd.Context(), sessionID, target)
			if err != nil {
				return err
			}

			if out == "" || out == "-" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			return os.WriteFile(out, data, 0o644)
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "input format (default: from the file extension)")
	cmd.Flags().StringVar(&to, "to", "", "output format: geojson, kml, csv or wkt")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default: stdout)")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func newValidateCmd() *cobra.Command {
	var (
		from   string
		asJSON bool
		cfg    = usecases.DefaultValidatorConfig()
	)

	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Check a boundary file against the vertex, self-intersection and area rules",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := newService(cfg)
			p, f, err := decodeFile(cmd.Context(), svc, args[0], from)
			if err != nil {
				return err
			}
			report := svc.Validate(p)
			summary := usecases.Summarize(p)

			w := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				if err := enc.Encode(map[string]interface{}{
					"format":     f,
					"validation": report,
					"summary":    summary,
				}); err != nil {
					return err
				}
			} else {
				printReport(w, f, report, summary)
			}

			if !report.Valid {
				return errInvalidPolygon
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "input format (default: from the file extension)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	cmd.Flags().Float64Var(&cfg.MinAreaM2, "min-area", cfg.MinAreaM2, "minimum area in square metres")
	cmd.Flags().Float64Var(&cfg.MaxAreaM2, "max-area", cfg.MaxAreaM2, "maximum area in square metres")
	return cmd
}

func newFormatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "List supported formats",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "FORMAT\tDECODE\tENCODE\tEXTENSIONS")
			for _, c := range newService(usecases.ValidatorConfig{}).Capabilities() {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.Format, yesNo(c.Decode), yesNo(c.Encode), strings.Join(c.Extensions, " "))
			}
			return tw.Flush()
		},
	}
}

// decodeFile reads path and decodes it as from, or by its extension when
// from is empty.
func decodeFile(ctx context.Context, svc *usecases.BoundaryService, path, from string) (domain.BoundaryPolygon, domain.Format, error) {
	var f domain.Format
	if from != "" {
		parsed, err := domain.ParseFormat(from)
		if err != nil {
			return domain.BoundaryPolygon{}, "", err
		}
		f = parsed
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return domain.BoundaryPolygon{}, "", fmt.Errorf("read %s: %w", path, err)
	}
	return svc.Decode(ctx, f, path, data)
}

func printReport(w io.Writer, f domain.Format, report domain.ValidationReport, s domain.BoundarySummary) {
	fmt.Fprintf(w, "format:    %s\n", f)
	fmt.Fprintf(w, "vertices:  %d\n", s.VertexCount)
	fmt.Fprintf(w, "area:      %.2f ha (%.0f m²)\n", s.AreaHectares, s.AreaM2)
	fmt.Fprintf(w, "perimeter: %.1f m\n", s.PerimeterM)
	fmt.Fprintf(w, "centroid:  %.6f, %.6f\n", s.Centroid.Lat, s.Centroid.Lon)
	if report.Valid {
		fmt.Fprintln(w, "valid:     yes")
		return
	}
	fmt.Fprintln(w, "valid:     no")
	for _, e := range report.Errors {
		fmt.Fprintf(w, "  - %s\n", e)
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
