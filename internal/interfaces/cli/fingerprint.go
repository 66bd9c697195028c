package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	domainMol "github.com/turtacn/molcore/internal/domain/molecule"
)

// FingerprintResult is the output of the fp command.
type FingerprintResult struct {
	Type        string `json:"type"`
	Length      int    `json:"length"`
	NumOnBits   int    `json:"num_on_bits"`
	Fingerprint string `json:"fingerprint"`
}

type fingerprintFlags struct {
	kind        string
	radius      int
	bits        int
	minPath     int
	maxPath     int
	bitsPerHash int
}

func newFingerprintCmd() *cobra.Command {
	f := &fingerprintFlags{}
	cmd := &cobra.Command{
		Use:     "fp <structure|->",
		Aliases: []string{"fingerprint"},
		Short:   "Compute a circular or path fingerprint",
		Long: "fp prints the fingerprint as a string of '0' and '1' characters, bit 0\n" +
			"first. Unset parameters come from the chem section of the configuration.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFingerprint(cmd, f, args[0])
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.kind, "type", "circular", "fingerprint type: circular (morgan) or path (topological)")
	fl.IntVar(&f.radius, "radius", 0, "circular: number of neighbourhood iterations")
	fl.IntVar(&f.bits, "bits", 0, "fingerprint length in bits")
	fl.IntVar(&f.minPath, "min-path", 0, "path: shortest path length in bonds")
	fl.IntVar(&f.maxPath, "max-path", 0, "path: longest path length in bonds")
	fl.IntVar(&f.bitsPerHash, "bits-per-hash", 0, "path: bits set per path")
	return cmd
}

// options merges the flags the user set over defaults and validates the
// options of the selected type.
func (f *fingerprintFlags) options(cmd *cobra.Command, defaults domainMol.CircularOptions, pathDefaults domainMol.PathOptions) (domainMol.FingerprintType, domainMol.CircularOptions, domainMol.PathOptions, error) {
	kind, err := domainMol.ParseFingerprintType(f.kind)
	if err != nil {
		return kind, defaults, pathDefaults, err
	}
	set := func(name string, dst *int, v int) {
		if cmd.Flags().Changed(name) {
			*dst = v
		}
	}
	circ, path := defaults, pathDefaults
	set("radius", &circ.Radius, f.radius)
	set("bits", &circ.Bits, f.bits)
	set("bits", &path.Bits, f.bits)
	set("min-path", &path.MinPath, f.minPath)
	set("max-path", &path.MaxPath, f.maxPath)
	set("bits-per-hash", &path.BitsPerHash, f.bitsPerHash)

	if kind == domainMol.FingerprintCircular {
		err = circ.Validate()
	} else {
		err = path.Validate()
	}
	return kind, circ, path, err
}

func runFingerprint(cmd *cobra.Command, f *fingerprintFlags, arg string) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	svc, err := cliCtx.Service()
	if err != nil {
		return err
	}
	opts := svc.Options()
	kind, circ, path, err := f.options(cmd, opts.Circular, opts.Path)
	if err != nil {
		return err
	}
	text, err := readStructure(cmd, arg)
	if err != nil {
		return err
	}

	h := svc.ParseMolecule(text)
	if !h.IsValid() {
		return invalidStructure("structure", h)
	}
	var bits string
	if kind == domainMol.FingerprintCircular {
		bits = h.FingerprintCircular(circ)
	} else {
		bits = h.FingerprintPath(path)
	}

	if cliCtx.OutputFormat == "json" {
		return printJSON(cmd, FingerprintResult{
			Type:        kind.String(),
			Length:      len(bits),
			NumOnBits:   strings.Count(bits, "1"),
			Fingerprint: bits,
		})
	}
	fmt.Fprintln(cmd.OutOrStdout(), bits)
	return nil
}

// SimilarityResult is the output of the similarity command.
type SimilarityResult struct {
	Type   string  `json:"type"`
	Metric string  `json:"metric"`
	Score  float64 `json:"score"`
}

func newSimilarityCmd() *cobra.Command {
	var kind, metric string
	cmd := &cobra.Command{
		Use:     "similarity <structure> <structure>",
		Aliases: []string{"sim"},
		Short:   "Compare two structures by fingerprint similarity",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			svc, err := cliCtx.Service()
			if err != nil {
				return err
			}
			fpType, err := domainMol.ParseFingerprintType(kind)
			if err != nil {
				return err
			}
			m, err := domainMol.ParseSimilarityMetric(metric)
			if err != nil {
				return err
			}

			a := svc.ParseMolecule(args[0])
			if !a.IsValid() {
				return invalidStructure("first structure", a)
			}
			b := svc.ParseMolecule(args[1])
			if !b.IsValid() {
				return invalidStructure("second structure", b)
			}
			score, err := svc.Similarity(a, b, fpType, m)
			if err != nil {
				return err
			}

			if cliCtx.OutputFormat == "json" {
				return printJSON(cmd, SimilarityResult{Type: fpType.String(), Metric: m.String(), Score: score})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%.4f\n", score)
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "type", "circular", "fingerprint type: circular or path")
	cmd.Flags().StringVar(&metric, "metric", "tanimoto", "similarity metric: tanimoto or dice")
	return cmd
}
