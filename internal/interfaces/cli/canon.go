package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	molapp "github.com/turtacn/molcore/internal/application/molecule"
)

// CanonResult is the output of the canon command for one structure.
type CanonResult struct {
	Input     string `json:"input,omitempty"`
	Valid     bool   `json:"valid"`
	Format    string `json:"format"`
	Canonical string `json:"canonical,omitempty"`
	Formula   string `json:"formula,omitempty"`
	NumAtoms  int    `json:"num_atoms,omitempty"`
	Error     string `json:"error,omitempty"`
}

func newCanonCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "canon <structure|-> [structure...]",
		Short: "Write the canonical SMILES of one or more structures",
		Long: "canon parses each argument as SMILES or, when it spans lines, as an MDL\n" +
			"molfile, and prints its canonical SMILES. Pass \"-\" to read one structure\n" +
			"from stdin. Several arguments are processed as a batch.",
		Args: cobra.MinimumNArgs(1),
		RunE: runCanon,
	}
}

func runCanon(cmd *cobra.Command, args []string) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	svc, err := cliCtx.Service()
	if err != nil {
		return err
	}

	if len(args) == 1 {
		text, err := readStructure(cmd, args[0])
		if err != nil {
			return err
		}
		h := svc.ParseMolecule(text)
		res := canonResult(h)
		if cliCtx.OutputFormat == "json" {
			if err := printJSON(cmd, res); err != nil {
				return err
			}
		} else if res.Valid {
			fmt.Fprintln(cmd.OutOrStdout(), res.Canonical)
		}
		if !res.Valid {
			return invalidStructure("structure", h)
		}
		return nil
	}

	results, err := svc.BatchCanonical(cmd.Context(), args)
	if err != nil {
		return err
	}
	if cliCtx.OutputFormat == "json" {
		return printJSON(cmd, results)
	}
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		detail := r.Canonical
		if !r.Valid {
			detail = r.Error
		}
		rows = append(rows, []string{strconv.Itoa(r.Index + 1), r.Input, validLabel(r.Valid), detail})
	}
	fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"#", "Input", "Status", "Canonical SMILES"}, rows))
	return nil
}

func canonResult(h *molapp.Handle) CanonResult {
	res := CanonResult{Valid: h.IsValid(), Format: h.Format().String()}
	if !res.Valid {
		res.Error = molapp.ErrorText(h.Err())
		return res
	}
	res.Canonical = h.CanonicalSMILES()
	res.Formula = h.Formula()
	res.NumAtoms = h.NumAtoms()
	return res
}
