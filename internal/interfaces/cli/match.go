package cli

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/turtacn/molcore/pkg/errors"
)

// MatchResult is the output of the match command.
type MatchResult struct {
	Matches bool        `json:"matches"`
	Atoms   map[int]int `json:"atoms,omitempty"`
}

func newMatchCmd() *cobra.Command {
	var target, query string
	var showAtoms bool

	cmd := &cobra.Command{
		Use:   "match --target <structure|-> --query <smarts|molfile>",
		Short: "Test whether a query substructure occurs in a target structure",
		Long: "match prints \"true\" or \"false\". The query is SMARTS, or a molfile\n" +
			"whose atoms and bonds are matched as a pattern. --atoms prints the first\n" +
			"embedding as query atom to target atom pairs.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMatch(cmd, target, query, showAtoms)
		},
	}
	cmd.Flags().StringVarP(&target, "target", "t", "", "target structure, SMILES or molfile; \"-\" reads stdin [REQUIRED]")
	cmd.Flags().StringVarP(&query, "query", "q", "", "query SMARTS or molfile [REQUIRED]")
	cmd.Flags().BoolVar(&showAtoms, "atoms", false, "print the atom mapping of the first match")
	_ = cmd.MarkFlagRequired("target")
	_ = cmd.MarkFlagRequired("query")
	return cmd
}

func runMatch(cmd *cobra.Command, targetArg, queryArg string, showAtoms bool) error {
	if queryArg == "-" {
		return errors.InvalidParam("only the target may be read from stdin")
	}
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	svc, err := cliCtx.Service()
	if err != nil {
		return err
	}
	text, err := readStructure(cmd, targetArg)
	if err != nil {
		return err
	}

	target := svc.ParseMolecule(text)
	if !target.IsValid() {
		return invalidStructure("target", target)
	}
	query := svc.ParseQuery(queryArg)
	if !query.IsValid() {
		return invalidStructure("query", query)
	}

	atoms := target.MatchAtoms(query)
	res := MatchResult{Matches: atoms != nil}
	if showAtoms {
		res.Atoms = atoms
	}
	if cliCtx.OutputFormat == "json" {
		return printJSON(cmd, res)
	}

	if res.Matches {
		fmt.Fprintln(cmd.OutOrStdout(), color.GreenString("true"))
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), color.YellowString("false"))
	}
	if showAtoms && res.Matches {
		keys := make([]int, 0, len(atoms))
		for k := range atoms {
			keys = append(keys, k)
		}
		sort.Ints(keys)
		rows := make([][]string, 0, len(keys))
		for _, k := range keys {
			rows = append(rows, []string{strconv.Itoa(k), strconv.Itoa(atoms[k])})
		}
		fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"Query atom", "Target atom"}, rows))
	}
	return nil
}
