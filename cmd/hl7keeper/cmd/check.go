package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/solatis/hl7keeper/internal/rules"
	"github.com/solatis/hl7keeper/internal/types"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check <file>",
	Short: "Check a rule set document against the built-in rule set schema",
	Long: `Check evaluates a rule set document (JSON or YAML) against the built-in
rule set schema, then compiles every member. The verdict is printed as JSON.
Exits non-zero when the document is rejected.`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the built-in rule set schema",
	Args:  cobra.NoArgs,
	RunE:  runSchema,
}

func init() {
	rootCmd.AddCommand(checkCmd, schemaCmd)
}

// readDocument loads a JSON or YAML document. .yaml and .yml files are
// decoded as YAML, anything else as JSON.
func readDocument(path string) (types.Value, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.Value{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var doc types.Value
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		doc, err = types.ParseYAML(data)
	default:
		doc, err = types.ParseJSON(data)
	}
	if err != nil {
		return types.Value{}, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	doc, err := readDocument(args[0])
	if err != nil {
		return err
	}

	sets, verdict, err := rules.NewEngine().CompileRuleSets(doc)
	if err != nil {
		return err
	}
	if err := printJSON(cmd, verdict); err != nil {
		return err
	}
	if !verdict.Valid {
		return fmt.Errorf("rule set document rejected with %d failure(s)", len(verdict.Failures))
	}
	for _, rs := range sets {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s: %d node(s), cost %d\n", rs.Name, rs.Schema.NodeCount(), rs.Schema.Cost())
	}
	return nil
}

func runSchema(cmd *cobra.Command, args []string) error {
	return printJSON(cmd, rules.NewEngine().RuleSetSchema().Document())
}
