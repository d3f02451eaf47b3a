package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/solatis/hl7keeper/internal/core/store"
	"github.com/solatis/hl7keeper/internal/rules"
	"github.com/solatis/hl7keeper/internal/types"
	"github.com/spf13/cobra"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage stored rule sets",
}

var rulesPutCmd = &cobra.Command{
	Use:   "put <profile> <file>",
	Short: "Store every rule set of a document under a profile",
	Args:  cobra.ExactArgs(2),
	RunE:  runRulesPut,
}

var rulesGetCmd = &cobra.Command{
	Use:   "get <profile> <ruleset>",
	Short: "Print the current revision of a rule set",
	Args:  cobra.ExactArgs(2),
	RunE:  runRulesGet,
}

var rulesListCmd = &cobra.Command{
	Use:   "list [profile]",
	Short: "List profiles, or the rule sets of one profile",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRulesList,
}

var rulesHistoryCmd = &cobra.Command{
	Use:   "history <profile> <ruleset>",
	Short: "List revisions of a rule set, newest first",
	Args:  cobra.ExactArgs(2),
	RunE:  runRulesHistory,
}

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.AddCommand(rulesPutCmd, rulesGetCmd, rulesListCmd, rulesHistoryCmd)
	rulesPutCmd.Flags().String("author", "cli", "author recorded with the new revisions")
	rulesHistoryCmd.Flags().Int("limit", 20, "maximum number of revisions")
}

func openStore(cmd *cobra.Command) (*store.SQLStore, func(), error) {
	database, err := openDatabase(cmd.Context(), cmd, true)
	if err != nil {
		return nil, nil, err
	}
	s, err := store.NewSQLStore(database)
	if err != nil {
		database.Close()
		return nil, nil, err
	}
	return s, func() { database.Close() }, nil
}

func runRulesPut(cmd *cobra.Command, args []string) error {
	profile := types.Profile(args[0])
	doc, err := readDocument(args[1])
	if err != nil {
		return err
	}
	author, _ := cmd.Flags().GetString("author")

	sets, verdict, err := rules.NewEngine().CompileRuleSets(doc)
	if err != nil {
		return err
	}
	if !verdict.Valid {
		if err := printJSON(cmd, verdict); err != nil {
			return err
		}
		return fmt.Errorf("rule set document rejected with %d failure(s)", len(verdict.Failures))
	}

	s, closeDB, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer closeDB()

	req := store.PutRequest{Profile: profile, Author: author}
	for _, rs := range sets {
		req.RuleSets = append(req.RuleSets, store.RawRuleSet{Name: rs.Name, Document: rs.Document})
	}
	snaps, err := s.PutRuleSets(cmd.Context(), req)
	if err != nil {
		return err
	}
	for _, snap := range snaps {
		fmt.Fprintf(cmd.OutOrStdout(), "%s/%s\t%s\n", snap.Profile, snap.RuleSet, snap.Revision)
	}
	return nil
}

func runRulesGet(cmd *cobra.Command, args []string) error {
	s, closeDB, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer closeDB()

	snap, err := s.GetSchema(cmd.Context(), types.Profile(args[0]), types.RuleSetName(args[1]))
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "revision %s by %s at %s\n", snap.Revision, snap.Author, snap.UpdatedAt.Format(time.RFC3339))
	return printJSON(cmd, snap.Document)
}

func runRulesList(cmd *cobra.Command, args []string) error {
	s, closeDB, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer closeDB()

	out := cmd.OutOrStdout()
	if len(args) == 0 {
		profiles, err := s.ListProfiles(cmd.Context())
		if err != nil {
			return err
		}
		for _, p := range profiles {
			fmt.Fprintln(out, p)
		}
		return nil
	}

	names, err := s.ListRuleSets(cmd.Context(), types.Profile(args[0]))
	if err != nil {
		return err
	}
	for _, n := range names {
		fmt.Fprintf(out, "%s\t%s\n", n, rules.CategoryOf(n))
	}
	return nil
}

func runRulesHistory(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	s, closeDB, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer closeDB()

	revisions, err := s.History(cmd.Context(), types.Profile(args[0]), types.RuleSetName(args[1]), limit)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "REVISION\tAUTHOR\tCREATED AT")
	for _, r := range revisions {
		fmt.Fprintf(w, "%s\t%s\t%s\n", r.Revision, r.Author, r.CreatedAt.Format(time.RFC3339))
	}
	return w.Flush()
}
