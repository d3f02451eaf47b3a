package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/solatis/hl7keeper/internal/core/api"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

var validateCmd = &cobra.Command{
	Use:   "validate <profile> <file>",
	Short: "Classify a JSON or YAML message with a running server",
	Long: `Validate sends a message to a running rules API and prints the
classification report: validity, error and warning counts, PII flag and the
verdict of every rule set of the profile.`,
	Args: cobra.ExactArgs(2),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().String("server", "localhost:50051", "rules API address")
	validateCmd.Flags().Duration("timeout", 10*time.Second, "request timeout")
}

func runValidate(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("server")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	message, err := readDocument(args[1])
	if err != nil {
		return err
	}
	encoded, err := message.MarshalJSON()
	if err != nil {
		return err
	}

	cc, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	defer cc.Close()

	req, err := structpb.NewStruct(map[string]interface{}{
		"profile": args[0],
		"message": string(encoded),
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()
	report, err := api.NewRulesAPIClient(cc).ValidateMessage(ctx, req)
	if err != nil {
		return err
	}

	out, err := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(report)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	if !report.GetFields()["valid"].GetBoolValue() {
		return fmt.Errorf("message is invalid")
	}
	return nil
}
