package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jwebster45206/lingua-quest/pkg/contract"
)

var contractVersion string

var rootCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check narrator replies and session seeds",
	Long: `Validate decodes narrator replies against a response contract, prints
contract schemas and checks session seed files before they are posted to the api.`,
	SilenceUsage: true,
}

var decodeCmd = &cobra.Command{
	Use:   "decode <reply-file|->",
	Short: "Decode a narrator reply and show what the player would see",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := readInput(cmd.InOrStdin(), args[0])
		if err != nil {
			return err
		}
		return decodeReply(cmd.OutOrStdout(), contractVersion, string(data))
	},
}

var schemaCmd = &cobra.Command{
	Use:   "schema [version]",
	Short: "Print the JSON schema of a response contract",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		version := contract.DefaultVersion
		if len(args) == 1 {
			version = args[0]
		}
		schema, err := contract.Schema(version)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(schema))
		return err
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed <seed.json>",
	Short: "Strictly check a session seed file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := readInput(cmd.InOrStdin(), args[0])
		if err != nil {
			return err
		}
		validator := &SeedValidator{}
		if err := validator.Validate(data); err != nil {
			return fmt.Errorf("validation failed for %s: %w", args[0], err)
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), "Seed file is valid!")
		return err
	},
}

func init() {
	decodeCmd.Flags().StringVarP(&contractVersion, "contract", "c", contract.DefaultVersion, "Response contract version")

	rootCmd.AddCommand(decodeCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(seedCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// readInput reads a file, or stdin when name is "-".
func readInput(stdin io.Reader, name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", name, err)
	}
	return data, nil
}
