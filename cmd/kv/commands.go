package kv

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// namespace returns the namespace flag shared by all subcommands
func namespace() string {
	return viper.GetString("namespace")
}

// printJSON renders an API response for the terminal
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var (
	setCmd = &cobra.Command{
		Use:   "set [key] [value]",
		Short: "Sets the value for a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ttl, err := cmd.Flags().GetInt64("ttl")
			if err != nil {
				return err
			}
			resp, err := kvClient.Set(namespace(), args[0], args[1], ttl)
			if err != nil {
				return err
			}
			return printJSON(resp)
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Reads the value for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			value, found, err := kvClient.Get(namespace(), key)
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("key %q not found", key)
			}
			fmt.Println(value)
			return nil
		},
	}
	delCmd = &cobra.Command{
		Use:   "del [key]",
		Short: "Deletes a key value pair",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			deleted, err := kvClient.Delete(namespace(), key)
			if err != nil {
				return err
			}
			if !deleted {
				return fmt.Errorf("key %q not found", key)
			}
			fmt.Println("deleted successfully")
			return nil
		},
	}
	namespacesCmd = &cobra.Command{
		Use:   "namespaces",
		Short: "Lists all namespaces holding at least one entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := kvClient.Namespaces()
			if err != nil {
				return err
			}
			return printJSON(resp)
		},
	}
	sizeCmd = &cobra.Command{
		Use:   "size [namespace]",
		Short: "Prints the number of keys in a namespace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := kvClient.NamespaceSize(args[0])
			if err != nil {
				return err
			}
			return printJSON(resp)
		},
	}
	clearCmd = &cobra.Command{
		Use:   "clear [namespace]",
		Short: "Removes every key in a namespace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := kvClient.ClearNamespace(args[0])
			if err != nil {
				return err
			}
			return printJSON(resp)
		},
	}
	statsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Prints the store statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := kvClient.Stats(namespace())
			if err != nil {
				return err
			}
			return printJSON(resp)
		},
	}
	compactCmd = &cobra.Command{
		Use:   "compact",
		Short: "Triggers a write-ahead log compaction",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := kvClient.Compact()
			if err != nil {
				return err
			}
			return printJSON(resp)
		},
	}
	healthCmd = &cobra.Command{
		Use:   "health",
		Short: "Checks whether the server is healthy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := kvClient.Health()
			if err != nil {
				return err
			}
			return printJSON(resp)
		},
	}
	perfCmd = &cobra.Command{
		Use:   "perf",
		Short: "Prints the server's performance summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := kvClient.Performance()
			if err != nil {
				return err
			}
			return printJSON(resp)
		},
	}
)

func init() {
	// Add Flags for the set command
	setCmd.Flags().Int64("ttl", 0, "Time to live in seconds (0 = no expiry)")
}
