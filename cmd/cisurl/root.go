package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/joeychilson/cisurl/client"
	"github.com/joeychilson/cisurl/config"
	"github.com/joeychilson/cisurl/logger"
)

type rootOptions struct {
	configFile string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "cisurl",
		Short: "cisurl - translate UIUC course catalog URLs",
		Long: `cisurl converts CIS API documentation URLs into explorer URLs and explorer
course URLs into public search pages.

Usage:
  cisurl fix <url> [flags]
  cisurl convert <url> [flags]`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "YAML config file")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log debug output to stderr")

	cmd.AddCommand(newFixCmd(opts), newConvertCmd(opts))
	return cmd
}

// newClient builds a client from --config, or from defaults when it is unset.
func (o *rootOptions) newClient(timeout time.Duration) (*client.Client, error) {
	cfg := config.New()
	if o.configFile != "" {
		var err error
		if cfg, err = config.LoadConfig(o.configFile); err != nil {
			return nil, err
		}
	}
	if timeout > 0 {
		cfg.Fetch.Timeout = timeout
	}

	c, err := client.New(cfg)
	if err != nil {
		return nil, err
	}

	if o.verbose {
		log, err := logger.NewWithOptions(os.Stderr, "debug", "text")
		if err != nil {
			return nil, err
		}
		c.WithLogger(log)
	}
	return c, nil
}

func newFixCmd(opts *rootOptions) *cobra.Command {
	var cascade bool

	cmd := &cobra.Command{
		Use:   "fix <url>",
		Short: "Convert a CIS API documentation URL into an explorer URL",
		Long: `Fix rewrites a CIS API documentation URL into the equivalent explorer URL with
an .xml suffix.

Examples:
  cisurl fix http://courses.illinois.edu/cisapi/schedule/2012/spring
  cisurl fix "https://courses.illinois.edu/cisapi/schedule/courses?year=2012&term=spring" --cascade`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.newClient(0)
			if err != nil {
				return err
			}
			defer c.Close()

			fixed, err := c.Fix(args[0], cascade)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), fixed)
			return nil
		},
	}

	cmd.Flags().BoolVar(&cascade, "cascade", false, "Add mode=cascade to the query")
	return cmd
}

func newConvertCmd(opts *rootOptions) *cobra.Command {
	var (
		verify  bool
		asJSON  bool
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "convert <url>",
		Short: "Convert an explorer course URL into its search page URL",
		Long: `Convert turns an explorer course URL into the public search page for the course.
By default the URL shape is checked offline. With --verify the URL is fetched once and
must return a course page.

Examples:
  cisurl convert https://courses.illinois.edu/cisapp/explorer/schedule/2012/spring/AAS/120.xml
  cisurl convert https://courses.illinois.edu/cisapp/explorer/schedule/2012/spring/AAS/120.xml --verify --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.newClient(timeout)
			if err != nil {
				return err
			}
			defer c.Close()

			mode := client.ModeStrict
			if verify {
				mode = client.ModeVerify
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			result, err := c.Convert(ctx, args[0], mode)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetEscapeHTML(false)
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}

			fmt.Fprintln(cmd.OutOrStdout(), result.URL)
			return nil
		},
	}

	cmd.Flags().BoolVar(&verify, "verify", false, "Fetch the URL and require a course page")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full result as JSON")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Request timeout for --verify (default 30s)")
	return cmd
}
