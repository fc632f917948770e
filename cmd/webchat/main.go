// Command webchat talks to the site's chat assistant from a terminal, using
// the same controller as the web widget.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var opts chatOptions

	cmd := &cobra.Command{
		Use:   "webchat",
		Short: "Chat with the site assistant from the terminal",
		Long: "Opens a webchat conversation. The API URL and key come from --api-url/--api-key, " +
			"or from the public /api/chat/config of the site given with --site.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.site, "site", "http://localhost:8080", "base URL of the site backend")
	cmd.Flags().StringVar(&opts.apiURL, "api-url", "", "webchat API URL (skips the site lookup)")
	cmd.Flags().StringVar(&opts.apiKey, "api-key", "", "webchat API key")
	cmd.Flags().StringVar(&opts.botName, "bot-name", "", "name shown for assistant replies")
	cmd.Flags().StringVar(&opts.name, "name", "", "visitor name for the contact form")
	cmd.Flags().StringVar(&opts.email, "email", "", "visitor email for the contact form")
	cmd.Flags().DurationVar(&opts.pollInterval, "poll", 0, "reply polling interval (default 2.5s)")
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
