/*
Copyright © 2025 blacktop

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/
package cmd

import (
	"context"
	"fmt"

	"github.com/blacktop/multipost/internal/app"
	"github.com/blacktop/multipost/internal/config"
	"github.com/blacktop/multipost/internal/logutil"
	"github.com/spf13/cobra"
)

var (
	configPath  string
	verboseFlag bool
)

// Execute runs the root command.
func Execute() error {
	return newRootCommand().Execute()
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "multipost",
		Short: "Mirror one post to many social networks",
		Long: "multipost publishes the same draft to Bluesky, Mastodon and X, and opens the " +
			"Twitter compose window for the deep-link flow. Run `multipost serve` to accept " +
			"drafts from the browser extension.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			logutil.SetVerbose(verboseFlag)
		},
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default "+config.DefaultPath()+")")
	cmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "V", false, "Enable debug logging")

	cmd.AddCommand(
		newPostCommand(),
		newStatusCommand(),
		newWatchCommand(),
		newPauseCommand(true),
		newPauseCommand(false),
		newLoginCommand(),
		newServeCommand(),
		newComposeCommand(),
		newTokenCommand(),
	)

	return cmd
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func openApp(ctx context.Context) (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return app.Open(ctx, cfg)
}
