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
	"os"
	"os/signal"
	"syscall"

	"github.com/blacktop/multipost/internal/logutil"
	"github.com/blacktop/multipost/internal/server"
	"github.com/spf13/cobra"
)

func newServeCommand() *cobra.Command {
	var (
		addr     string
		jsonLogs bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Accept drafts from the browser extension",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logutil.SetJSON(jsonLogs)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			cfg := a.Config.Server
			if addr != "" {
				cfg.Addr = addr
			}

			if cfg.TokenSecret == "" {
				logutil.Warnf("no token secret configured: /v1 is open to any local client and to origins %v", cfg.AllowedOrigins)
			}

			srv := server.New(cfg, server.Deps{
				Registry:   a.Registry,
				Stores:     a.Stores,
				Dispatcher: a.Dispatcher,
				Registerer: a.Metrics,
				Gatherer:   a.Metrics,
			})
			return srv.ListenAndServe(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides config)")
	cmd.Flags().BoolVar(&jsonLogs, "json-logs", false, "Write logs as JSON lines")
	return cmd
}
