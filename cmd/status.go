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
	"io"
	"text/tabwriter"

	"github.com/blacktop/multipost/internal/app"
	"github.com/blacktop/multipost/internal/multipost"
	"github.com/spf13/cobra"
)

func newStatusCommand() *cobra.Command {
	var flags draftFlags

	cmd := &cobra.Command{
		Use:   "status [message]",
		Short: "Show which services can take a draft",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			draft, err := flags.build(cmd, args)
			if err != nil {
				return err
			}

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			return printStatuses(ctx, a, draft, cmd.OutOrStdout())
		},
	}
	flags.register(cmd)
	return cmd
}

func printStatuses(ctx context.Context, a *app.App, draft *multipost.Draft, out io.Writer) error {
	names := a.Registry.Names()
	if err := a.Stores.LoadAll(ctx, serviceKeys(names)); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SERVICE\tSTATUS\tREASON")
	for _, adapter := range a.Registry.Adapters(a.Stores) {
		st := adapter.Status(draft)
		fmt.Fprintf(tw, "%s\t%s\t%s\n", st.Service, st.Kind, st.Reason)
	}
	return tw.Flush()
}

func serviceKeys(names []multipost.ServiceName) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = string(n)
	}
	return out
}
