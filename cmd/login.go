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
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/blacktop/multipost/internal/multipost"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

type credentialField struct {
	key      string
	prompt   string
	secret   bool
	optional bool
}

var credentialFields = map[multipost.ServiceName][]credentialField{
	multipost.Bluesky: {
		{key: "username", prompt: "Handle"},
		{key: "password", prompt: "App password", secret: true},
		{key: "pds", prompt: "PDS URL (blank for default)", optional: true},
	},
	multipost.Mastodon: {
		{key: "server", prompt: "Server"},
		{key: "access_token", prompt: "Access token", secret: true},
	},
	multipost.X: {
		{key: "api_key", prompt: "API key"},
		{key: "api_secret", prompt: "API secret", secret: true},
		{key: "access_token", prompt: "Access token"},
		{key: "access_secret", prompt: "Access token secret", secret: true},
	},
}

func newLoginCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "login <service>",
		Short: "Store credentials for a service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			targets, err := normalizeTargets(args)
			if err != nil {
				return err
			}
			service := targets[0]
			fields, ok := credentialFields[service]
			if !ok {
				return fmt.Errorf("%s does not take credentials", service)
			}

			creds, err := promptCredentials(cmd.InOrStdin(), cmd.ErrOrStderr(), fields)
			if err != nil {
				return err
			}

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Stores.Get(string(service)).SetCredentials(ctx, creds); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved %s credentials\n", service)
			return nil
		},
	}
}

func promptCredentials(in io.Reader, prompt io.Writer, fields []credentialField) (map[string]string, error) {
	reader := bufio.NewReader(in)
	creds := make(map[string]string, len(fields))
	for _, f := range fields {
		fmt.Fprintf(prompt, "%s: ", f.prompt)

		var value string
		if file, ok := in.(*os.File); ok && f.secret && term.IsTerminal(int(file.Fd())) {
			raw, err := term.ReadPassword(int(file.Fd()))
			fmt.Fprintln(prompt)
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", f.key, err)
			}
			value = string(raw)
		} else {
			line, err := reader.ReadString('\n')
			if err != nil && (err != io.EOF || line == "") {
				if f.optional && err == io.EOF {
					continue
				}
				return nil, fmt.Errorf("read %s: %w", f.key, err)
			}
			value = line
		}

		value = strings.TrimSpace(value)
		if value == "" {
			if f.optional {
				continue
			}
			return nil, fmt.Errorf("%s is required", f.key)
		}
		creds[f.key] = value
	}
	return creds, nil
}
