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
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/blacktop/multipost/internal/app"
	"github.com/blacktop/multipost/internal/deeplink"
	"github.com/blacktop/multipost/internal/dispatch"
	"github.com/blacktop/multipost/internal/linkcard"
	"github.com/blacktop/multipost/internal/multipost"
	"github.com/blacktop/multipost/internal/scan"
	"github.com/spf13/cobra"
)

var allTargets = []multipost.ServiceName{
	multipost.Bluesky,
	multipost.Mastodon,
	multipost.X,
	multipost.Taittsuu,
	multipost.Twitter,
}

type draftFlags struct {
	message    string
	images     []string
	linkDomain string
	draftPath  string
}

func (f *draftFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.message, "message", "m", "", "Message text to post")
	cmd.Flags().StringSliceVar(&f.images, "image", nil, "Image path or URL to attach (repeatable)")
	cmd.Flags().StringVar(&f.linkDomain, "link-card", "", "Domain of the link to render as a card")
	cmd.Flags().StringVar(&f.draftPath, "draft", "", "Read the draft from a YAML or text file")
}

func newPostCommand() *cobra.Command {
	var (
		flags   draftFlags
		targets []string
		dryRun  bool
	)

	cmd := &cobra.Command{
		Use:   "post [message]",
		Short: "Post a draft to the selected services",
		Args:  cobra.ArbitraryArgs,
		Example: `  multipost post "hello world" --image ./shot.png
  multipost post "Ship it!" --target bluesky --target twitter
  echo "Release shipped" | multipost post --target all`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			draft, err := flags.build(cmd, args)
			if err != nil {
				return err
			}
			services, err := normalizeTargets(targets)
			if err != nil {
				return err
			}

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			eligible, err := eligibleServices(ctx, a, draft, services, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if dryRun {
				for _, service := range eligible {
					fmt.Fprintf(out, "[dry-run] would post to %s: %q\n", service, draft.Text)
				}
				return nil
			}

			return submit(ctx, a, draft, eligible, out)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringSliceVarP(&targets, "target", "t", []string{"bluesky", "twitter"}, "Targets to post to (bluesky, mastodon, x, taittsuu, twitter, or all)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print actions without posting")
	cmd.Flags().SortFlags = false

	return cmd
}

// submit drives one submission through the submit state machine.
func submit(ctx context.Context, a *app.App, draft *multipost.Draft, services []multipost.ServiceName, out io.Writer) error {
	var (
		submitter dispatch.Submitter
		failures  []error
	)
	submitter.Ready()

	sink := dispatch.SinkFunc(func(_ context.Context, msg multipost.Message) error {
		switch msg.Type {
		case multipost.MessageSuccess:
			if msg.URL != nil {
				fmt.Fprintf(out, "posted to %s: %s\n", msg.Service, *msg.URL)
			} else {
				fmt.Fprintf(out, "posted to %s\n", msg.Service)
			}
		case multipost.MessageError:
			fmt.Fprintf(out, "failed to post to %s: %s\n", msg.Service, msg.Message)
			failures = append(failures, fmt.Errorf("%s: %s", msg.Service, msg.Message))
		case multipost.MessageTweet:
			pageURL, _ := linkcard.FindURL(draft.Text, draft.LinkDomain)
			fmt.Fprintf(out, "compose on %s: %s\n", multipost.DeepLinkService, deeplink.ComposeURL(draft.Text, pageURL))
		}
		return nil
	})

	fmt.Fprintf(out, "%s...\n", dispatch.PhaseProcess.Label())
	err := submitter.Submit(ctx, len(services) > 0, func(ctx context.Context) error {
		return a.Dispatcher.Dispatch(ctx, draft, services, sink)
	})
	if errors.Is(err, dispatch.ErrNotReady) {
		return errors.New("no eligible services to post to")
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s\n", submitter.Phase().Label())
	return errors.Join(failures...)
}

// eligibleServices keeps the services whose status is Valid, reporting the rest.
func eligibleServices(ctx context.Context, a *app.App, draft *multipost.Draft, services []multipost.ServiceName, warn io.Writer) ([]multipost.ServiceName, error) {
	out := make([]multipost.ServiceName, 0, len(services))
	for _, service := range services {
		if service == multipost.DeepLinkService {
			if draft.HasContent() {
				out = append(out, service)
			}
			continue
		}
		adapter, ok := a.Adapter(service)
		if !ok {
			return nil, fmt.Errorf("target %q is not implemented", service)
		}
		if _, err := a.Stores.Get(string(service)).Load(ctx); err != nil {
			return nil, fmt.Errorf("%s: %w", service, err)
		}
		st := adapter.Status(draft)
		if st.Kind != multipost.StatusValid {
			fmt.Fprintf(warn, "skipping %s: %s %s\n", service, st.Kind, st.Reason)
			continue
		}
		out = append(out, service)
	}
	return out, nil
}

func (f *draftFlags) build(cmd *cobra.Command, args []string) (*multipost.Draft, error) {
	if f.draftPath != "" {
		if f.message != "" || len(args) > 0 {
			return nil, errors.New("provide the message either with --draft or as text, not both")
		}
		snap, err := scan.FileSource{Path: f.draftPath}.Snapshot()
		if err != nil {
			return nil, err
		}
		draft := scan.BuildDraft(snap)
		if draft == nil {
			return nil, fmt.Errorf("draft %s has no text", f.draftPath)
		}
		return draft, nil
	}

	message, err := resolveMessage(cmd, f.message, args, len(f.images) > 0)
	if err != nil {
		return nil, err
	}

	draft := &multipost.Draft{Text: message, LinkDomain: strings.TrimSpace(f.linkDomain)}
	for _, img := range f.images {
		ref, err := imageRef(img)
		if err != nil {
			return nil, err
		}
		draft.ImageURLs = append(draft.ImageURLs, ref)
	}
	return draft, nil
}

func resolveMessage(cmd *cobra.Command, flagValue string, args []string, allowEmpty bool) (string, error) {
	message := flagValue

	if len(args) > 0 {
		if message != "" {
			return "", errors.New("provide the message either as an argument or with --message, not both")
		}
		message = strings.Join(args, " ")
	}

	if message != "" {
		return strings.TrimSpace(message), nil
	}

	stdin := cmd.InOrStdin()
	if file, ok := stdin.(*os.File); ok {
		info, err := file.Stat()
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		if (info.Mode() & os.ModeCharDevice) == 0 {
			data, err := io.ReadAll(stdin)
			if err != nil {
				return "", fmt.Errorf("read stdin: %w", err)
			}
			message = strings.TrimSpace(string(data))
		}
	}

	if message == "" && !allowEmpty {
		return "", errors.New("message is required")
	}

	return message, nil
}

// normalizeTargets lowercases, dedups and validates targets, keeping the given order.
func normalizeTargets(values []string) ([]multipost.ServiceName, error) {
	byName := make(map[string]multipost.ServiceName, len(allTargets))
	for _, t := range allTargets {
		byName[strings.ToLower(string(t))] = t
	}

	result := make([]multipost.ServiceName, 0, len(values))
	seen := map[multipost.ServiceName]struct{}{}
	for _, raw := range values {
		raw = strings.TrimSpace(strings.ToLower(raw))
		if raw == "" {
			continue
		}
		if raw == "all" {
			return append([]multipost.ServiceName(nil), allTargets...), nil
		}
		target, ok := byName[raw]
		if !ok {
			return nil, fmt.Errorf("unsupported target %q", raw)
		}
		if _, ok := seen[target]; ok {
			continue
		}
		seen[target] = struct{}{}
		result = append(result, target)
	}

	if len(result) == 0 {
		return nil, errors.New("no targets selected")
	}
	return result, nil
}

// imageRef passes URLs through and inlines local files as data URLs.
func imageRef(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	for _, prefix := range []string{"http://", "https://", "data:"} {
		if strings.HasPrefix(ref, prefix) {
			return ref, nil
		}
	}
	data, err := os.ReadFile(ref)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("image %q not found", ref)
		}
		return "", fmt.Errorf("read image: %w", err)
	}
	return "data:" + http.DetectContentType(data) + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}
