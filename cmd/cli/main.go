// Command nanocloud is a CLI client for the nanocloud REST API.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

const defaultServer = "http://localhost:5000"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// ---- utils ----

func readAll(p string) ([]byte, error) {
	if p == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(p)
}

func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

// detectContentType guesses from the extension first, then from the bytes.
func detectContentType(name string, data []byte) string {
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); t != "" {
		return t
	}
	return http.DetectContentType(data)
}

func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func printFiles(w io.Writer, fs []file) {
	if len(fs) == 0 {
		fmt.Fprintln(w, "no files")
		return
	}
	for _, f := range fs {
		flag := " "
		if f.IsPublic {
			flag = "P"
		}
		fmt.Fprintf(w, "%s  %s  %-10s  %s  %s\n",
			f.ID, flag, humanSize(f.FileSize), f.UploadDate.UTC().Format(time.RFC3339), f.OriginalFilename)
	}
}

// ---- commands ----

type globals struct {
	server  string
	timeout time.Duration
	asJSON  bool
}

func (g *globals) anon() *client { return newClient(g.server, "") }

func (g *globals) authed() (*client, error) {
	tok, err := loadToken(g.server)
	if err != nil {
		return nil, err
	}
	return newClient(g.server, tok), nil
}

func (g *globals) ctx(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), g.timeout)
}

func newRootCommand() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:           "nanocloud",
		Short:         "nanocloud file storage client",
		Version:       fmt.Sprintf("%s (%s)", version, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	server := os.Getenv("NANOCLOUD_URL")
	if server == "" {
		server = defaultServer
	}
	root.PersistentFlags().StringVar(&g.server, "server", server, "API base URL (env NANOCLOUD_URL)")
	root.PersistentFlags().DurationVar(&g.timeout, "timeout", 2*time.Minute, "request timeout")
	root.PersistentFlags().BoolVar(&g.asJSON, "json", false, "print raw JSON")

	collab := &cobra.Command{Use: "collab", Short: "Manage file collaborators"}
	collab.AddCommand(collabAddCmd(g), collabRmCmd(g), collabSetCmd(g))

	root.AddCommand(
		registerCmd(g), loginCmd(g), logoutCmd(), meCmd(g),
		lsCmd(g), sharedCmd(g), uploadCmd(g), downloadCmd(g), rmCmd(g),
		shareInfoCmd(g), publicCmd(g), collab, openCmd(g), summarizeCmd(g),
	)
	return root
}

func registerCmd(g *globals) *cobra.Command {
	var username, email, password string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and save the token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := g.ctx(cmd)
			defer cancel()
			res, err := g.anon().register(ctx, username, email, password)
			if err != nil {
				return err
			}
			if err := saveToken(g.server, res.Token, res.ExpiresAt); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "registered %s (%s)\n", res.User.Email, res.User.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "display name")
	cmd.Flags().StringVarP(&email, "email", "e", "", "email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func loginCmd(g *globals) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and save the token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := g.ctx(cmd)
			defer cancel()
			res, err := g.anon().login(ctx, email, password)
			if err != nil {
				return err
			}
			if err := saveToken(g.server, res.Token, res.ExpiresAt); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s, token valid until %s\n",
				res.User.Email, res.ExpiresAt.Local().Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved token",
		RunE: func(*cobra.Command, []string) error {
			return clearToken()
		},
	}
}

func meCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "me",
		Short: "Show the signed-in account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := g.authed()
			if err != nil {
				return err
			}
			ctx, cancel := g.ctx(cmd)
			defer cancel()
			u, err := c.me(ctx)
			if err != nil {
				return err
			}
			printJSON(cmd.OutOrStdout(), u)
			return nil
		},
	}
}

func lsCmd(g *globals) *cobra.Command {
	var query string
	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List your files, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := g.authed()
			if err != nil {
				return err
			}
			ctx, cancel := g.ctx(cmd)
			defer cancel()
			fs, err := c.list(ctx, query)
			if err != nil {
				return err
			}
			if g.asJSON {
				printJSON(cmd.OutOrStdout(), fs)
				return nil
			}
			printFiles(cmd.OutOrStdout(), fs)
			return nil
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "filter by name (case-insensitive substring)")
	return cmd
}

func sharedCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "shared",
		Short: "List files shared with you",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := g.authed()
			if err != nil {
				return err
			}
			ctx, cancel := g.ctx(cmd)
			defer cancel()
			fs, err := c.shared(ctx)
			if err != nil {
				return err
			}
			if g.asJSON {
				printJSON(cmd.OutOrStdout(), fs)
				return nil
			}
			printFiles(cmd.OutOrStdout(), fs)
			return nil
		},
	}
}

func uploadCmd(g *globals) *cobra.Command {
	var name, contentType string
	cmd := &cobra.Command{
		Use:   "upload <path|->",
		Short: "Upload a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.authed()
			if err != nil {
				return err
			}
			data, err := readAll(args[0])
			if err != nil {
				return err
			}
			if name == "" {
				if args[0] == "-" {
					return errors.New("--name is required when reading stdin")
				}
				name = filepath.Base(args[0])
			}
			if contentType == "" {
				contentType = detectContentType(name, data)
			}

			ctx, cancel := g.ctx(cmd)
			defer cancel()
			f, err := c.upload(ctx, name, contentType, data)
			if err != nil {
				return err
			}
			if g.asJSON {
				printJSON(cmd.OutOrStdout(), f)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "uploaded %s (%s) as %s\n", f.OriginalFilename, humanSize(f.FileSize), f.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "name to store the file under")
	cmd.Flags().StringVarP(&contentType, "type", "t", "", "content type (guessed when empty)")
	return cmd
}

func downloadCmd(g *globals) *cobra.Command {
	var out string
	var urlOnly bool
	cmd := &cobra.Command{
		Use:   "download <file-id>",
		Short: "Download a file you own or collaborate on",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.authed()
			if err != nil {
				return err
			}
			ctx, cancel := g.ctx(cmd)
			defer cancel()
			u, err := c.downloadURL(ctx, args[0])
			if err != nil {
				return err
			}
			if urlOnly {
				fmt.Fprintln(cmd.OutOrStdout(), u)
				return nil
			}
			if out == "" {
				out = args[0]
			}
			n, err := c.fetch(ctx, u, out)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved %s to %s\n", humanSize(n), out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "destination path (defaults to the file id)")
	cmd.Flags().BoolVar(&urlOnly, "url", false, "print the pre-signed URL instead of downloading")
	return cmd
}

func rmCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <file-id>",
		Short: "Delete a file you own",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.authed()
			if err != nil {
				return err
			}
			ctx, cancel := g.ctx(cmd)
			defer cancel()
			if err := c.remove(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "deleted", args[0])
			return nil
		},
	}
}

func shareInfoCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "share-info <file-id>",
		Short: "Show public link and collaborators of a file you own",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.authed()
			if err != nil {
				return err
			}
			ctx, cancel := g.ctx(cmd)
			defer cancel()
			info, err := c.sharingInfo(ctx, args[0])
			if err != nil {
				return err
			}
			printJSON(cmd.OutOrStdout(), info)
			return nil
		},
	}
}

func publicCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:       "public <file-id> on|off",
		Short:     "Publish or unpublish a file",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var enable bool
			switch args[1] {
			case "on":
				enable = true
			case "off":
			default:
				return fmt.Errorf("want on or off, got %q", args[1])
			}
			c, err := g.authed()
			if err != nil {
				return err
			}
			ctx, cancel := g.ctx(cmd)
			defer cancel()
			st, err := c.setPublic(ctx, args[0], enable)
			if err != nil {
				return err
			}
			if st.PublicLink != nil {
				fmt.Fprintln(cmd.OutOrStdout(), *st.PublicLink)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "file is private")
			return nil
		},
	}
}

func collabAddCmd(g *globals) *cobra.Command {
	var perm string
	cmd := &cobra.Command{
		Use:   "add <file-id> <email>",
		Short: "Share a file with a registered user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.authed()
			if err != nil {
				return err
			}
			ctx, cancel := g.ctx(cmd)
			defer cancel()
			cs, err := c.addCollaborator(ctx, args[0], args[1], perm)
			if err != nil {
				return err
			}
			printJSON(cmd.OutOrStdout(), cs)
			return nil
		},
	}
	cmd.Flags().StringVar(&perm, "perm", "view", "view or edit")
	return cmd
}

func collabRmCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <file-id> <user-id>",
		Short: "Stop sharing a file with a user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.authed()
			if err != nil {
				return err
			}
			ctx, cancel := g.ctx(cmd)
			defer cancel()
			cs, err := c.removeCollaborator(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			printJSON(cmd.OutOrStdout(), cs)
			return nil
		},
	}
}

func collabSetCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "set <file-id> <user-id> view|edit",
		Short: "Change a collaborator's permission",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.authed()
			if err != nil {
				return err
			}
			ctx, cancel := g.ctx(cmd)
			defer cancel()
			cs, err := c.setPermission(ctx, args[0], args[1], args[2])
			if err != nil {
				return err
			}
			printJSON(cmd.OutOrStdout(), cs)
			return nil
		},
	}
}

func openCmd(g *globals) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "open <share-token>",
		Short: "Resolve a public share token, optionally downloading the file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := g.ctx(cmd)
			defer cancel()
			c := g.anon()
			pf, err := c.resolvePublic(ctx, args[0])
			if err != nil {
				return err
			}
			if out == "" {
				printJSON(cmd.OutOrStdout(), pf)
				return nil
			}
			n, err := c.fetch(ctx, pf.DownloadURL, out)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved %s (%s) to %s\n", pf.Filename, humanSize(n), out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "download to this path")
	return cmd
}

func summarizeCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "summarize <path|->",
		Short: "Summarize a text file with the AI service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.authed()
			if err != nil {
				return err
			}
			data, err := readAll(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := g.ctx(cmd)
			defer cancel()
			s, err := c.summarize(ctx, string(data))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), s)
			return nil
		},
	}
}
