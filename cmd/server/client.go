package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/joshdurbin/ns-shortener/internal/domain"
	"github.com/joshdurbin/ns-shortener/internal/transport/client"
)

var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "Client commands for interacting with the server",
}

var createCmd = &cobra.Command{
	Use:   "create [URL]",
	Short: "Create a short URL",
	Args:  cobra.ExactArgs(1),
	RunE:  runCreateURL,
}

var getCmd = &cobra.Command{
	Use:   "get [SHORT_CODE]",
	Short: "Get information about a short URL",
	Args:  cobra.ExactArgs(1),
	RunE:  runGetURL,
}

var updateCmd = &cobra.Command{
	Use:   "update [SHORT_CODE]",
	Short: "Update a short URL",
	Args:  cobra.ExactArgs(1),
	RunE:  runUpdateURL,
}

var deleteCmd = &cobra.Command{
	Use:   "delete [SHORT_CODE]",
	Short: "Delete a short URL",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeleteURL,
}

var deleteNamespaceCmd = &cobra.Command{
	Use:   "delete-namespace",
	Short: "Delete every short URL in the namespace",
	Args:  cobra.NoArgs,
	RunE:  runDeleteNamespace,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List short URLs in the namespace",
	Args:  cobra.NoArgs,
	RunE:  runListURLs,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show namespace statistics",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

var analyticsCmd = &cobra.Command{
	Use:   "analytics [SHORT_CODE]",
	Short: "Show click analytics for a short URL, or the whole namespace",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAnalytics,
}

var bulkCmd = &cobra.Command{
	Use:   "bulk [FILE]",
	Short: "Create short URLs from a file with one URL (and optional shortcode) per line; - reads stdin",
	Args:  cobra.ExactArgs(1),
	RunE:  runBulk,
}

var resolveCmd = &cobra.Command{
	Use:   "resolve [SHORT_CODE]",
	Short: "Print the redirect target of a short URL",
	Args:  cobra.ExactArgs(1),
	RunE:  runResolve,
}

func init() {
	// Client command flags
	clientCmd.PersistentFlags().StringP("server-url", "u", "http://localhost:8080", "Server URL")
	clientCmd.PersistentFlags().String("user", "admin", "User ID sent with every request")
	clientCmd.PersistentFlags().StringP("namespace", "n", "default", "Namespace")
	clientCmd.PersistentFlags().Duration("timeout", 10*time.Second, "Request timeout")

	createCmd.Flags().StringP("shortcode", "s", "", "Custom shortcode")
	createCmd.Flags().String("expires", "", "Expiry as RFC3339 or a duration from now (e.g. 72h)")
	createCmd.Flags().Bool("private", false, "Only the creator and namespace members may resolve it")
	createCmd.Flags().StringSlice("tag", nil, "Tag (repeatable)")

	updateCmd.Flags().String("url", "", "New target URL")
	updateCmd.Flags().String("expires", "", "New expiry as RFC3339 or a duration from now")
	updateCmd.Flags().Bool("clear-expiry", false, "Remove the expiry")
	updateCmd.Flags().Bool("private", false, "Set privacy")
	updateCmd.Flags().Bool("active", true, "Set active state")
	updateCmd.Flags().StringSlice("tag", nil, "Replace tags (repeatable)")

	listCmd.Flags().Int("limit", 0, "Page size")
	listCmd.Flags().String("cursor", "", "Continue after this cursor")
	listCmd.Flags().String("created-by", "", "Only URLs created by this user")
	listCmd.Flags().String("filter", "", "Only expired or private URLs")

	analyticsCmd.Flags().StringP("window", "w", "7days", "Window: 1day, 3days, 7days, 30days or Ndays")

	clientCmd.AddCommand(createCmd, getCmd, updateCmd, deleteCmd, deleteNamespaceCmd,
		listCmd, statsCmd, analyticsCmd, bulkCmd, resolveCmd)
}

// clientCommand collects what every client subcommand needs
type clientCommand struct {
	commands  *client.Commands
	namespace string
	ctx       context.Context
	cancel    context.CancelFunc
}

func newClientCommand(cmd *cobra.Command) *clientCommand {
	serverURL, _ := cmd.Flags().GetString("server-url")
	user, _ := cmd.Flags().GetString("user")
	namespace, _ := cmd.Flags().GetString("namespace")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	return &clientCommand{
		commands:  client.NewCommands(client.NewClient(serverURL, user), cmd.OutOrStdout()),
		namespace: namespace,
		ctx:       ctx,
		cancel:    cancel,
	}
}

func parseExpiry(v string, now time.Time) (*time.Time, error) {
	if d, err := time.ParseDuration(v); err == nil {
		t := now.Add(d)
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, fmt.Errorf("invalid expiry %q: want RFC3339 or a duration", v)
	}
	return &t, nil
}

func runCreateURL(cmd *cobra.Command, args []string) error {
	req := domain.CreateURLRequest{URL: args[0]}
	req.Shortcode, _ = cmd.Flags().GetString("shortcode")
	req.IsPrivate, _ = cmd.Flags().GetBool("private")
	req.Tags, _ = cmd.Flags().GetStringSlice("tag")
	if expires, _ := cmd.Flags().GetString("expires"); expires != "" {
		t, err := parseExpiry(expires, time.Now())
		if err != nil {
			return err
		}
		req.ExpiresAt = t
	}

	c := newClientCommand(cmd)
	defer c.cancel()
	return c.commands.Create(c.ctx, c.namespace, req)
}

func runGetURL(cmd *cobra.Command, args []string) error {
	c := newClientCommand(cmd)
	defer c.cancel()
	return c.commands.Get(c.ctx, c.namespace, args[0])
}

func runUpdateURL(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	var req domain.UpdateURLRequest

	if flags.Changed("url") {
		v, _ := flags.GetString("url")
		req.URL = &v
	}
	if flags.Changed("expires") {
		v, _ := flags.GetString("expires")
		t, err := parseExpiry(v, time.Now())
		if err != nil {
			return err
		}
		req.ExpiresAt = t
	}
	req.ClearExpiry, _ = flags.GetBool("clear-expiry")
	if flags.Changed("private") {
		v, _ := flags.GetBool("private")
		req.IsPrivate = &v
	}
	if flags.Changed("active") {
		v, _ := flags.GetBool("active")
		req.IsActive = &v
	}
	if flags.Changed("tag") {
		v, _ := flags.GetStringSlice("tag")
		req.Tags = &v
	}

	c := newClientCommand(cmd)
	defer c.cancel()
	return c.commands.Update(c.ctx, c.namespace, args[0], req)
}

func runDeleteURL(cmd *cobra.Command, args []string) error {
	c := newClientCommand(cmd)
	defer c.cancel()
	return c.commands.Delete(c.ctx, c.namespace, args[0])
}

func runDeleteNamespace(cmd *cobra.Command, args []string) error {
	c := newClientCommand(cmd)
	defer c.cancel()
	return c.commands.DeleteNamespace(c.ctx, c.namespace)
}

func runListURLs(cmd *cobra.Command, args []string) error {
	var params client.ListParams
	params.Limit, _ = cmd.Flags().GetInt("limit")
	params.Cursor, _ = cmd.Flags().GetString("cursor")
	params.CreatedBy, _ = cmd.Flags().GetString("created-by")
	params.Filter, _ = cmd.Flags().GetString("filter")

	c := newClientCommand(cmd)
	defer c.cancel()
	return c.commands.List(c.ctx, c.namespace, params)
}

func runStats(cmd *cobra.Command, args []string) error {
	c := newClientCommand(cmd)
	defer c.cancel()
	return c.commands.Stats(c.ctx, c.namespace)
}

func runAnalytics(cmd *cobra.Command, args []string) error {
	window, _ := cmd.Flags().GetString("window")
	shortCode := ""
	if len(args) == 1 {
		shortCode = args[0]
	}

	c := newClientCommand(cmd)
	defer c.cancel()
	return c.commands.Analytics(c.ctx, c.namespace, shortCode, window)
}

func runBulk(cmd *cobra.Command, args []string) error {
	var in io.Reader = cmd.InOrStdin()
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", args[0], err)
		}
		defer f.Close()
		in = f
	}

	c := newClientCommand(cmd)
	defer c.cancel()
	return c.commands.Bulk(c.ctx, c.namespace, in)
}

func runResolve(cmd *cobra.Command, args []string) error {
	c := newClientCommand(cmd)
	defer c.cancel()
	return c.commands.Resolve(c.ctx, c.namespace, args[0])
}
