package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/joshdurbin/ns-shortener/internal/domain"
)

// Commands provides command-line operations for the client
type Commands struct {
	client *Client
	out    io.Writer
}

// NewCommands creates a new Commands instance writing to out
func NewCommands(client *Client, out io.Writer) *Commands {
	return &Commands{
		client: client,
		out:    out,
	}
}

func (c *Commands) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}

// Create creates a short URL and displays the result
func (c *Commands) Create(ctx context.Context, namespaceID string, req domain.CreateURLRequest) error {
	result, err := c.client.CreateURL(ctx, namespaceID, req)
	if err != nil {
		return err
	}

	c.printf("Short URL created:\n")
	c.printf("Namespace: %s\n", result.NamespaceID)
	c.printf("Short Code: %s\n", result.ShortCode)
	c.printf("Short URL: %s\n", result.ShortURL)
	c.printf("Original URL: %s\n", result.OriginalURL)
	c.printf("Created At: %s\n", result.CreatedAt.Format(time.RFC3339))
	if result.ExpiresAt != nil {
		c.printf("Expires At: %s\n", result.ExpiresAt.Format(time.RFC3339))
	}

	return nil
}

// Get retrieves and displays information about a short URL
func (c *Commands) Get(ctx context.Context, namespaceID, shortCode string) error {
	rec, err := c.client.GetURL(ctx, namespaceID, shortCode)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.printf("Short code '%s' not found in namespace '%s'\n", shortCode, namespaceID)
			return nil
		}
		return err
	}

	c.printRecord(rec)
	return nil
}

func (c *Commands) printRecord(rec *domain.ShortURL) {
	c.printf("URL Information:\n")
	c.printf("Namespace: %s\n", rec.NamespaceID)
	c.printf("Short Code: %s\n", rec.Shortcode)
	c.printf("Target URL: %s\n", rec.TargetURL)
	c.printf("Created By: %s\n", rec.CreatedBy)
	c.printf("Created At: %s\n", rec.CreatedAt.Format(time.RFC3339))
	if rec.ExpiresAt != nil {
		c.printf("Expires At: %s\n", rec.ExpiresAt.Format(time.RFC3339))
	} else {
		c.printf("Expires At: Never\n")
	}
	c.printf("Private: %t\n", rec.IsPrivate)
	c.printf("Active: %t\n", rec.IsActive)
	if len(rec.Tags) > 0 {
		c.printf("Tags: %s\n", strings.Join(rec.Tags, ", "))
	}
	c.printf("Click Count: %d\n", rec.ClickCount)
}

// Update applies a partial update and displays the new record
func (c *Commands) Update(ctx context.Context, namespaceID, shortCode string, req domain.UpdateURLRequest) error {
	rec, err := c.client.UpdateURL(ctx, namespaceID, shortCode, req)
	if err != nil {
		return err
	}

	c.printf("Short URL '%s' updated\n", shortCode)
	c.printRecord(rec)
	return nil
}

// Delete removes a short URL
func (c *Commands) Delete(ctx context.Context, namespaceID, shortCode string) error {
	err := c.client.DeleteURL(ctx, namespaceID, shortCode)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.printf("Short code '%s' not found in namespace '%s'\n", shortCode, namespaceID)
			return nil
		}
		return err
	}

	c.printf("Short URL '%s' deleted successfully\n", shortCode)
	return nil
}

// DeleteNamespace schedules a whole namespace for deletion
func (c *Commands) DeleteNamespace(ctx context.Context, namespaceID string) error {
	if err := c.client.DeleteNamespace(ctx, namespaceID); err != nil {
		return err
	}

	c.printf("Namespace '%s' scheduled for deletion\n", namespaceID)
	return nil
}

// List displays one page of short URLs in a table format
func (c *Commands) List(ctx context.Context, namespaceID string, params ListParams) error {
	page, err := c.client.ListURLs(ctx, namespaceID, params)
	if err != nil {
		return err
	}

	if len(page.URLs) == 0 {
		c.printf("No URLs found\n")
		return nil
	}

	c.printf("%-15s %-50s %-20s %-10s %s\n", "Short Code", "Target URL", "Created At", "Created By", "Clicks")
	c.printf("%s\n", strings.Repeat("-", 110))

	for _, rec := range page.URLs {
		target := rec.TargetURL
		if len(target) > 50 {
			target = target[:47] + "..."
		}

		c.printf("%-15s %-50s %-20s %-10s %d\n",
			rec.Shortcode,
			target,
			rec.CreatedAt.Format("2006-01-02 15:04:05"),
			rec.CreatedBy,
			rec.ClickCount,
		)
	}

	if page.NextCursor != "" {
		c.printf("\nNext page: --cursor %s\n", page.NextCursor)
	}
	return nil
}

// Stats displays the aggregate counters of a namespace
func (c *Commands) Stats(ctx context.Context, namespaceID string) error {
	st, err := c.client.NamespaceStats(ctx, namespaceID)
	if err != nil {
		return err
	}

	c.printf("Namespace Statistics: %s\n", st.NamespaceID)
	c.printf("Total URLs: %d\n", st.TotalURLs)
	c.printf("Active URLs: %d\n", st.ActiveURLs)
	c.printf("Expired URLs: %d\n", st.ExpiredURLs)
	c.printf("Total Clicks: %d\n", st.TotalClicks)
	if !st.LastUpdated.IsZero() {
		c.printf("Last Updated: %s\n", st.LastUpdated.Format(time.RFC3339))
	}
	return nil
}

// Analytics displays a click report for one short URL, or the whole namespace when shortCode is empty
func (c *Commands) Analytics(ctx context.Context, namespaceID, shortCode, window string) error {
	var (
		report *domain.ClickReport
		err    error
	)
	if shortCode == "" {
		report, err = c.client.NamespaceAnalytics(ctx, namespaceID, window)
	} else {
		report, err = c.client.URLAnalytics(ctx, namespaceID, shortCode, window)
	}
	if err != nil {
		return err
	}

	subject := namespaceID
	if report.Shortcode != "" {
		subject += "/" + report.Shortcode
	}
	c.printf("Click Analytics: %s (%s to %s)\n", subject, report.Window.StartDay(), report.Window.EndDay())
	c.printf("Total Clicks: %d\n", report.TotalClicks)
	c.printf("Unique IPs: %d\n", report.UniqueIPs)

	if len(report.DailyClicks) > 0 {
		c.printf("\nDaily Clicks:\n")
		for _, d := range report.DailyClicks {
			c.printf("  %s  %d\n", d.Day, d.Clicks)
		}
	}

	if len(report.TopCountries) > 0 {
		c.printf("\nTop Countries:\n")
		for _, cs := range report.TopCountries {
			c.printf("  %-25s %-8d %s\n", cs.Country, cs.Clicks, cs.Tier)
		}
	}

	if len(report.ReferrerDistribution) > 0 {
		c.printf("\nReferrers:\n")
		referrers := make([]string, 0, len(report.ReferrerDistribution))
		for ref := range report.ReferrerDistribution {
			referrers = append(referrers, ref)
		}
		sort.Slice(referrers, func(i, j int) bool {
			ri, rj := report.ReferrerDistribution[referrers[i]], report.ReferrerDistribution[referrers[j]]
			if ri != rj {
				return ri > rj
			}
			return referrers[i] < referrers[j]
		})
		for _, ref := range referrers {
			c.printf("  %-40s %d\n", ref, report.ReferrerDistribution[ref])
		}
	}
	return nil
}

// Bulk creates one short URL per non-empty input line; a line may carry
// "URL SHORTCODE" to request a custom shortcode
func (c *Commands) Bulk(ctx context.Context, namespaceID string, in io.Reader) error {
	var items []domain.CreateURLRequest
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		item := domain.CreateURLRequest{URL: fields[0]}
		if len(fields) > 1 {
			item.Shortcode = fields[1]
		}
		items = append(items, item)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	if len(items) == 0 {
		return fmt.Errorf("no URLs to create")
	}

	result, err := c.client.BulkCreate(ctx, namespaceID, items)
	if err != nil {
		return err
	}

	for _, r := range result.Results {
		if r.Error != "" {
			c.printf("%-5d FAILED  %s (%s)\n", r.Index, items[r.Index].URL, r.Error)
			continue
		}
		c.printf("%-5d %s\n", r.Index, r.ShortURL)
	}
	c.printf("Created: %d, Failed: %d\n", result.Created, result.Failed)
	return nil
}

// Resolve displays where a short URL redirects
func (c *Commands) Resolve(ctx context.Context, namespaceID, shortCode string) error {
	target, err := c.client.Resolve(ctx, namespaceID, shortCode)
	if err != nil {
		return err
	}
	c.printf("%s\n", target)
	return nil
}
