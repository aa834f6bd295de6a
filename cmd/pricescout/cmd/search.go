package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/pricescout/backend/internal/app"
	"github.com/pricescout/backend/internal/domain"
)

var (
	searchLimit    int
	searchDedupe   bool
	searchSort     string
	searchRetailer string
	searchWidth    int
)

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 0, "Results per retailer (default 75, max 100)")
	searchCmd.Flags().BoolVar(&searchDedupe, "dedupe", false, "Show only the cheapest listing of each product")
	searchCmd.Flags().StringVar(&searchSort, "sort", "relevance", "Order: relevance, price-low, price-high")
	searchCmd.Flags().StringVar(&searchRetailer, "retailer", "", "Query a single retailer: bq, screwfix, toolstation")
	searchCmd.Flags().IntVar(&searchWidth, "title-width", 60, "Truncate titles to this many characters (0 keeps them whole)")
	rootCmd.AddCommand(searchCmd)
}

var searchCmd = &cobra.Command{
	Use:   "search <term>",
	Short: "Search every retailer and print a price comparison table",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		term := strings.Join(args, " ")

		sortOrder, err := domain.ParseSortOrder(searchSort)
		if err != nil {
			return err
		}

		service, err := app.New(cfg, logger)
		if err != nil {
			return err
		}
		defer service.Close()

		if searchRetailer != "" {
			return searchOne(cmd.Context(), service, searchRetailer, term)
		}

		resp, err := service.Search.Search(cmd.Context(), domain.SearchRequest{
			Term:   term,
			Limit:  searchLimit,
			Sort:   sortOrder,
			Dedupe: searchDedupe,
		})
		if err != nil {
			return err
		}

		renderSearch(os.Stdout, resp, searchWidth)
		return nil
	},
}

func searchOne(ctx context.Context, service *app.App, slug, term string) error {
	retailer, err := domain.RetailerFromSlug(slug)
	if err != nil {
		return fmt.Errorf("%w %q", err, slug)
	}

	results, err := service.Search.SearchRetailer(ctx, retailer, term, searchLimit)
	if err != nil {
		return err
	}

	rows := make([]domain.GroupedResult, 0, len(results))
	for _, r := range results {
		rows = append(rows, domain.GroupedResult{ProviderResult: r})
	}
	renderSearch(os.Stdout, &domain.SearchResponse{
		Term:      term,
		Results:   rows,
		Retailers: []domain.RetailerSummary{{Retailer: retailer, Count: len(results)}},
	}, searchWidth)
	return nil
}

// renderSearch prints results as a table followed by one line per retailer
func renderSearch(w io.Writer, resp *domain.SearchResponse, titleWidth int) {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)
	t.SetTitle(fmt.Sprintf("%q: %d results in %d groups", resp.Term, len(resp.Results), len(resp.Groups)))
	t.AppendHeader(table.Row{"#", "Retailer", "Title", "Price", "Best", "URL"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Price", Align: text.AlignRight},
		{Name: "Best", Align: text.AlignCenter},
	})

	for i, r := range resp.Results {
		title := r.Title
		if titleWidth > 0 {
			title = text.Trim(title, titleWidth)
		}
		best := ""
		if r.Cheapest {
			best = "*"
		}
		t.AppendRow(table.Row{i + 1, r.Retailer, title, formatPrice(r.Price), best, deref(r.URL)})
	}
	t.Render()

	for _, s := range resp.Retailers {
		switch {
		case s.Failed():
			fmt.Fprintf(w, "%-12s failed: %s\n", s.Retailer, s.Error)
		case s.Placeholder:
			fmt.Fprintf(w, "%-12s no products, link to retailer search only\n", s.Retailer)
		default:
			fmt.Fprintf(w, "%-12s %d results\n", s.Retailer, s.Count)
		}
	}
	if resp.Cached {
		fmt.Fprintln(w, "(served from cache)")
	}
}

func formatPrice(p *float64) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprintf("£%.2f", *p)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
