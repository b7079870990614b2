package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/newthinker/predator/internal/broker"
	"github.com/newthinker/predator/internal/config"
	"github.com/newthinker/predator/internal/journal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var brokerCmd = &cobra.Command{
	Use:   "broker",
	Short: "Broker operations",
	Long:  `Commands for inspecting the configured broker (positions, orders, account) and the trade journal.`,
}

var brokerPositionsCmd = &cobra.Command{
	Use:   "positions",
	Short: "List current positions",
	RunE:  runBrokerPositions,
}

var brokerOrdersCmd = &cobra.Command{
	Use:   "orders",
	Short: "List open orders",
	RunE:  runBrokerOrders,
}

var brokerAccountCmd = &cobra.Command{
	Use:   "account",
	Short: "Show account information",
	RunE:  runBrokerAccount,
}

var brokerJournalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Show the trade journal",
	RunE:  runBrokerJournal,
}

func init() {
	rootCmd.AddCommand(brokerCmd)
	brokerCmd.AddCommand(brokerPositionsCmd)
	brokerCmd.AddCommand(brokerOrdersCmd)
	brokerCmd.AddCommand(brokerAccountCmd)
	brokerCmd.AddCommand(brokerJournalCmd)
}

// withBroker handles common setup.
func withBroker(fn func(ctx context.Context, b broker.Broker, cfg *config.Config, log *zap.Logger) error) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	b, err := newBroker(cfg, log)
	if err != nil {
		return err
	}
	return fn(context.Background(), b, cfg, log)
}

func runBrokerPositions(cmd *cobra.Command, args []string) error {
	return withBroker(func(ctx context.Context, b broker.Broker, _ *config.Config, log *zap.Logger) error {
		positions, err := b.GetPositions(ctx)
		if err != nil {
			return fmt.Errorf("getting positions: %w", err)
		}

		if len(positions) == 0 {
			fmt.Println("No positions found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "SYMBOL\tQTY\tAVG COST\tPRICE\tMKT VALUE\tP&L\t")
		fmt.Fprintln(w, "------\t---\t--------\t-----\t---------\t---\t")
		for _, p := range positions {
			fmt.Fprintf(w, "%s\t%d\t%.2f\t%.2f\t%.2f\t%+.2f\t\n",
				p.Symbol, p.Quantity, p.AverageCost, p.CurrentPrice, p.MarketValue, p.UnrealizedPL)
		}
		w.Flush()

		log.Info("positions listed", zap.String("broker", b.Name()), zap.Int("count", len(positions)))
		return nil
	})
}

func runBrokerOrders(cmd *cobra.Command, args []string) error {
	return withBroker(func(ctx context.Context, b broker.Broker, _ *config.Config, log *zap.Logger) error {
		orders, err := b.GetOpenOrders(ctx)
		if err != nil {
			return fmt.Errorf("getting orders: %w", err)
		}

		if len(orders) == 0 {
			fmt.Println("No open orders.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ORDER ID\tSYMBOL\tSIDE\tLEG\tQTY\tSTATUS\tCREATED\t")
		fmt.Fprintln(w, "--------\t------\t----\t---\t---\t------\t-------\t")
		for _, o := range orders {
			leg := o.Leg
			if leg == "" {
				leg = "entry"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\t\n",
				o.OrderID, o.Symbol, o.Side, leg, o.Quantity, o.Status, o.CreatedAt.Format("2006-01-02 15:04"))
		}
		w.Flush()

		log.Info("orders listed", zap.Int("count", len(orders)))
		return nil
	})
}

func runBrokerAccount(cmd *cobra.Command, args []string) error {
	return withBroker(func(ctx context.Context, b broker.Broker, _ *config.Config, log *zap.Logger) error {
		bal, err := b.GetBalance(ctx)
		if err != nil {
			return fmt.Errorf("getting account info: %w", err)
		}

		fmt.Printf("Account Summary (%s)\n", b.Name())
		fmt.Println("---------------")
		fmt.Printf("Equity:       %s %s\n", bal.Equity.StringFixed(2), bal.Currency)
		fmt.Printf("Cash:         %s %s\n", bal.Cash.StringFixed(2), bal.Currency)
		fmt.Printf("Day P&L:      %s\n", bal.DailyPL().StringFixed(2))

		log.Info("account info displayed")
		return nil
	})
}

func runBrokerJournal(cmd *cobra.Command, args []string) error {
	return withBroker(func(ctx context.Context, _ broker.Broker, cfg *config.Config, log *zap.Logger) error {
		store, err := newArchive(cfg)
		if err != nil {
			return err
		}
		entries, err := journal.New(store, cfg.Journal.Key, log).Entries(ctx)
		if err != nil {
			return fmt.Errorf("reading journal: %w", err)
		}
		if len(entries) == 0 {
			fmt.Println("Journal is empty.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tTICKER\tACTION\tQTY\tPRICE\tSL\tTP\tSCORE\tREASON\t")
		fmt.Fprintln(w, "----\t------\t------\t---\t-----\t--\t--\t-----\t------\t")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.2f\t%.2f\t%.2f\t%d\t%s\t\n",
				e.Timestamp.Format("2006-01-02 15:04"), e.Ticker, e.Action, e.Qty, e.Price, e.StopLoss, e.TakeProfit, e.Score, e.Reason)
		}
		w.Flush()
		return nil
	})
}
