package main

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/zjoart/go-databundle-store/internal/account"
	"github.com/zjoart/go-databundle-store/internal/admin"
	"github.com/zjoart/go-databundle-store/internal/catalog"
	"github.com/zjoart/go-databundle-store/internal/order"
	"github.com/zjoart/go-databundle-store/internal/purchase"
	"github.com/zjoart/go-databundle-store/internal/schema"
	"github.com/zjoart/go-databundle-store/internal/wallet"
	"github.com/zjoart/go-databundle-store/pkg/database"
	"gorm.io/gorm"
)

const (
	flagDatabaseURL      = "database-url"
	flagCatalogFile      = "catalog-file"
	flagStaleAfter       = "stale-after"
	flagProviderTimeout  = "provider-timeout"
	configKeyDatabaseURL = "database_url"
	configKeyCatalogFile = "price_catalog_file"
	configKeyTimeout     = "provider_timeout"
	defaultDatabaseURL   = "sqlite://bundlestore.db"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "bundlectl: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "bundlectl",
		Short:         "Operator tooling for the data bundle store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().String(flagDatabaseURL, "", "database URL (postgres:// or sqlite://), defaults to $DATABASE_URL")
	cmd.PersistentFlags().String(flagCatalogFile, "", "price catalog JSON, defaults to $PRICE_CATALOG_FILE or the built-in table")

	cmd.AddCommand(newPromoteCommand(), newSweepCommand(), newCatalogCommand())
	return cmd
}

func newPromoteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "promote <handle> <tier>",
		Short: "Set an account's tier (STANDARD, RESELLER, OPERATOR)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tier, err := account.ParseTier(args[1])
			if err != nil {
				return err
			}
			db, err := openDatabase(cmd)
			if err != nil {
				return err
			}
			svc := admin.NewService(order.NewRepository(db), account.NewRepository(db))
			acct, err := svc.Promote(cmd.Context(), strings.ToLower(args[0]), tier)
			if err != nil {
				return fmt.Errorf("promote %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", acct.Handle, acct.Tier)
			return nil
		},
	}
}

func newSweepCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Refund purchases stuck in RESERVED or SUBMITTED",
		RunE: func(cmd *cobra.Command, args []string) error {
			staleAfter, err := cmd.Flags().GetDuration(flagStaleAfter)
			if err != nil {
				return err
			}
			if err := viper.BindEnv(configKeyTimeout, "PROVIDER_TIMEOUT"); err != nil {
				return err
			}
			if err := viper.BindPFlag(configKeyTimeout, cmd.Flags().Lookup(flagProviderTimeout)); err != nil {
				return err
			}
			db, err := openDatabase(cmd)
			if err != nil {
				return err
			}
			cat, err := loadCatalog(cmd)
			if err != nil {
				return err
			}

			orders := order.NewRepository(db)
			// the sweeper only refunds, it never calls the provider; the timeout
			// still bounds how young a stale order may be
			orch := purchase.NewOrchestrator(db, account.NewRepository(db), wallet.NewLedger(db), orders, cat, nil,
				viper.GetDuration(configKeyTimeout))
			refunded, err := purchase.NewSweeper(orch, orders, staleAfter).RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "refunded %d stale orders\n", refunded)
			return nil
		},
	}
	cmd.Flags().Duration(flagStaleAfter, 15*time.Minute, "age after which an in-flight purchase is refunded")
	cmd.Flags().Duration(flagProviderTimeout, 30*time.Second, "provider call timeout used by the server, defaults to $PROVIDER_TIMEOUT")
	return cmd
}

func newCatalogCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "catalog [retail|wholesale]",
		Short: "Print a price table",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := loadCatalog(cmd)
			if err != nil {
				return err
			}
			class := catalog.Retail
			if len(args) == 1 {
				class = catalog.PricingClass(strings.ToLower(args[0]))
			}
			plans := cat.Plans(class)
			if len(plans) == 0 {
				return fmt.Errorf("no prices for %q", class)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NETWORK\tPLAN\tPRICE")
			networks := make([]string, 0, len(plans))
			for n := range plans {
				networks = append(networks, string(n))
			}
			sort.Strings(networks)
			for _, n := range networks {
				for _, p := range plans[catalog.Network(n)] {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", n, p.ID, p.Price.StringFixed(2))
				}
			}
			return tw.Flush()
		},
	}
}

func bindConfig(cmd *cobra.Command) error {
	viper.AutomaticEnv()
	if err := viper.BindEnv(configKeyDatabaseURL, "DATABASE_URL"); err != nil {
		return err
	}
	if err := viper.BindEnv(configKeyCatalogFile, "PRICE_CATALOG_FILE"); err != nil {
		return err
	}
	if err := viper.BindPFlag(configKeyDatabaseURL, cmd.Flags().Lookup(flagDatabaseURL)); err != nil {
		return err
	}
	return viper.BindPFlag(configKeyCatalogFile, cmd.Flags().Lookup(flagCatalogFile))
}

func openDatabase(cmd *cobra.Command) (*gorm.DB, error) {
	if err := bindConfig(cmd); err != nil {
		return nil, err
	}
	dsn := viper.GetString(configKeyDatabaseURL)
	if dsn == "" {
		dsn = defaultDatabaseURL
	}
	db, err := database.Open(dsn)
	if err != nil {
		return nil, fmt.Errorf("database open: %w", err)
	}
	if err := schema.Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func loadCatalog(cmd *cobra.Command) (*catalog.Catalog, error) {
	if err := bindConfig(cmd); err != nil {
		return nil, err
	}
	return catalog.Load(viper.GetString(configKeyCatalogFile))
}
