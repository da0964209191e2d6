package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/hanzhi-dmd/companion/internal/app"
	"github.com/hanzhi-dmd/companion/internal/auth"
	"github.com/hanzhi-dmd/companion/internal/config"
	"github.com/hanzhi-dmd/companion/internal/content"
	"github.com/hanzhi-dmd/companion/internal/logger"
	"github.com/hanzhi-dmd/companion/internal/profile"
)

var verbose bool

func main() {
	rootCmd := &cobra.Command{
		Use:          "dmdctl",
		Short:        "Inspect feeds, run analyses and look at stored user records",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log to stderr")

	rootCmd.AddCommand(articlesCmd())
	rootCmd.AddCommand(trialsCmd())
	rootCmd.AddCommand(drugsCmd())
	rootCmd.AddCommand(analyzeCmd())
	rootCmd.AddCommand(usersCmd())
	rootCmd.AddCommand(recordCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func build(ctx context.Context) (*app.App, error) {
	cfg := config.Load()
	log := logger.Nop()
	if verbose {
		l, err := logger.New(cfg.LogMode)
		if err != nil {
			return nil, err
		}
		log = l
	}
	return app.Build(ctx, cfg, log)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func articlesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "articles",
		Short: "Fetch the normalized PubMed feed",
		RunE: func(cmd *cobra.Command, args []string) error {
			months, _ := cmd.Flags().GetInt("months")
			raw, _ := cmd.Flags().GetBool("raw")
			a, err := build(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if raw {
				res := a.Articles.Search(cmd.Context(), months)
				if res.Err != nil {
					fmt.Fprintln(os.Stderr, "error:", res.Err)
				}
				return printJSON(map[string]any{"status": res.Status, "items": res.Items})
			}
			return printJSON(a.Articles.Articles(cmd.Context(), months))
		},
	}
	cmd.Flags().Int("months", 1, "Lookback window in months (1, 3 or 12)")
	cmd.Flags().Bool("raw", false, "Show the fetch result without the sample fallback")
	return cmd
}

func trialsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trials",
		Short: "Fetch the normalized ClinicalTrials.gov feed",
		RunE: func(cmd *cobra.Command, args []string) error {
			region, _ := cmd.Flags().GetString("region")
			a, err := build(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			list := a.Trials.Trials(cmd.Context())
			if region != "" {
				list = lo.Filter(list, func(t content.ClinicalTrial, _ int) bool {
					return lo.Contains(t.Regions, profile.Region(region))
				})
			}
			return printJSON(list)
		},
	}
	cmd.Flags().String("region", "", "Only trials with a site in this region")
	return cmd
}

func drugsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "drugs",
		Short: "List the curated drug table",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := build(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			return printJSON(a.Drugs.Drugs(cmd.Context()))
		},
	}
}

func analyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run an initial analysis of one drug or trial against a user's stored profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			user, _ := cmd.Flags().GetString("user")
			drug, _ := cmd.Flags().GetString("drug")
			nct, _ := cmd.Flags().GetString("trial")
			if (drug == "") == (nct == "") {
				return fmt.Errorf("exactly one of --drug or --trial is required")
			}

			ctx := cmd.Context()
			a, err := build(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			rec, err := a.Store.Record(ctx, user)
			if err != nil {
				return err
			}
			if rec.Profile == nil {
				return fmt.Errorf("user %s has no profile", user)
			}

			var entity content.Analyzable
			if drug != "" {
				d, ok := lo.Find(a.Drugs.Drugs(ctx), func(d content.Drug) bool { return strings.EqualFold(d.BrandName, drug) })
				if !ok {
					return fmt.Errorf("drug %q not in catalog", drug)
				}
				entity = d
			} else {
				t, ok := lo.Find(a.Trials.Trials(ctx), func(t content.ClinicalTrial) bool { return strings.EqualFold(t.NCTID, nct) })
				if !ok {
					return fmt.Errorf("trial %q not in the current feed", nct)
				}
				entity = t
			}
			fmt.Println(a.Engine.Analyze(ctx, entity, *rec.Profile))
			return nil
		},
	}
	cmd.Flags().String("user", "DMDsetup#1", "Username whose profile is used")
	cmd.Flags().String("drug", "", "Brand name from the drug table")
	cmd.Flags().String("trial", "", "NCT id from the trials feed")
	return cmd
}

func usersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Allow-list helpers",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List usernames on the allow-list",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := auth.NewStaticAuthenticator(config.Load().UsersFile, nil)
			if err != nil {
				return err
			}
			for _, u := range a.Usernames() {
				fmt.Println(u)
			}
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "hash-password <password>",
		Short: "Print a bcrypt hash for a users file password_hash entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := auth.HashPassword(args[0])
			if err != nil {
				return err
			}
			fmt.Println(h)
			return nil
		},
	})
	return cmd
}

func recordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "record <username>",
		Short: "Print a user's stored profile and saved inquiries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := build(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			rec, err := a.Store.Record(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(rec)
		},
	}
}
