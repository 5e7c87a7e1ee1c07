package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"refinery/internal/bignum"
	"refinery/internal/catalog"
	cl "refinery/internal/cli"
	"refinery/internal/config"
	"refinery/internal/currency"
	"refinery/internal/game"
	"refinery/internal/syncq"
)

func main() {
	cfg := config.LoadCLIFromEnv()

	root := &cobra.Command{
		Use:          "rfx",
		Short:        "Refinery economy toolkit",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&cfg.APIBaseURL, "api", cfg.APIBaseURL, "refinery API base URL")
	root.PersistentFlags().StringVar(&cfg.CatalogPath, "catalog", cfg.CatalogPath, "catalog file for offline commands (default: built-in)")

	root.AddCommand(
		newCalcCmd(),
		newFormulaCmd(&cfg),
		newResolveCmd(&cfg),
		newLoginCmd(&cfg),
		newLogoutCmd(),
		newWalletCmd(&cfg),
		newDropCmd(&cfg),
		newBuyCmd(&cfg),
		newSyncCmd(&cfg),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newClient(cfg *config.CLIConfig) *cl.Client {
	return cl.NewClient(strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/"), cfg.APIKey)
}

func newCalcCmd() *cobra.Command {
	var notation string
	cmd := &cobra.Command{
		Use:   "calc A [OP B]",
		Short: "Evaluate extended-range arithmetic, e.g. `rfx calc 1e500 mul e1e20`",
		Args:  cobra.RangeArgs(1, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := parseNotation(notation)
			if err != nil {
				return err
			}
			res, err := evalArgs(args)
			if err != nil {
				return err
			}
			renderNumber(res, n)
			return nil
		},
	}
	cmd.Flags().StringVarP(&notation, "notation", "n", "scientific", "output notation: scientific, suffix or plain")
	return cmd
}

func newFormulaCmd(cfg *config.CLIConfig) *cobra.Command {
	var levels int64
	cmd := &cobra.Command{
		Use:   "formula [UPGRADE]",
		Short: "Show upgrade boost and cost curves",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := catalog.Load(cfg.CatalogPath)
			if err != nil {
				return err
			}
			ups := cat.Upgrades()
			if len(args) == 1 {
				u, err := cat.Upgrade(args[0])
				if err != nil {
					return err
				}
				ups = []catalog.Upgrade{u}
			}
			for _, u := range ups {
				renderUpgrade(u, levels)
			}
			return nil
		},
	}
	cmd.Flags().Int64VarP(&levels, "levels", "l", 5, "number of levels to tabulate")
	return cmd
}

func newResolveCmd(cfg *config.CLIConfig) *cobra.Command {
	var (
		levels  []string
		balance []string
		events  []string
	)
	cmd := &cobra.Command{
		Use:   "resolve FURNACE COUNT",
		Short: "Resolve a droplet batch offline against the catalog",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := catalog.Load(cfg.CatalogPath)
			if err != nil {
				return err
			}
			count, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("count: %w", err)
			}
			lv, err := parseLevels(levels)
			if err != nil {
				return err
			}
			bal, err := parseBundle(balance)
			if err != nil {
				return err
			}
			res, err := game.Simulate(cat, game.SimulateInput{
				FurnaceID: args[0],
				Count:     count,
				Levels:    lv,
				Balance:   bal,
				Events:    events,
			})
			if err != nil {
				return err
			}
			renderResult(args[0], count, res)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&levels, "level", nil, "upgrade level as NAME=LEVEL (repeatable)")
	cmd.Flags().StringSliceVar(&balance, "balance", nil, "current balance as CURRENCY=AMOUNT (repeatable)")
	cmd.Flags().StringSliceVar(&events, "event", nil, "catalog event to treat as active (repeatable)")
	return cmd
}

func newLoginCmd(cfg *config.CLIConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "login PLAYER_ID",
		Short: "Select the player rfx acts as",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := cl.Profile{PlayerID: strings.TrimSpace(args[0]), APIBaseURL: cfg.APIBaseURL}
			if err := cl.SaveProfile(p); err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			wallet, err := newClient(cfg).EnsurePlayer(ctx, p.PlayerID)
			if err != nil {
				printWarn(fmt.Sprintf("Profile saved, but the API could not be reached: %v", err))
				return nil
			}
			printSuccess(fmt.Sprintf("Logged in as %s.", p.PlayerID))
			renderWallet(wallet)
			return nil
		},
	}
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved player",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cl.ClearProfile(); err != nil {
				return err
			}
			printSuccess("Profile cleared.")
			return nil
		},
	}
}

func newWalletCmd(cfg *config.CLIConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "wallet",
		Short: "Show balances and upgrade levels",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := cl.LoadProfile()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			wallet, err := newClient(cfg).Wallet(ctx, p.PlayerID)
			if err != nil {
				return err
			}
			renderWallet(wallet)
			return nil
		},
	}
}

func newDropCmd(cfg *config.CLIConfig) *cobra.Command {
	var preview bool
	cmd := &cobra.Command{
		Use:   "drop FURNACE COUNT",
		Short: "Feed a droplet batch into a furnace",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := cl.LoadProfile()
			if err != nil {
				return err
			}
			count, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("count: %w", err)
			}
			client := newClient(cfg)
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			if preview {
				out, err := client.PreviewDroplets(ctx, p.PlayerID, args[0], count)
				if err != nil {
					return err
				}
				renderDroplets(out)
				return nil
			}

			idem := uuid.NewString()
			out, err := client.Droplets(ctx, p.PlayerID, args[0], count, idem)
			if err != nil {
				return queueOnNetworkError(err, syncq.Command{
					Method:         "POST",
					Path:           cl.DropletPath(p.PlayerID),
					Body:           cl.DropletBody(args[0], count),
					IdempotencyKey: idem,
				})
			}
			renderDroplets(out)
			return nil
		},
	}
	cmd.Flags().BoolVar(&preview, "preview", false, "resolve without crediting the wallet")
	return cmd
}

func newBuyCmd(cfg *config.CLIConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "buy UPGRADE",
		Short: "Buy the next level of an upgrade",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := cl.LoadProfile()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(cfg).BuyUpgrade(ctx, p.PlayerID, args[0], uuid.NewString())
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Bought %s level %d for %s.", out.Upgrade, out.Level, formatBundle(out.Cost)))
			fmt.Printf("Balance: %s\n", formatBundle(out.Balance))
			return nil
		},
	}
}

func newSyncCmd(cfg *config.CLIConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Replay droplet batches queued while offline",
		RunE: func(cmd *cobra.Command, args []string) error {
			queue, err := syncq.Load()
			if err != nil {
				return err
			}
			if len(queue) == 0 {
				printInfo("Sync queue is empty.")
				return nil
			}
			client := newClient(cfg)
			ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
			defer cancel()

			res, replayErr := syncq.Replay(ctx, queue, func(ctx context.Context, c syncq.Command) error {
				_, err := client.Do(ctx, c.Method, c.Path, c.Body, c.IdempotencyKey)
				return err
			})
			for _, f := range res.Dropped {
				printError(fmt.Sprintf("Dropped %s %s: %v", f.Command.Method, f.Command.Path, f.Err))
			}
			if err := syncq.Save(res.Remaining); err != nil {
				return err
			}
			if replayErr != nil {
				printWarn(fmt.Sprintf("Sync stopped: %v", replayErr))
			}
			printSuccess(fmt.Sprintf("Sync complete: replayed=%d dropped=%d remaining=%d", res.Sent, len(res.Dropped), len(res.Remaining)))
			return nil
		},
	}
}

// queueOnNetworkError stores cmd for a later sync when the API could not be
// reached. Errors the API itself returned are passed through.
func queueOnNetworkError(err error, cmd syncq.Command) error {
	if err == nil {
		return nil
	}
	var apiErr *cl.APIError
	if errors.As(err, &apiErr) {
		return err
	}
	if qerr := syncq.Push(cmd); qerr != nil {
		return fmt.Errorf("request failed (%v) and could not be queued: %w", err, qerr)
	}
	printWarn(fmt.Sprintf("API unreachable, batch queued for `rfx sync`: %v", err))
	return nil
}

func evalArgs(args []string) (bignum.Number, error) {
	a, err := bignum.Parse(args[0])
	if err != nil {
		return bignum.Zero, err
	}
	if len(args) == 1 {
		return a, nil
	}
	op := strings.ToLower(args[1])
	b := bignum.Zero
	if len(args) == 3 {
		if b, err = bignum.Parse(args[2]); err != nil {
			return bignum.Zero, err
		}
	}
	switch op {
	case "add", "+":
		return a.Add(b), nil
	case "sub", "-":
		return a.Sub(b), nil
	case "mul", "x", "*":
		return a.Mul(b), nil
	case "div", "/":
		return a.Div(b), nil
	case "pow", "^":
		return a.Pow(b), nil
	case "sqrt":
		return a.Sqrt(), nil
	case "log10":
		return a.Log10()
	case "ln":
		return a.Ln()
	case "log":
		return a.Log(b)
	}
	return bignum.Zero, fmt.Errorf("unknown op %q", args[1])
}

func parseNotation(s string) (bignum.Notation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sci", "scientific":
		return bignum.Scientific, nil
	case "suffix":
		return bignum.Suffix, nil
	case "plain":
		return bignum.Plain, nil
	}
	return bignum.Scientific, fmt.Errorf("unknown notation %q", s)
}

func parseLevels(pairs []string) (map[string]int64, error) {
	out := map[string]int64{}
	for _, p := range pairs {
		name, v, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("level %q: want NAME=LEVEL", p)
		}
		lvl, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil || lvl < 0 {
			return nil, fmt.Errorf("level %q: want a non-negative integer", p)
		}
		out[strings.TrimSpace(name)] = lvl
	}
	return out, nil
}

func parseBundle(pairs []string) (currency.Bundle, error) {
	var out currency.Bundle
	for _, p := range pairs {
		name, v, ok := strings.Cut(p, "=")
		if !ok {
			return out, fmt.Errorf("balance %q: want CURRENCY=AMOUNT", p)
		}
		cur, err := currency.ParseCurrency(strings.TrimSpace(name))
		if err != nil {
			return out, err
		}
		n, err := bignum.Parse(v)
		if err != nil {
			return out, err
		}
		out.Set(cur, n)
	}
	return out, nil
}
