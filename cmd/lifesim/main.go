package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	cl "lifesim/internal/cli"
	"lifesim/internal/config"
	"lifesim/internal/game"
	"lifesim/internal/syncq"
)

func main() {
	cfg := config.LoadCLIFromEnv()
	apiBase := cfg.APIBaseURL

	root := &cobra.Command{
		Use:          "lifesim",
		Short:        "Personal finance life simulation",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&apiBase, "api", apiBase, "API base URL")

	root.AddCommand(
		newTemplatesCmd(&apiBase),
		newNewCmd(&apiBase),
		newUseCmd(&apiBase),
		newGamesCmd(&apiBase),
		newStatusCmd(&apiBase),
		newAdvanceCmd(&apiBase),
		newOrderCmd(&apiBase, game.SideBuy),
		newOrderCmd(&apiBase, game.SideSell),
		newTransferCmd(&apiBase),
		newEventCmd(&apiBase),
		newLedgerCmd(&apiBase),
		newRetirementCmd(&apiBase),
		newStatsCmd(&apiBase),
		newQuoteCmd(&apiBase),
		newSaveCmd(&apiBase),
		newLoadCmd(&apiBase),
		newSyncCmd(&apiBase),
		newPlayCmd(&apiBase),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newClient(apiBase *string) *cl.Client {
	return cl.NewClient(strings.TrimRight(strings.TrimSpace(*apiBase), "/"))
}

// gameRun loads the session and hands the command a client with a bounded context.
func gameRun(cmd *cobra.Command, apiBase *string, fn func(ctx context.Context, client *cl.Client, sess cl.Session) error) error {
	sess, err := cl.LoadSession()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()
	return fn(ctx, newClient(apiBase), sess)
}

func newTemplatesCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "templates",
		Short: "List starting scenarios",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			templates, def, err := newClient(apiBase).Templates(ctx)
			if err != nil {
				return err
			}
			for _, t := range templates {
				marker := " "
				if t.Name == def {
					marker = "*"
				}
				fmt.Printf("%s %-12s %s\n", marker, t.Name, t.Description)
			}
			return nil
		},
	}
}

func newNewCmd(apiBase *string) *cobra.Command {
	var in game.NewGameInput
	cmd := &cobra.Command{
		Use:   "new",
		Short: "Start a new game and make it current",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(in.PlayerName) == "" {
				name, err := promptOptional("Player name (blank for template default)")
				if err != nil {
					return err
				}
				in.PlayerName = name
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			d, err := newClient(apiBase).CreateGame(ctx, in, uuid.NewString())
			if err != nil {
				return err
			}
			if err := cl.SaveSession(cl.Session{GameID: d.GameID, PlayerName: d.Player.Name, APIBaseURL: *apiBase}); err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Started game %s.", d.GameID))
			renderDashboard(d)
			return nil
		},
	}
	cmd.Flags().StringVar(&in.Template, "template", "", "starting scenario")
	cmd.Flags().StringVar(&in.PlayerName, "name", "", "player name")
	cmd.Flags().Uint64Var(&in.Seed, "seed", 0, "random seed (0 picks one)")
	return cmd
}

func newUseCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "use <game-id>",
		Short: "Switch the current game",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			d, err := newClient(apiBase).Dashboard(ctx, strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			if err := cl.SaveSession(cl.Session{GameID: d.GameID, PlayerName: d.Player.Name, APIBaseURL: *apiBase}); err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Now playing %s (%s).", d.Player.Name, d.DateLabel))
			return nil
		},
	}
}

func newGamesCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "games",
		Short: "List stored games",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			games, err := newClient(apiBase).ListGames(ctx)
			if err != nil {
				return err
			}
			current := ""
			if sess, err := cl.LoadSession(); err == nil {
				current = sess.GameID
			}
			renderSummaries(games, current)
			return nil
		},
	}
}

func newStatusCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:     "status",
		Short:   "Show the dashboard",
		Aliases: []string{"dash"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return gameRun(cmd, apiBase, func(ctx context.Context, client *cl.Client, sess cl.Session) error {
				d, err := client.Dashboard(ctx, sess.GameID)
				if err != nil {
					return err
				}
				renderDashboard(d)
				return nil
			})
		},
	}
}

func newAdvanceCmd(apiBase *string) *cobra.Command {
	var months bool
	cmd := &cobra.Command{
		Use:   "advance [count]",
		Short: "Advance time by days (default) or months",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := game.AdvanceInput{Unit: game.UnitDay, Count: 1}
			if months {
				in.Unit = game.UnitMonth
			}
			if len(args) == 1 {
				n, err := strconv.Atoi(strings.TrimSpace(args[0]))
				if err != nil || n <= 0 {
					return fmt.Errorf("invalid count %q", args[0])
				}
				in.Count = n
			}
			return gameRun(cmd, apiBase, func(ctx context.Context, client *cl.Client, sess cl.Session) error {
				idem := uuid.NewString()
				res, err := client.Advance(ctx, sess.GameID, in, idem)
				if err != nil {
					return queueOnNetworkError(err, "POST", cl.GamePath(sess.GameID, "advance"), in, idem)
				}
				renderAdvance(res)
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&months, "months", "m", false, "count months instead of days")
	return cmd
}

func newOrderCmd(apiBase *string, side string) *cobra.Command {
	verb := "Buy"
	if side == game.SideSell {
		verb = "Sell"
	}
	return &cobra.Command{
		Use:   side + " [symbol] [shares]",
		Short: verb + " shares",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			symbol, err := symbolFromArgsOrPrompt(args)
			if err != nil {
				return err
			}
			shares, err := decimalFromArgOrPrompt(args, 1, "Shares to "+side)
			if err != nil {
				return err
			}
			in := game.OrderInput{Symbol: symbol, Side: side, Shares: shares}
			return gameRun(cmd, apiBase, func(ctx context.Context, client *cl.Client, sess cl.Session) error {
				idem := uuid.NewString()
				res, err := client.PlaceOrder(ctx, sess.GameID, in, idem)
				if err != nil {
					return queueOnNetworkError(err, "POST", cl.GamePath(sess.GameID, "orders"), in, idem)
				}
				renderAction(res)
				return nil
			})
		},
	}
}

func newTransferCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "transfer <from> <to> [amount]",
		Short: "Move money between accounts",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := decimalFromArgOrPrompt(args, 2, "Amount")
			if err != nil {
				return err
			}
			in := game.TransferInput{From: strings.TrimSpace(args[0]), To: strings.TrimSpace(args[1]), Amount: amount}
			return gameRun(cmd, apiBase, func(ctx context.Context, client *cl.Client, sess cl.Session) error {
				idem := uuid.NewString()
				res, err := client.Transfer(ctx, sess.GameID, in, idem)
				if err != nil {
					return queueOnNetworkError(err, "POST", cl.GamePath(sess.GameID, "transfers"), in, idem)
				}
				renderAction(res)
				return nil
			})
		},
	}
}

func newEventCmd(apiBase *string) *cobra.Command {
	event := &cobra.Command{
		Use:   "event",
		Short: "Show the pending event",
		RunE: func(cmd *cobra.Command, args []string) error {
			return gameRun(cmd, apiBase, func(ctx context.Context, client *cl.Client, sess cl.Session) error {
				ev, err := client.PendingEvent(ctx, sess.GameID)
				if err != nil {
					return err
				}
				if ev == nil {
					printInfo("No event is waiting on you.")
					return nil
				}
				renderEvent(*ev)
				return nil
			})
		},
	}
	event.AddCommand(&cobra.Command{
		Use:   "resolve [choice]",
		Short: "Answer the pending event",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return gameRun(cmd, apiBase, func(ctx context.Context, client *cl.Client, sess cl.Session) error {
				choice := ""
				if len(args) == 1 {
					choice = strings.ToLower(strings.TrimSpace(args[0]))
				} else {
					ev, err := client.PendingEvent(ctx, sess.GameID)
					if err != nil {
						return err
					}
					if ev == nil {
						printInfo("No event is waiting on you.")
						return nil
					}
					renderEvent(*ev)
					ids := make([]string, 0, len(ev.Choices))
					for _, c := range ev.Choices {
						ids = append(ids, c.ID)
					}
					if len(ids) > 0 {
						if choice, err = promptChoice("Choice", ids, ids[0]); err != nil {
							return err
						}
					}
				}
				res, err := client.ResolveEvent(ctx, sess.GameID, choice, uuid.NewString())
				if err != nil {
					return err
				}
				renderAction(res)
				return nil
			})
		},
	})
	return event
}

func newLedgerCmd(apiBase *string) *cobra.Command {
	var limit int
	ledgerCmd := &cobra.Command{
		Use:   "ledger",
		Short: "Show recent decisions and events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return gameRun(cmd, apiBase, func(ctx context.Context, client *cl.Client, sess cl.Session) error {
				entries, err := client.Ledger(ctx, sess.GameID, limit)
				if err != nil {
					return err
				}
				renderLedger(entries)
				return nil
			})
		},
	}
	ledgerCmd.Flags().IntVarP(&limit, "limit", "n", game.DefaultLedgerLimit, "entries to show")

	var in game.LedgerInput
	add := &cobra.Command{
		Use:   "add <title>",
		Short: "Record a note in the ledger",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Title = strings.Join(args, " ")
			return gameRun(cmd, apiBase, func(ctx context.Context, client *cl.Client, sess cl.Session) error {
				e, err := client.AddLedgerEntry(ctx, sess.GameID, in, uuid.NewString())
				if err != nil {
					return err
				}
				printSuccess(fmt.Sprintf("Recorded %q on %s.", e.Title, e.DateLabel))
				return nil
			})
		},
	}
	add.Flags().StringVar(&in.Description, "description", "", "longer note")
	ledgerCmd.AddCommand(add)
	return ledgerCmd
}

func newRetirementCmd(apiBase *string) *cobra.Command {
	var strategy string
	cmd := &cobra.Command{
		Use:     "retirement <percent>",
		Short:   "Set the 401k contribution",
		Aliases: []string{"401k"},
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pct, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(args[0]), "%"))
			if err != nil {
				return fmt.Errorf("invalid percent %q", args[0])
			}
			in := game.RetirementInput{ContributionPercent: pct, Strategy: strategy}
			return gameRun(cmd, apiBase, func(ctx context.Context, client *cl.Client, sess cl.Session) error {
				idem := uuid.NewString()
				d, err := client.UpdateRetirement(ctx, sess.GameID, in, idem)
				if err != nil {
					return queueOnNetworkError(err, "PUT", cl.GamePath(sess.GameID, "retirement"), in, idem)
				}
				r := d.Retirement
				printSuccess(fmt.Sprintf("401k contribution set to %d%% into %s.", r.ContributionPercent, r.Strategy))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&strategy, "strategy", "", "fund symbol to invest in")
	return cmd
}

func newStatsCmd(apiBase *string) *cobra.Command {
	var health, stress, happiness int
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Set wellbeing stats (values are clamped to 0..100)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return gameRun(cmd, apiBase, func(ctx context.Context, client *cl.Client, sess cl.Session) error {
				d, err := client.Dashboard(ctx, sess.GameID)
				if err != nil {
					return err
				}
				in := game.StatsInput{Health: d.Stats.Health, Stress: d.Stats.Stress, Happiness: d.Stats.Happiness}
				if cmd.Flags().Changed("health") {
					in.Health = health
				}
				if cmd.Flags().Changed("stress") {
					in.Stress = stress
				}
				if cmd.Flags().Changed("happiness") {
					in.Happiness = happiness
				}
				updated, err := client.UpdateStats(ctx, sess.GameID, in, uuid.NewString())
				if err != nil {
					return err
				}
				s := updated.Stats
				printSuccess(fmt.Sprintf("health %d  stress %d  happiness %d", s.Health, s.Stress, s.Happiness))
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&health, "health", 0, "health")
	cmd.Flags().IntVar(&stress, "stress", 0, "stress")
	cmd.Flags().IntVar(&happiness, "happiness", 0, "happiness")
	return cmd
}

func newQuoteCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "quote [symbol]",
		Short: "Show a market position",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			symbol, err := symbolFromArgsOrPrompt(args)
			if err != nil {
				return err
			}
			return gameRun(cmd, apiBase, func(ctx context.Context, client *cl.Client, sess cl.Session) error {
				q, err := client.StockQuote(ctx, sess.GameID, symbol)
				if err != nil {
					return err
				}
				renderQuote(q)
				return nil
			})
		},
	}
}

func newSaveCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "save <file>",
		Short: "Export the current game to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return gameRun(cmd, apiBase, func(ctx context.Context, client *cl.Client, sess cl.Session) error {
				snap, err := client.Snapshot(ctx, sess.GameID)
				if err != nil {
					return err
				}
				if err := os.WriteFile(args[0], snap, 0o600); err != nil {
					return err
				}
				printSuccess(fmt.Sprintf("Saved %s to %s.", sess.GameID, args[0]))
				return nil
			})
		},
	}
}

func newLoadCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "load <file>",
		Short: "Import a saved game and make it current",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			if !json.Valid(raw) {
				return fmt.Errorf("%s is not a JSON save file", args[0])
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			d, err := newClient(apiBase).Import(ctx, raw)
			if err != nil {
				return err
			}
			if err := cl.SaveSession(cl.Session{GameID: d.GameID, PlayerName: d.Player.Name, APIBaseURL: *apiBase}); err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Loaded as %s.", d.GameID))
			renderDashboard(d)
			return nil
		},
	}
}

func newSyncCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Replay writes queued while the API was unreachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			queue, err := syncq.Load()
			if err != nil {
				return err
			}
			if len(queue) == 0 {
				printInfo("Sync queue is empty.")
				return nil
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
			defer cancel()
			res, err := syncq.Replay(ctx, newClient(apiBase))
			for _, msg := range res.Failed {
				printError("Sync failed for " + msg)
			}
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Sync complete: replayed=%d remaining=%d", res.Replayed, res.Remaining))
			return nil
		},
	}
}

// queueOnNetworkError stores a write the API never saw. Server rejections
// are returned unchanged.
func queueOnNetworkError(err error, method, path string, body any, idem string) error {
	if err == nil {
		return nil
	}
	if cl.IsAPIError(err) || errors.Is(err, context.Canceled) {
		return err
	}
	raw, mErr := json.Marshal(body)
	if mErr != nil {
		return err
	}
	if qErr := syncq.Push(syncq.Command{Method: method, Path: path, Body: raw, IdempotencyKey: idem}); qErr != nil {
		return fmt.Errorf("%w (queue failed: %v)", err, qErr)
	}
	printWarn(fmt.Sprintf("API unreachable (%v); queued for `lifesim sync`.", err))
	return nil
}

func symbolFromArgsOrPrompt(args []string) (string, error) {
	if len(args) > 0 {
		symbol := strings.ToUpper(strings.TrimSpace(args[0]))
		if err := game.ValidateSymbol(symbol); err != nil {
			return "", err
		}
		return symbol, nil
	}
	return promptSymbol("Symbol")
}

func decimalFromArgOrPrompt(args []string, idx int, label string) (decimal.Decimal, error) {
	if len(args) > idx {
		return parsePositive(args[idx])
	}
	return promptDecimal(label)
}
