package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/shopspring/decimal"

	"lifesim/internal/finance"
	"lifesim/internal/game"
	"lifesim/internal/ledger"
	"lifesim/internal/story"
)

var (
	stdinReader = bufio.NewReader(os.Stdin)
	accent      = color.New(color.FgCyan, color.Bold)
	success     = color.New(color.FgGreen, color.Bold)
	warn        = color.New(color.FgYellow, color.Bold)
	danger      = color.New(color.FgRed, color.Bold)
	neutral     = color.New(color.FgHiWhite)
)

func printSuccess(msg string) {
	success.Println(msg)
}

func printWarn(msg string) {
	warn.Println(msg)
}

func printError(msg string) {
	danger.Println(msg)
}

func printInfo(msg string) {
	neutral.Println(msg)
}

func promptRequired(label string) (string, error) {
	for {
		fmt.Printf("%s: ", label)
		text, err := stdinReader.ReadString('\n')
		if err != nil {
			return "", err
		}
		text = strings.TrimSpace(text)
		if text != "" {
			return text, nil
		}
		printWarn(label + " is required.")
	}
}

func promptOptional(label string) (string, error) {
	fmt.Printf("%s: ", label)
	text, err := stdinReader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func promptChoice(label string, options []string, defaultValue string) (string, error) {
	normalized := make(map[string]struct{}, len(options))
	for _, opt := range options {
		normalized[strings.ToLower(strings.TrimSpace(opt))] = struct{}{}
	}
	for {
		fmt.Printf("%s (%s) [%s]: ", label, strings.Join(options, "/"), defaultValue)
		text, err := stdinReader.ReadString('\n')
		if err != nil {
			return "", err
		}
		text = strings.ToLower(strings.TrimSpace(text))
		if text == "" {
			text = strings.ToLower(strings.TrimSpace(defaultValue))
		}
		if _, ok := normalized[text]; ok {
			return text, nil
		}
		printWarn("Invalid option. Please pick one of the listed values.")
	}
}

func promptDecimal(label string) (decimal.Decimal, error) {
	for {
		text, err := promptRequired(label)
		if err != nil {
			return decimal.Zero, err
		}
		v, err := parsePositive(text)
		if err != nil {
			printWarn(err.Error())
			continue
		}
		return v, nil
	}
}

func parsePositive(text string) (decimal.Decimal, error) {
	v, err := decimal.NewFromString(strings.TrimSpace(strings.ReplaceAll(text, ",", "")))
	if err != nil {
		return decimal.Zero, fmt.Errorf("enter a valid number")
	}
	if !v.IsPositive() {
		return decimal.Zero, fmt.Errorf("value must be > 0")
	}
	return v, nil
}

func promptSymbol(label string) (string, error) {
	for {
		symbol, err := promptRequired(label)
		if err != nil {
			return "", err
		}
		symbol = strings.ToUpper(strings.TrimSpace(symbol))
		if err := game.ValidateSymbol(symbol); err != nil {
			printWarn(err.Error())
			continue
		}
		return symbol, nil
	}
}

func renderDashboard(d game.Dashboard) {
	accent.Printf("\n== %s | %s, %d ==\n", d.DateLabel, d.Player.Name, d.Player.Age)
	fmt.Printf("Occupation:     %s (%s)\n", d.Player.Occupation, d.Player.Location)
	fmt.Printf("Housing:        %s\n", d.Player.HousingStatus)
	fmt.Printf("Stats:          health %d  stress %d  happiness %d\n", d.Stats.Health, d.Stats.Stress, d.Stats.Happiness)
	fmt.Printf("Monthly income: %s\n", finance.Format(d.TotalIncome))
	fmt.Printf("Monthly bills:  %s\n", finance.Format(d.TotalExpenses))
	fmt.Printf("Net worth:      %s %s\n", finance.Format(d.NetWorth), colorizeDelta(netWorthChange(d)))

	fmt.Println()
	accent.Println("Accounts")
	for _, a := range d.Accounts {
		fmt.Printf("  %-18s %14s\n", a.Name, colorizeMoney(a.Balance))
	}
	fmt.Printf("  %-18s %14s  (%d%%, %s)\n", "401k", finance.Format(d.Retirement.Balance), d.Retirement.ContributionPercent, d.Retirement.Strategy)

	fmt.Println()
	accent.Println("Positions")
	if len(d.Positions) == 0 {
		printInfo("  No positions.")
	} else {
		fmt.Printf("  %-8s %-22s %12s %12s %14s\n", "SYMBOL", "NAME", "SHARES", "PRICE", "VALUE")
		for _, p := range d.Positions {
			fmt.Printf("  %-8s %-22s %12s %12s %14s\n",
				p.Symbol,
				truncate(p.Name, 22),
				p.Shares.StringFixed(4),
				finance.Format(p.Price),
				finance.Format(p.Value),
			)
		}
	}
	if d.PendingEvent != nil {
		fmt.Println()
		renderEvent(*d.PendingEvent)
	}
	fmt.Println()
}

func renderEvent(ev story.Event) {
	warn.Printf("Event: %s\n", ev.Title)
	if ev.Description != "" {
		fmt.Println(ev.Description)
	}
	for _, c := range ev.Choices {
		fmt.Printf("  [%s] %s\n", c.ID, c.Label)
	}
}

func renderAction(res game.ActionResult) {
	if res.Message != "" {
		printSuccess(res.Message)
	}
	fmt.Printf("Net worth: %s\n", finance.Format(res.Dashboard.NetWorth))
	if res.Dashboard.PendingEvent != nil {
		renderEvent(*res.Dashboard.PendingEvent)
	}
}

func renderAdvance(res game.AdvanceResult) {
	d := res.Dashboard
	printSuccess(fmt.Sprintf("Advanced %d day(s) to %s.", res.Days, d.DateLabel))
	fmt.Printf("Net worth: %s %s\n", finance.Format(d.NetWorth), colorizeDelta(netWorthChange(d)))
	if res.Stopped && d.PendingEvent != nil {
		renderEvent(*d.PendingEvent)
		printInfo("Resolve it with `lifesim event resolve <choice>`.")
	}
}

func renderLedger(entries []ledger.Entry) {
	if len(entries) == 0 {
		printInfo("Ledger is empty.")
		return
	}
	for _, e := range entries {
		label := e.DateLabel
		if label == "" {
			label = e.Date.Format("2006-01-02")
		}
		line := fmt.Sprintf("%-20s %-12s %s", label, e.Type, e.Title)
		if e.Choice != "" {
			line += " (" + e.Choice + ")"
		}
		fmt.Println(line)
		for name, delta := range e.FinancialChanges {
			fmt.Printf("    %-14s %s\n", name, colorizeDelta(delta))
		}
	}
}

func renderQuote(q game.StockDetail) {
	accent.Printf("%s  %s\n", q.Symbol, q.Name)
	fmt.Printf("Price:  %s\n", finance.Format(q.Price))
	fmt.Printf("Shares: %s\n", q.Shares.StringFixed(4))
	fmt.Printf("Value:  %s\n", finance.Format(q.Value))
	if n := len(q.History); n > 1 {
		first, last := q.History[0].Value, q.History[n-1].Value
		fmt.Printf("Since %s: %s\n", q.History[0].Label, colorizePercent(percentChange(first, last)))
	}
}

func renderSummaries(games []game.GameSummary, current string) {
	if len(games) == 0 {
		printInfo("No games stored.")
		return
	}
	fmt.Printf("  %-36s %-14s %-10s %-10s %14s %s\n", "ID", "PLAYER", "TEMPLATE", "DATE", "NET WORTH", "EVENT")
	for _, g := range games {
		marker := " "
		if g.ID == current {
			marker = "*"
		}
		pending := ""
		if g.EventPending {
			pending = "pending"
		}
		fmt.Printf("%s %-36s %-14s %-10s %-10s %14s %s\n", marker, g.ID, truncate(g.PlayerName, 14), g.Template, g.Date, finance.Format(g.NetWorth), pending)
	}
}

// netWorthChange is the change since the previous month-end sample.
func netWorthChange(d game.Dashboard) decimal.Decimal {
	n := len(d.NetWorthHistory)
	if n == 0 {
		return decimal.Zero
	}
	return d.NetWorth.Sub(d.NetWorthHistory[n-1].Value)
}

func percentChange(from, to decimal.Decimal) decimal.Decimal {
	if from.IsZero() {
		return decimal.Zero
	}
	return to.Sub(from).Div(from).Mul(decimal.NewFromInt(100))
}

func colorizeMoney(v decimal.Decimal) string {
	text := finance.Format(v)
	if v.IsNegative() {
		return danger.Sprint(text)
	}
	return neutral.Sprint(text)
}

func colorizeDelta(v decimal.Decimal) string {
	text := signedMoney(v)
	switch v.Sign() {
	case 1:
		return success.Sprint(text)
	case -1:
		return danger.Sprint(text)
	default:
		return neutral.Sprint(text)
	}
}

func colorizePercent(v decimal.Decimal) string {
	text := v.StringFixed(2) + "%"
	if v.IsPositive() {
		text = "+" + text
	}
	switch v.Sign() {
	case 1:
		return success.Sprint(text)
	case -1:
		return danger.Sprint(text)
	default:
		return neutral.Sprint(text)
	}
}

func signedMoney(v decimal.Decimal) string {
	if v.IsPositive() {
		return "+" + finance.Format(v)
	}
	return finance.Format(v)
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
