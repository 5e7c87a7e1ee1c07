package main

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/fatih/color"

	"refinery/internal/bignum"
	"refinery/internal/catalog"
	"refinery/internal/currency"
	"refinery/internal/game"
	"refinery/internal/revenue"
)

var (
	accent  = color.New(color.FgCyan, color.Bold)
	success = color.New(color.FgGreen, color.Bold)
	warn    = color.New(color.FgYellow, color.Bold)
	danger  = color.New(color.FgRed, color.Bold)
	neutral = color.New(color.FgHiWhite)
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

func renderNumber(n bignum.Number, notation bignum.Notation) {
	fmt.Println(colorizeNumber(n, notation))
	if n.Layer() > 0 {
		neutral.Printf("layer %d\n", n.Layer())
	}
}

func renderUpgrade(u catalog.Upgrade, levels int64) {
	view := upgradeCurve(u)
	accent.Printf("\n== %s (%s on %s) ==\n", u.Name, u.Kind, strings.Join(targetNames(u.Targets), ", "))
	if u.Description != "" {
		fmt.Println(u.Description)
	}
	fmt.Printf("Boost:  %s\n", view)
	fmt.Printf("Cost:   %s %s\n", u.Cost.Render("level"), u.CostCurrency)
	if u.MaxLevel > 0 {
		fmt.Printf("Max:    %d\n", u.MaxLevel)
	}
	if levels <= 0 {
		return
	}
	fmt.Printf("%-6s %16s %16s\n", "LEVEL", "BOOST", "NEXT COST")
	for lvl := int64(1); lvl <= levels; lvl++ {
		if u.Maxed(lvl - 1) {
			break
		}
		boost := u.Curve.Apply(bignum.FromInt(lvl))
		cost := u.CostAt(lvl - 1).Get(u.CostCurrency)
		fmt.Printf("%-6d %16s %16s\n", lvl, boost.Text(bignum.Suffix), cost.Text(bignum.Suffix))
	}
}

func upgradeCurve(u catalog.Upgrade) string {
	if r, ok := u.Curve.(interface{ Render(string) string }); ok {
		return r.Render("level")
	}
	return "level"
}

func targetNames(cs []currency.Currency) []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.String())
	}
	return out
}

func renderResult(furnace string, count int64, res revenue.Result) {
	accent.Printf("\n== %d droplets into %s ==\n", count, furnace)
	stages := make([]string, 0, len(res.Trace))
	for _, s := range res.Trace {
		stages = append(stages, s.String())
	}
	fmt.Printf("Trace:  %s\n", strings.Join(stages, " > "))
	if res.PassThrough {
		printInfo("Pass-through: the furnace adds nothing of its own.")
		return
	}
	if !res.Nerf.Equals(bignum.One) {
		fmt.Printf("Nerf:   %s\n", res.Nerf)
	}
	if len(res.Capped) > 0 {
		warn.Printf("Softcapped: %s\n", strings.Join(targetNames(res.Capped), ", "))
	}
	fmt.Printf("Delta:  %s\n", formatBundle(res.Delta))
}

func renderDroplets(out game.DropletResult) {
	renderResult(out.FurnaceID, out.Count, out.Result)
	label := "Balance"
	if out.Preview {
		label = "Balance (preview)"
	}
	fmt.Printf("%s: %s\n", label, formatBundle(out.Balance))
}

func renderWallet(w game.WalletView) {
	accent.Printf("\n== %s ==\n", w.PlayerID)
	if w.Balance.Len() == 0 {
		printInfo("Wallet is empty.")
	}
	fmt.Printf("%-12s %16s %16s\n", "CURRENCY", "BALANCE", "PEAK")
	for c, v := range w.Balance.All() {
		fmt.Printf("%-12s %16s %16s\n", c, colorizeNumber(v, bignum.Suffix), w.Peak.Get(c).Text(bignum.Suffix))
	}
	if len(w.Upgrades) > 0 {
		fmt.Println()
		accent.Println("Upgrades")
		for _, name := range slices.Sorted(maps.Keys(w.Upgrades)) {
			fmt.Printf("  %-20s %d\n", name, w.Upgrades[name])
		}
	}
}

func formatBundle(b currency.Bundle) string {
	if b.Len() == 0 {
		return "nothing"
	}
	parts := make([]string, 0, b.Len())
	for c, v := range b.All() {
		parts = append(parts, fmt.Sprintf("%s %s", v.Text(bignum.Suffix), c))
	}
	return strings.Join(parts, ", ")
}

func colorizeNumber(n bignum.Number, notation bignum.Notation) string {
	text := n.Text(notation)
	switch {
	case n.Sign() > 0:
		return success.Sprint(text)
	case n.Sign() < 0:
		return danger.Sprint(text)
	default:
		return neutral.Sprint(text)
	}
}
