package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"bondsignal/internal/engine"
	"bondsignal/internal/risk"
	"bondsignal/internal/scanner"
	"bondsignal/internal/strategy"
)

// riskReplay is the opening plan for a position and the updates from
// replaying prices through it
type riskReplay struct {
	Code      string        `json:"code"`
	ID        string        `json:"id"`
	Mode      risk.Mode     `json:"mode"`
	Entry     float64       `json:"entry"`
	ATR       float64       `json:"atr,omitempty"`
	FixedStop float64       `json:"fixed_stop"`
	Ladder    []risk.Rung   `json:"ladder"`
	Updates   []risk.Update `json:"updates,omitempty"`
	Final     *risk.State   `json:"final"`
	StoppedAt int           `json:"stopped_at"`
}

func outputJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		return string(r[:n]) + "..."
	}
	return s
}

func printAnalysis(res *engine.Result) {
	fmt.Printf("[%s] %s  close %.3f on %s (%d bars)\n",
		res.Bond.Code, res.Bond.Name, res.Price, res.AsOf.Format("2006-01-02"), res.Bars)
	fmt.Printf("Regime: %s (ADX %.1f, confidence %.0f)\n",
		res.Regime.Regime, res.Regime.ADX, res.Regime.Confidence)
	for _, msg := range res.Prerequisites.Messages {
		fmt.Printf("  ! %s\n", msg)
	}
	fmt.Println()

	table := tablewriter.NewTable(os.Stdout,
		tablewriter.WithHeader([]string{"Side", "Signal", "Dimension", "Polarity", "Strength", "Reason"}),
	)
	appendSignals := func(side string, signals []strategy.Signal) {
		for _, s := range signals {
			table.Append([]string{
				side,
				string(s.Kind),
				string(s.Dimension),
				string(s.Polarity),
				fmt.Sprintf("%.0f", s.Strength),
				truncate(s.Reason, 45),
			})
		}
	}
	appendSignals("buy", res.BuySignals)
	appendSignals("sell", res.SellSignals)
	table.Render()

	fmt.Printf("\nBuy score:  %5.1f (resonance %d, x%.1f)", res.Buy.Value, res.Buy.Resonance, res.Buy.Multiplier)
	if res.Buy.Invalidated {
		fmt.Printf(" invalidated: %s", strings.Join(res.Buy.Invalidations, "; "))
	}
	fmt.Printf("\nSell score: %5.1f (resonance %d, x%.1f)\n", res.Sell.Value, res.Sell.Resonance, res.Sell.Multiplier)
	fmt.Printf(">> Signal: %s [%s]\n", strings.ToUpper(string(res.Decision.Signal)), res.Decision.Rule)
	fmt.Printf(">> Rating: %s - %s\n", strings.ToUpper(string(res.Rating.Label)), res.Rating.Advice)
	for _, r := range res.Rating.Reasons {
		fmt.Printf("   %s\n", r)
	}

	if res.Risk != nil {
		fmt.Printf("\nStop: %.3f (%s mode)", res.Risk.EffectiveStop(), res.Risk.Mode)
		if next, ok := res.Risk.NextTarget(); ok {
			fmt.Printf(" | next target %s at %.3f", next.Label, next.Target)
		}
		fmt.Println()
	}
}

func printScan(res *scanner.ScanResult, results []*engine.Result, limit int) {
	if len(results) == 0 {
		fmt.Println("No bonds matched.")
	} else {
		fmt.Printf("Found %d bonds:\n\n", len(results))

		table := tablewriter.NewTable(os.Stdout,
			tablewriter.WithHeader([]string{"Code", "Name", "Close", "Regime", "Buy", "Sell", "Signal", "Rating"}),
		)
		for i, r := range results {
			if limit > 0 && i >= limit {
				break
			}
			table.Append([]string{
				r.Bond.Code,
				truncate(r.Bond.Name, 12),
				fmt.Sprintf("%.3f", r.Price),
				string(r.Regime.Regime),
				fmt.Sprintf("%.1f", r.Buy.Value),
				fmt.Sprintf("%.1f", r.Sell.Value),
				string(r.Decision.Signal),
				string(r.Rating.Label),
			})
		}
		table.Render()
	}

	if len(res.Failures) > 0 {
		fmt.Printf("\n%d bonds failed:\n", len(res.Failures))
		for _, f := range res.Failures {
			fmt.Printf("  %s (%s): %s\n", f.Code, f.Stage, f.Error)
		}
	}

	fmt.Printf("\nScanned %d of %d bonds in %s\n", res.Scanned, res.Total, res.ScanTime.Round(time.Millisecond))
}

func printRisk(plan riskReplay) {
	fmt.Printf("[%s] entry %.3f, %s mode", plan.Code, plan.Entry, plan.Mode)
	if plan.ATR > 0 {
		fmt.Printf(", ATR %.3f", plan.ATR)
	}
	fmt.Printf("\nFixed stop: %.3f\n\n", plan.FixedStop)

	ladder := tablewriter.NewTable(os.Stdout,
		tablewriter.WithHeader([]string{"Level", "Target", "Stop After Hit"}),
	)
	for _, r := range plan.Ladder {
		ladder.Append([]string{r.Label, fmt.Sprintf("%.3f", r.Target), fmt.Sprintf("%.3f", r.StopAfterHit)})
	}
	ladder.Render()

	if len(plan.Updates) == 0 {
		return
	}

	fmt.Println()
	updates := tablewriter.NewTable(os.Stdout,
		tablewriter.WithHeader([]string{"#", "Price", "Trailing", "Stop", "Reached", "Action"}),
	)
	for i, u := range plan.Updates {
		reached := make([]string, 0, len(u.Reached))
		for _, r := range u.Reached {
			reached = append(reached, r.Label)
		}
		action := "hold"
		switch {
		case u.StopHit:
			action = "STOP"
		case len(reached) > 0:
			action = "take profit"
		}
		updates.Append([]string{
			fmt.Sprintf("%d", i+1),
			fmt.Sprintf("%.3f", u.Price),
			fmt.Sprintf("%.3f", u.TrailingStop),
			fmt.Sprintf("%.3f", u.EffectiveStop),
			strings.Join(reached, ","),
			action,
		})
	}
	updates.Render()

	if plan.StoppedAt >= 0 {
		fmt.Printf("\nStopped out at update %d\n", plan.StoppedAt+1)
	}
}
