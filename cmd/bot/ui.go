package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"crypto-trading-bot/internal/exchange/bithumb"
	"crypto-trading-bot/internal/tradelog"
	"crypto-trading-bot/internal/types"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED")).
			MarginBottom(1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#3B82F6"))

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#10B981")).
		Bold(true)

	idleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280"))

	failStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444")).
			Bold(true)
)

func outcomeStyle(kind types.OutcomeKind) lipgloss.Style {
	switch {
	case kind == types.Executed:
		return okStyle
	case kind.Failed():
		return failStyle
	default:
		return idleStyle
	}
}

// cell pads s to width before styling so escape codes do not break alignment.
func cell(style lipgloss.Style, s string, width int) string {
	if pad := width - lipgloss.Width(s); pad > 0 {
		s += strings.Repeat(" ", pad)
	}
	return style.Render(s)
}

func printBalances(w io.Writer, market string, balances []bithumb.Balance) {
	fmt.Fprintln(w, titleStyle.Render("Bithumb balances ("+market+")"))
	fmt.Fprintln(w, cell(headerStyle, "CURRENCY", 10)+cell(headerStyle, "BALANCE", 22)+cell(headerStyle, "LOCKED", 22)+headerStyle.Render("AVG_BUY_PRICE"))
	for _, b := range balances {
		fmt.Fprintln(w, cell(lipgloss.NewStyle(), b.Currency, 10)+
			cell(lipgloss.NewStyle(), b.Balance.String(), 22)+
			cell(idleStyle, b.Locked.String(), 22)+
			b.AvgBuyPrice.String())
	}
}

func printHistory(w io.Writer, records []tradelog.CycleRecord) {
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("Last %d cycles", len(records))))
	fmt.Fprintln(w, cell(headerStyle, "STARTED", 22)+cell(headerStyle, "OUTCOME", 25)+cell(headerStyle, "ACTION", 8)+cell(headerStyle, "QTY", 14)+headerStyle.Render("DETAIL"))
	for _, r := range records {
		detail := r.Reason
		switch {
		case r.Error != "":
			detail = r.Error
		case r.Trigger != "":
			detail = r.Trigger
		}
		if r.OrderID != "" {
			detail += " [" + r.OrderID + "]"
		}
		fmt.Fprintln(w, cell(idleStyle, r.StartedAt, 22)+
			cell(outcomeStyle(types.OutcomeKind(r.Outcome)), r.Outcome, 25)+
			cell(lipgloss.NewStyle(), r.Action, 8)+
			cell(lipgloss.NewStyle(), r.Quantity, 14)+
			detail)
	}
}

func printOutcomeHeader(w io.Writer, o *types.Outcome) {
	fmt.Fprintln(w, outcomeStyle(o.Kind).Render(fmt.Sprintf("%s at step %s (%s)", o.Kind, o.Step, o.Duration)))
}
