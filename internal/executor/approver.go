package executor

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Approver asks for operator sign-off before a live trade executes.
type Approver interface {
	Confirm(intent TradeIntent) (bool, error)
}

// AutoApprover approves everything. Used in paper mode and in live phases
// with confirmation disabled.
type AutoApprover struct{}

func (AutoApprover) Confirm(TradeIntent) (bool, error) {
	return true, nil
}

// ConsoleApprover prompts on the terminal and reads a y/n answer. Anything
// other than an explicit yes declines the trade.
type ConsoleApprover struct {
	In  io.Reader
	Out io.Writer
}

func (a *ConsoleApprover) Confirm(intent TradeIntent) (bool, error) {
	fmt.Fprintf(a.Out, "\n⚠️  Confirm %s %s $%s at $%s (%s)? [y/N]: ",
		intent.Side, intent.Symbol, intent.AmountUSD.StringFixed(2),
		intent.Price.StringFixed(2), intent.Reason)

	line, err := bufio.NewReader(a.In).ReadString('\n')
	if err != nil && line == "" {
		return false, fmt.Errorf("failed to read confirmation: %w", err)
	}

	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}
