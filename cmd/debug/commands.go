package debug

import (
	"fmt"
	"sort"
	"strconv"

	"cardroom/domain/entities"

	"github.com/pterm/pterm"
	log "github.com/sirupsen/logrus"
)

func (s *Shell) initializeCommands() {
	s.commands = map[string]Command{
		"help": {
			Handler:     (*Shell).cmdHelp,
			Description: "Show available commands",
			Usage:       "help",
			Category:    "utility",
		},
		"table": {
			Handler:     (*Shell).cmdTable,
			Description: "Show a table and its occupied seats",
			Usage:       "table <table_id>",
			Category:    "read",
		},
		"balance": {
			Handler:     (*Shell).cmdBalance,
			Description: "Show a wallet balance",
			Usage:       "balance <user_id> <play|real>",
			Category:    "read",
		},
		"reconcile": {
			Handler:     (*Shell).cmdReconcile,
			Description: "Compare a wallet balance with its ledger",
			Usage:       "reconcile <user_id> <play|real>",
			Category:    "read",
		},
		"waitlist": {
			Handler:     (*Shell).cmdWaitlist,
			Description: "Show waiting buckets and table counts",
			Usage:       "waitlist",
			Category:    "read",
		},
		"sweep": {
			Handler:     (*Shell).cmdSweep,
			Description: "Run the expiration, join window and invite sweeps now",
			Usage:       "sweep",
			Category:    "admin",
		},
		"route": {
			Handler:     (*Shell).cmdRoute,
			Description: "Run a waitlist router pass now",
			Usage:       "route",
			Category:    "admin",
		},
		"history": {
			Handler:     (*Shell).cmdHistory,
			Description: "Show command history",
			Usage:       "history",
			Category:    "utility",
		},
	}
}

func (s *Shell) cmdHelp(args []string) error {
	data := pterm.TableData{{"Command", "Usage", "Category", "Description"}}
	for _, name := range s.sortedCommandNames() {
		cmd := s.commands[name]
		data = append(data, []string{name, cmd.Usage, cmd.Category, cmd.Description})
	}
	data = append(data,
		[]string{"dry-run", "dry-run [on|off]", "utility", "Toggle dry-run mode for admin commands"},
		[]string{"exit", "exit", "utility", "Leave the shell"},
	)
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func (s *Shell) cmdTable(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: table <table_id>")
	}
	tableID, err := parseID(args[0])
	if err != nil {
		return err
	}

	view, err := s.debugClient.Table(tableID)
	if err != nil {
		return err
	}
	table := view.Table

	pterm.DefaultSection.Printfln("Table %d", table.ID)
	summary := pterm.TableData{
		{"Status", string(table.Status)},
		{"Variant", string(table.Variant)},
		{"Currency", string(table.Currency)},
		{"Seats", fmt.Sprintf("%d/%d", len(view.Seats), table.MaxSeats)},
		{"Buy-in", formatNumber(table.BuyIn)},
		{"Persistent", strconv.FormatBool(table.IsPersistent)},
	}
	if table.SNGState != nil {
		summary = append(summary, []string{"SNG state", string(*table.SNGState)}, []string{"Prize pool", formatNumber(table.PrizePool)})
	}
	if table.ExpiresAt != nil {
		summary = append(summary, []string{"Expires at", table.ExpiresAt.UTC().Format("2006-01-02 15:04:05")})
	}
	if err := pterm.DefaultTable.WithData(summary).Render(); err != nil {
		return err
	}

	if len(view.Seats) == 0 {
		pterm.Info.Println("No occupied seats")
		return nil
	}

	seats := pterm.TableData{{"Seat", "User", "Stack", "Sitting out", "Strikes"}}
	for _, seat := range view.Seats {
		sittingOut := "no"
		switch {
		case seat.LeaveAfterHand:
			sittingOut = "leaving"
		case seat.SittingOut:
			sittingOut = "yes"
		case seat.SitOutNextHand:
			sittingOut = "next hand"
		}
		seats = append(seats, []string{
			strconv.Itoa(seat.SeatIndex),
			strconv.FormatInt(seat.UserID, 10),
			formatNumber(seat.Stack),
			sittingOut,
			strconv.Itoa(seat.TimeoutStrikes),
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(seats).Render()
}

func (s *Shell) cmdBalance(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: balance <user_id> <play|real>")
	}
	userID, err := parseID(args[0])
	if err != nil {
		return err
	}

	view, err := s.debugClient.Balance(userID, args[1])
	if err != nil {
		return err
	}

	pterm.Info.Printfln("User %d %s balance: %s", view.UserID, view.Currency, formatNumber(view.Balance))
	return nil
}

func (s *Shell) cmdReconcile(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: reconcile <user_id> <play|real>")
	}
	userID, err := parseID(args[0])
	if err != nil {
		return err
	}

	result, err := s.debugClient.Reconcile(userID, args[1])
	if err != nil {
		return err
	}

	data := pterm.TableData{
		{"Wallet balance", formatNumber(result.WalletBalance)},
		{"Ledger sum", formatNumber(result.LedgerSum)},
		{"Drift", formatSignedNumber(result.WalletBalance - result.LedgerSum)},
	}
	if err := pterm.DefaultTable.WithData(data).Render(); err != nil {
		return err
	}

	if result.Consistent {
		pterm.Success.Println("Wallet matches the ledger")
	} else {
		pterm.Error.Println("Wallet does not match the ledger")
	}
	return nil
}

func (s *Shell) cmdWaitlist(args []string) error {
	view, err := s.debugClient.Waitlist()
	if err != nil {
		return err
	}

	pterm.DefaultSection.Println("Waiting buckets")
	if len(view.Buckets) == 0 {
		pterm.Info.Println("Nobody is waiting")
	} else {
		buckets := pterm.TableData{{"Bucket", "Waiting"}}
		for _, bucket := range view.Buckets {
			buckets = append(buckets, []string{bucket.Key(), strconv.Itoa(bucket.Waiting)})
		}
		if err := pterm.DefaultTable.WithHasHeader().WithData(buckets).Render(); err != nil {
			return err
		}
	}

	pterm.DefaultSection.Println("Tables")
	statuses := make([]string, 0, len(view.TableCounts))
	for status := range view.TableCounts {
		statuses = append(statuses, string(status))
	}
	sort.Strings(statuses)

	counts := pterm.TableData{{"Status", "Tables"}}
	for _, status := range statuses {
		counts = append(counts, []string{status, strconv.Itoa(view.TableCounts[entities.TableStatus(status)])})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(counts).Render()
}

func (s *Shell) cmdSweep(args []string) error {
	if !s.confirmAction("Run all sweeps now?") {
		return nil
	}

	view, err := s.debugClient.Sweep()
	if err != nil {
		return err
	}
	s.logAdminAction("sweep", log.Fields{
		"tables_expired":  view.Expired.Applied,
		"windows_closed":  view.JoinWindows.Applied,
		"invites_expired": view.InvitesExpired,
	})

	data := pterm.TableData{
		{"Sweep", "Checked", "Applied", "Failed"},
		{"expiration", strconv.Itoa(view.Expired.Checked), strconv.Itoa(view.Expired.Applied), strconv.Itoa(view.Expired.Failed)},
		{"join window", strconv.Itoa(view.JoinWindows.Checked), strconv.Itoa(view.JoinWindows.Applied), strconv.Itoa(view.JoinWindows.Failed)},
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
		return err
	}
	pterm.Success.Printfln("%d invites expired", view.InvitesExpired)
	return nil
}

func (s *Shell) cmdRoute(args []string) error {
	if !s.confirmAction("Run a router pass now?") {
		return nil
	}

	report, err := s.debugClient.Route()
	if err != nil {
		return err
	}
	s.logAdminAction("route", log.Fields{
		"routed":     report.Routed,
		"new_tables": report.NewTables,
	})

	data := pterm.TableData{
		{"Buckets", "Skipped", "Routed", "New tables", "Cancelled", "Deferred"},
		{
			strconv.Itoa(report.Buckets),
			strconv.Itoa(report.Skipped),
			strconv.Itoa(report.Routed),
			strconv.Itoa(report.NewTables),
			strconv.Itoa(report.Cancelled),
			strconv.Itoa(report.Deferred),
		},
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func (s *Shell) cmdHistory(args []string) error {
	for i, line := range s.history {
		fmt.Printf("%4d  %s\n", i+1, line)
	}
	return nil
}

func parseID(value string) (int64, error) {
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", value)
	}
	return id, nil
}
