package console

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"unibank/internal/models"
	"unibank/internal/session"
	"unibank/internal/status"
)

const timeLayout = "2006-01-02 15:04"

func formatTime(ts models.Timestamp) string {
	if ts.IsZero() {
		return "-"
	}
	return ts.Local().Format(timeLayout)
}

func formatID(id *int) string {
	if id == nil {
		return "-"
	}
	return strconv.Itoa(*id)
}

func renderAccounts(w io.Writer, accounts []models.Account) {
	if len(accounts) == 0 {
		fmt.Fprintln(w, "No accounts yet. Use new-account to open one.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "ID\tNUMBER\tBALANCE\tOPENED\t")
	for _, acc := range accounts {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t\n", acc.ID, acc.AccountNumber, acc.Balance.StringFixed(2), formatTime(acc.CreatedAt))
	}
	tw.Flush()
}

func renderTransactions(w io.Writer, accountID int, txs []models.Transaction) {
	if accountID == 0 {
		fmt.Fprintln(w, "No account selected. Use history <id>.")
		return
	}
	fmt.Fprintf(w, "Transactions for account %d\n", accountID)
	if len(txs) == 0 {
		fmt.Fprintln(w, "No transactions.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tFROM\tTO\tAMOUNT\tSTATUS\tDATE")
	for _, tx := range txs {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			tx.ID, tx.Kind(), formatID(tx.SenderAccountID), formatID(tx.ReceiverAccountID),
			tx.Amount.StringFixed(2), tx.Status, formatTime(tx.CreatedAt))
	}
	tw.Flush()
}

func renderLogs(w io.Writer, entries []models.AccessLogEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No access log entries.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tUSER\tACTION\tIP\tAGENT\tDATE")
	for _, e := range entries {
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\t%s\n", e.ID, e.UserID, e.Action, e.IPAddress, e.UserAgent, formatTime(e.CreatedAt))
	}
	tw.Flush()
}

func renderSession(w io.Writer, sess session.Session) {
	if !sess.Present() {
		fmt.Fprintln(w, "Not signed in.")
		return
	}
	who := sess.Subject
	if who == "" {
		who = "(unknown user)"
	}
	fmt.Fprintf(w, "Signed in as %s [%s]", who, sess.State)
	if !sess.ExpiresAt.IsZero() {
		fmt.Fprintf(w, ", token expires %s", sess.ExpiresAt.Local().Format(time.RFC1123))
	}
	fmt.Fprintln(w)
}

func renderStatus(w io.Writer, st status.Status) {
	switch {
	case st.HasMessage() && st.Busy:
		fmt.Fprintf(w, "[%s] %s (working...)\n", st.Kind, st.Message)
	case st.HasMessage():
		fmt.Fprintf(w, "[%s] %s\n", st.Kind, st.Message)
	case st.Busy:
		fmt.Fprintln(w, "working...")
	default:
		fmt.Fprintln(w, "idle")
	}
}

const helpText = `Commands:
  register <email> "<full name>" <password> [role]
  login <email> <password>
  logout
  whoami
  accounts                       list accounts (refreshes from the ledger)
  new-account                    open a new account
  close-account <id>
  history <id>                   show the transactions of an account
  transfer <from> <to> <amount>
  deposit <to> <amount>
  withdraw <from> <amount>
  logs [all]                     show access logs
  view <accounts|transactions|logs>
  dismiss                        clear the current message
  cancel                         abort requests in flight
  status
  help
  quit`
