package reporting

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"
)

// WriteTradesCSV writes one row per closed trade
func WriteTradesCSV(r Report, path string) error {
	if err := EnsureDirectoryExists(path); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{
		"ID", "Symbol", "Side", "Opened_At", "Closed_At",
		"Entry_Price", "Exit_Price", "Size", "PnL", "Fees", "Exit_Reason", "Strategy", "Signal_ID",
	}); err != nil {
		return err
	}

	for _, t := range r.Trades {
		if err := w.Write([]string{
			t.ID,
			t.Symbol,
			t.Side,
			t.OpenedAt.Format(time.RFC3339),
			t.ClosedAt.Format(time.RFC3339),
			formatFloat(t.EntryPrice),
			formatFloat(t.ExitPrice),
			formatFloat(t.Size),
			strconv.FormatFloat(t.PnL, 'f', 4, 64),
			strconv.FormatFloat(t.Fees, 'f', 4, 64),
			t.ExitReason,
			t.Strategy,
			t.SignalID,
		}); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
