// Package report ranks a scan and renders it for the terminal or as CSV.
package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/newthinker/predator/internal/core"
	"github.com/newthinker/predator/internal/scoring"
	"github.com/newthinker/predator/internal/storage/archive"
)

type Status string

const (
	StatusStrongBuy Status = "STRONG BUY"
	StatusWatch     Status = "WATCH"
	StatusWait      Status = "WAIT"
	StatusNoData    Status = "NO DATA"
)

// StatusFor maps a score to its ranking bucket.
func StatusFor(score int) Status {
	switch {
	case score >= 8:
		return StatusStrongBuy
	case score >= 5:
		return StatusWatch
	default:
		return StatusWait
	}
}

// Row is one ranked symbol.
type Row struct {
	Rank    int
	Symbol  string
	Score   int
	Status  Status
	Price   float64
	ATR     float64
	RSI     float64
	Signals []string
	Note    string
}

// Build ranks results and converts them to rows. Failed symbols are kept
// at the bottom with their error as the note.
func Build(results []scoring.Scored) []Row {
	ranked := scoring.Rank(results)
	rows := make([]Row, 0, len(ranked))
	for i, r := range ranked {
		row := Row{Rank: i + 1, Symbol: r.Symbol}
		if r.Err != nil {
			row.Status = StatusNoData
			row.Note = r.Err.Error()
			rows = append(rows, row)
			continue
		}
		row.Score = r.Score
		row.Status = StatusFor(r.Score)
		row.Price = r.Price
		row.ATR = r.ATR
		row.RSI = r.RSI
		row.Signals = r.Signals
		rows = append(rows, row)
	}
	return rows
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED")).MarginBottom(1)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#3B82F6")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))

	statusStyles = map[Status]lipgloss.Style{
		StatusStrongBuy: cellStyle.Foreground(lipgloss.Color("#10B981")).Bold(true),
		StatusWatch:     cellStyle.Foreground(lipgloss.Color("#F59E0B")),
		StatusWait:      cellStyle.Foreground(lipgloss.Color("#6B7280")),
		StatusNoData:    cellStyle.Foreground(lipgloss.Color("#EF4444")),
	}
)

var headers = []string{"#", "SYMBOL", "SCORE", "STATUS", "PRICE", "ATR", "RSI", "SIGNALS"}

const statusCol = 3

// Render draws rows as a bordered table under title.
func Render(title string, rows []Row) string {
	data := make([][]string, len(rows))
	for i, r := range rows {
		data[i] = cells(r)
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		Rows(data...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == statusCol && row >= 0 && row < len(rows) {
				if st, ok := statusStyles[rows[row].Status]; ok {
					return st
				}
			}
			return cellStyle
		})

	return lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render(title), t.Render())
}

func cells(r Row) []string {
	if r.Status == StatusNoData {
		return []string{strconv.Itoa(r.Rank), r.Symbol, "-", string(r.Status), "-", "-", "-", r.Note}
	}
	return []string{
		strconv.Itoa(r.Rank),
		r.Symbol,
		strconv.Itoa(r.Score),
		string(r.Status),
		fmt.Sprintf("%.2f", r.Price),
		fmt.Sprintf("%.2f", r.ATR),
		fmt.Sprintf("%.1f", r.RSI),
		strings.Join(r.Signals, ", "),
	}
}

var csvHeader = []string{"rank", "symbol", "score", "status", "price", "atr", "rsi", "signals", "note"}

// WriteCSV writes rows with a header line. Signals are joined with "|".
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{
			strconv.Itoa(r.Rank),
			r.Symbol,
			strconv.Itoa(r.Score),
			string(r.Status),
			strconv.FormatFloat(r.Price, 'f', 2, 64),
			strconv.FormatFloat(r.ATR, 'f', 4, 64),
			strconv.FormatFloat(r.RSI, 'f', 2, 64),
			strings.Join(r.Signals, "|"),
			r.Note,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Key is the archive object name of a scan taken at t.
func Key(prefix string, tf core.Timeframe, t time.Time) string {
	name := fmt.Sprintf("scan_%s_%s.csv", tf, t.UTC().Format("20060102_1504"))
	if prefix == "" {
		return name
	}
	return strings.TrimSuffix(prefix, "/") + "/" + name
}

// Archive stores rows as CSV under key.
func Archive(ctx context.Context, store archive.Store, key string, rows []Row) error {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, rows); err != nil {
		return fmt.Errorf("encode scan report: %w", err)
	}
	if err := store.Write(ctx, key, buf.Bytes()); err != nil {
		return fmt.Errorf("archive scan report %s: %w", key, err)
	}
	return nil
}
