package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/thijsken/gmsnederland/internal/domain"
)

func printJSON(v any) error {
	b, err := jsonMarshal(v)
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}

func printKV(rows [][2]string) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, row := range rows {
		_, _ = fmt.Fprintf(w, "%s\t%s\n", row[0], row[1])
	}
	_ = w.Flush()
}

func printTable(headers []string, rows [][]string) {
	if len(rows) == 0 {
		fmt.Println("no results")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, strings.Join(headers, "\t"))
	for _, row := range rows {
		_, _ = fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	_ = w.Flush()
}

func uintToString(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}

func formatUnixMillis(millis int64) string {
	if millis == 0 {
		return "-"
	}
	return time.UnixMilli(millis).Format("2006-01-02 15:04:05")
}

func printMeldingen(items []domain.Melding) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			uintToString(item.ID),
			item.Type,
			item.Location,
			item.PlayerName,
			item.Status,
			formatUnixMillis(item.Timestamp),
		})
	}
	printTable([]string{"ID", "TYPE", "LOCATION", "PLAYER", "STATUS", "AT"}, rows)
}

func printUnits(items []domain.Unit) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			item.UnitID,
			item.Type,
			item.Location,
		})
	}
	printTable([]string{"ID", "TYPE", "LOCATION"}, rows)
}
