package gsheets

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/api/sheets/v4"
)

// Values are written as-is so ids and timestamps stay text.
const valueInputOption = "RAW"

type tab struct {
	client        *Client
	spreadsheetID string
	title         string

	// header is the last header written or read, used to lay out saved
	// rows.
	header []string
}

func (t *tab) Title() string {
	return t.title
}

// a1 prefixes a range with the quoted tab title.
func (t *tab) a1(r string) string {
	name := "'" + strings.ReplaceAll(t.title, "'", "''") + "'"
	if r == "" {
		return name
	}
	return name + "!" + r
}

func toCells(row []string) []interface{} {
	cells := make([]interface{}, len(row))
	for i, v := range row {
		cells[i] = v
	}
	return cells
}

func fromCells(cells []interface{}) []string {
	row := make([]string, len(cells))
	for i, v := range cells {
		row[i] = fmt.Sprint(v)
	}
	return row
}

func (t *tab) Clear(ctx context.Context) error {
	if err := t.client.wait(ctx); err != nil {
		return err
	}
	_, err := t.client.Service.Spreadsheets.Values.
		Clear(t.spreadsheetID, t.a1(""), &sheets.ClearValuesRequest{}).
		Context(ctx).
		Do()
	if err != nil {
		return t.client.wrap("clear tab", err)
	}
	t.header = nil
	return nil
}

func (t *tab) SetHeaderRow(ctx context.Context, header []string) error {
	if err := t.client.wait(ctx); err != nil {
		return err
	}
	_, err := t.client.Service.Spreadsheets.Values.
		Update(t.spreadsheetID, t.a1("1:1"), &sheets.ValueRange{
			Values: [][]interface{}{toCells(header)},
		}).
		ValueInputOption(valueInputOption).
		Context(ctx).
		Do()
	if err != nil {
		return t.client.wrap("set header row", err)
	}
	t.header = append([]string(nil), header...)
	return nil
}

func (t *tab) AddRows(ctx context.Context, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}
	values := make([][]interface{}, len(rows))
	for i, row := range rows {
		values[i] = toCells(row)
	}

	if err := t.client.wait(ctx); err != nil {
		return err
	}
	_, err := t.client.Service.Spreadsheets.Values.
		Append(t.spreadsheetID, t.a1("A1"), &sheets.ValueRange{Values: values}).
		ValueInputOption(valueInputOption).
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return t.client.wrap("append rows", err)
	}
	return nil
}

func (t *tab) Cells(ctx context.Context) ([][]string, error) {
	if err := t.client.wait(ctx); err != nil {
		return nil, err
	}
	vr, err := t.client.Service.Spreadsheets.Values.
		Get(t.spreadsheetID, t.a1("")).
		Context(ctx).
		Do()
	if err != nil {
		return nil, t.client.wrap("get values", err)
	}
	grid := make([][]string, len(vr.Values))
	for i, cells := range vr.Values {
		grid[i] = fromCells(cells)
	}
	return grid, nil
}

func (t *tab) Rows(ctx context.Context) ([]*Row, error) {
	grid, err := t.Cells(ctx)
	if err != nil {
		return nil, err
	}
	if len(grid) == 0 {
		t.header = nil
		return nil, nil
	}

	t.header = grid[0]
	rows := make([]*Row, 0, len(grid)-1)
	for i, cells := range grid[1:] {
		values := make(map[string]string, len(cells))
		for j, v := range cells {
			if j < len(t.header) && t.header[j] != "" {
				values[t.header[j]] = v
			}
		}
		rows = append(rows, &Row{Number: i + 2, Values: values})
	}
	return rows, nil
}

func (t *tab) SaveRow(ctx context.Context, row *Row) error {
	if len(t.header) == 0 {
		return fmt.Errorf("save row %d: header not loaded", row.Number)
	}
	if row.Number < 2 {
		return fmt.Errorf("save row %d: not a data row", row.Number)
	}
	cells := make([]string, len(t.header))
	for i, name := range t.header {
		cells[i] = row.Values[name]
	}

	if err := t.client.wait(ctx); err != nil {
		return err
	}
	_, err := t.client.Service.Spreadsheets.Values.
		Update(t.spreadsheetID, t.a1(fmt.Sprintf("A%d", row.Number)), &sheets.ValueRange{
			Values: [][]interface{}{toCells(cells)},
		}).
		ValueInputOption(valueInputOption).
		Context(ctx).
		Do()
	if err != nil {
		return t.client.wrap(fmt.Sprintf("save row %d", row.Number), err)
	}
	return nil
}
