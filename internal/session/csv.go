package session

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/jensholdgaard/clubhub/internal/domainerr"
)

// Columns is the attendance sheet header.
var Columns = []string{"player_id", "attended", "score"}

// MaxScore is the highest rating a coach can give.
const MaxScore = 10

var (
	ErrBadHeader = domainerr.Precondition("csv_header", "CSV must have columns: attended, player_id, score")
	ErrRowErrors = domainerr.Precondition("csv_rows", "some rows had errors")
)

// Row is one parsed attendance line.
type Row struct {
	Line       int
	PlayerCode string
	Attended   bool
	Score      int
}

// Rating is the score kept for the row: zero when absent.
func (r Row) Rating() int {
	if !r.Attended {
		return 0
	}
	return r.Score
}

// RowError reports why a line was rejected.
type RowError struct {
	Line       int    `json:"row"`
	PlayerCode string `json:"player_id"`
	Reason     string `json:"error"`
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d (%s): %s", e.Line, e.PlayerCode, e.Reason)
}

// RowErrors is returned when a sheet cannot be applied as a whole.
type RowErrors []RowError

func (e RowErrors) Error() string {
	return fmt.Sprintf("%d rows had errors", len(e))
}

func (e RowErrors) Unwrap() error { return ErrRowErrors }

// ParseAttendance reads an attendance sheet. The header must hold exactly
// the three Columns in any order. Empty values count as zero, attended is
// clamped to 0..1 and score to 0..MaxScore. Lines that cannot be read,
// including malformed quoting, are returned as RowErrors alongside the good
// rows.
func ParseAttendance(r io.Reader) ([]Row, []RowError, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, ErrBadHeader
	}
	if err != nil {
		return nil, nil, fmt.Errorf("reading header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	if len(idx) != len(Columns) || len(header) != len(Columns) {
		return nil, nil, ErrBadHeader
	}
	for _, c := range Columns {
		if _, ok := idx[c]; !ok {
			return nil, nil, ErrBadHeader
		}
	}

	var (
		rows    []Row
		rowErrs []RowError
		seen    = map[string]int{}
	)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			rowErrs = append(rowErrs, RowError{Line: perr.StartLine, Reason: "malformed CSV: " + perr.Err.Error()})
			continue
		}
		if err != nil {
			return nil, nil, fmt.Errorf("reading attendance: %w", err)
		}
		line, _ := cr.FieldPos(0)
		field := func(name string) string {
			if i := idx[name]; i < len(rec) {
				return strings.TrimSpace(rec[i])
			}
			return ""
		}
		if slices.IndexFunc(rec, func(s string) bool { return strings.TrimSpace(s) != "" }) < 0 {
			continue
		}

		pid := field("player_id")
		if pid == "" {
			rowErrs = append(rowErrs, RowError{Line: line, Reason: "player ID is required"})
			continue
		}
		if first, dup := seen[pid]; dup {
			rowErrs = append(rowErrs, RowError{Line: line, PlayerCode: pid, Reason: fmt.Sprintf("duplicate of row %d", first)})
			continue
		}
		attended, errA := number(field("attended"))
		score, errS := number(field("score"))
		if errA != nil || errS != nil {
			rowErrs = append(rowErrs, RowError{Line: line, PlayerCode: pid, Reason: "attended and score must be integers"})
			continue
		}
		seen[pid] = line
		rows = append(rows, Row{
			Line:       line,
			PlayerCode: pid,
			Attended:   min(max(attended, 0), 1) == 1,
			Score:      min(max(score, 0), MaxScore),
		})
	}
	return rows, rowErrs, nil
}

func number(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

// WriteTemplate writes a blank sheet with one row per player code.
func WriteTemplate(w io.Writer, codes []string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, code := range codes {
		if err := cw.Write([]string{code, "0", "0"}); err != nil {
			return fmt.Errorf("writing row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
