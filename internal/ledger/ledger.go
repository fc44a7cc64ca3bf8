package ledger

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"

	"karaokeprep/internal/fileutil"
	"karaokeprep/internal/services"
)

const (
	columnArtist = "artist"
	columnTitle  = "title"
	columnStatus = "status"
)

// ValidationError names the ledger row that failed validation. Row is the
// 1-based data row (the header is not counted).
type ValidationError struct {
	Row    int
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("ledger row %d: %s", e.Row, e.Reason)
	}
	return fmt.Sprintf("ledger row %d: %s %s", e.Row, strings.ToLower(e.Field), e.Reason)
}

func (e *ValidationError) Unwrap() error { return services.ErrValidation }

// Item is one ledger row.
type Item struct {
	Row    int
	Artist string `validate:"required"`
	Title  string `validate:"required"`
	Status Status `validate:"required,oneof=Uploaded PrepComplete PrepFailed Completed RenderFailed"`
	Inputs []string

	record []string
}

// Input returns the acquisition input: the first non-empty input reference.
func (i *Item) Input() string {
	for _, in := range i.Inputs {
		if v := strings.TrimSpace(in); v != "" {
			return v
		}
	}
	return ""
}

// Ledger is an in-memory copy of a ledger file.
type Ledger struct {
	path      string
	header    []string
	statusCol int
	Items     []*Item
}

var validate = validator.New()

// Load reads and validates the ledger at path.
func Load(path string) (*Ledger, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	return Parse(path, bytes.NewReader(data))
}

// Parse reads a ledger from r; path is where Save will write it.
func Parse(path string, r io.Reader) (*Ledger, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, services.Wrap(services.ErrValidation, "ledger", "parse", "ledger is empty", nil)
	}
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "ledger", "parse header", "", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	artistCol, titleCol, statusCol := -1, -1, -1
	var inputCols []int
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case columnArtist:
			artistCol = i
		case columnTitle:
			titleCol = i
		case columnStatus:
			statusCol = i
		default:
			inputCols = append(inputCols, i)
		}
	}
	var missing []string
	if artistCol < 0 {
		missing = append(missing, "Artist")
	}
	if titleCol < 0 {
		missing = append(missing, "Title")
	}
	if statusCol < 0 {
		missing = append(missing, "Status")
	}
	if len(missing) > 0 {
		return nil, services.Wrap(services.ErrValidation, "ledger", "parse header",
			"missing column(s): "+strings.Join(missing, ", "), nil)
	}

	l := &Ledger{path: path, header: header, statusCol: statusCol}
	for row := 1; ; row++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &ValidationError{Row: row, Reason: err.Error()}
		}
		if blank(record) {
			row--
			continue
		}
		for len(record) < len(header) {
			record = append(record, "")
		}
		item := &Item{
			Row:    row,
			Artist: strings.TrimSpace(record[artistCol]),
			Title:  strings.TrimSpace(record[titleCol]),
			record: record,
		}
		rawStatus := strings.TrimSpace(record[statusCol])
		if parsed, err := ParseStatus(rawStatus); err == nil {
			item.Status = parsed
		} else {
			item.Status = Status(rawStatus)
		}
		for _, col := range inputCols {
			item.Inputs = append(item.Inputs, record[col])
		}
		if err := validateItem(item); err != nil {
			return nil, err
		}
		l.Items = append(l.Items, item)
	}
	return l, nil
}

func blank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func validateItem(item *Item) error {
	err := validate.Struct(item)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &ValidationError{Row: item.Row, Reason: err.Error()}
	}
	fe := verrs[0]
	reason := "is invalid"
	switch fe.Tag() {
	case "required":
		reason = "is required"
	case "oneof":
		reason = fmt.Sprintf("%q is not one of %s", fe.Value(), strings.ReplaceAll(fe.Param(), " ", ", "))
	}
	return &ValidationError{Row: item.Row, Field: fe.Field(), Reason: reason}
}

// Path returns the ledger file location.
func (l *Ledger) Path() string { return l.path }

// Header returns a copy of the header row.
func (l *Ledger) Header() []string {
	out := make([]string, len(l.header))
	copy(out, l.header)
	return out
}

// SetStatus updates an item's status in memory. Call Save to persist it.
func (l *Ledger) SetStatus(item *Item, status Status) {
	item.Status = status
	item.record[l.statusCol] = string(status)
}

// Item returns the item for a 1-based data row.
func (l *Ledger) Item(row int) (*Item, bool) {
	for _, it := range l.Items {
		if it.Row == row {
			return it, true
		}
	}
	return nil, false
}

// Counts tallies items per status.
func (l *Ledger) Counts() map[Status]int {
	counts := make(map[Status]int, len(allStatuses))
	for _, it := range l.Items {
		counts[it.Status]++
	}
	return counts
}

// Encode renders the full ledger as CSV.
func (l *Ledger) Encode() ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(l.header); err != nil {
		return nil, err
	}
	for _, it := range l.Items {
		if err := w.Write(it.record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Save rewrites the whole ledger atomically.
func (l *Ledger) Save() error {
	data, err := l.Encode()
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}
	mode := os.FileMode(0o644)
	if info, err := os.Stat(l.path); err == nil {
		mode = info.Mode().Perm()
	}
	return fileutil.WriteFileAtomic(l.path, data, mode)
}
