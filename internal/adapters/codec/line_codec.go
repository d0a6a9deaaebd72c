package codec

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ghalamif/TailFlow/internal/domain"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04:05"

	// DefaultUnit matches what the simulated sensor writes.
	DefaultUnit = " °C"

	// MaxFutureSkew bounds how far ahead of the consumer clock a reading may be.
	MaxFutureSkew = 5 * time.Minute
)

// RejectReason names why a line did not produce a record.
type RejectReason string

const (
	RejectNone         RejectReason = ""
	RejectEmpty        RejectReason = "empty"
	RejectMalformed    RejectReason = "malformed"
	RejectBadTimestamp RejectReason = "bad_timestamp"
	RejectFuture       RejectReason = "future"
)

// unitPattern is the unit token accepted after a value, e.g. °C, %RH, hPa,
// m3 or m/s.
const unitPattern = `[°%A-Za-z][°%/A-Za-z0-9]{0,7}`

var (
	lineRE = regexp.MustCompile(
		`^\s*(\d{4}-\d{2}-\d{2})\s*,\s*` +
			`(\d{2}:\d{2}:\d{2})\s*,\s*` +
			`([+-]?\d+(?:\.\d+)?)` +
			`\s*(?:` + unitPattern + `)?\s*$`,
	)
	unitRE = regexp.MustCompile(`^[ \t]*(?:` + unitPattern + `)?$`)
)

// ErrInvalidUnit rejects units that Parse would not read back.
var ErrInvalidUnit = errors.New("tailflow: unit does not round-trip through the line format")

// ValidateUnit reports whether lines written with unit parse again. An
// empty unit is valid.
func ValidateUnit(unit string) error {
	if !unitRE.MatchString(unit) {
		return fmt.Errorf("%w: %q", ErrInvalidUnit, unit)
	}
	return nil
}

// LineCodec converts records to and from the line format
//
//	YYYY-MM-DD, HH:MM:SS, <signed decimal>[unit]
//
// Timestamps carry whole seconds only; sub-second precision is dropped by
// Format.
type LineCodec struct {
	Unit     string
	Location *time.Location
	Now      func() time.Time
}

// New returns a codec writing unit after every value. Parsing accepts any
// unit regardless of the one configured.
func New(unit string) *LineCodec {
	return &LineCodec{Unit: unit, Location: time.Local, Now: time.Now}
}

// NewChecked is New for units coming from configuration or callers.
func NewChecked(unit string) (*LineCodec, error) {
	if err := ValidateUnit(unit); err != nil {
		return nil, err
	}
	return New(unit), nil
}

func (c *LineCodec) loc() *time.Location {
	if c.Location == nil {
		return time.Local
	}
	return c.Location
}

func (c *LineCodec) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

// Format renders r as one newline-terminated line.
func (c *LineCodec) Format(r domain.Record) string {
	ts := r.Timestamp.In(c.loc())
	var b strings.Builder
	b.Grow(32 + len(c.Unit))
	b.WriteString(ts.Format(dateLayout))
	b.WriteString(", ")
	b.WriteString(ts.Format(timeLayout))
	b.WriteString(", ")
	b.WriteString(strconv.FormatFloat(r.Value, 'f', -1, 64))
	b.WriteString(c.Unit)
	b.WriteByte('\n')
	return b.String()
}

// Parse returns the record on line, or false when the line is empty,
// malformed, carries an unparsable timestamp, or is dated more than
// MaxFutureSkew ahead of the codec clock.
func (c *LineCodec) Parse(line string) (domain.Record, bool) {
	r, reason := c.ParseDetailed(line)
	return r, reason == RejectNone
}

// ParseDetailed is Parse with the rejection reason exposed.
func (c *LineCodec) ParseDetailed(line string) (domain.Record, RejectReason) {
	line = strings.TrimSpace(line)
	if line == "" {
		return domain.Record{}, RejectEmpty
	}
	m := lineRE.FindStringSubmatch(line)
	if m == nil {
		return domain.Record{}, RejectMalformed
	}

	ts, err := time.ParseInLocation(dateLayout+" "+timeLayout, m[1]+" "+m[2], c.loc())
	if err != nil {
		return domain.Record{}, RejectBadTimestamp
	}
	v, err := strconv.ParseFloat(m[3], 64)
	if err != nil || math.IsInf(v, 0) {
		return domain.Record{}, RejectMalformed
	}
	if ts.After(c.now().Add(MaxFutureSkew)) {
		return domain.Record{}, RejectFuture
	}
	return domain.Record{Timestamp: ts, Value: v}, RejectNone
}
