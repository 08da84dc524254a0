// Package logfile appends metric records to a daily CSV log and archives
// the previous day's file on the first write of a new calendar day. The
// last-written date is inferred from the live file's own last row, so
// rotation stays idempotent without extra persisted state.
package logfile

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"codeberg.org/mutker/powerlog/internal/errors"
	"codeberg.org/mutker/powerlog/internal/logger"
)

const (
	LiveFileName = "power_log.csv"
	ArchiveDir   = "log_archive"

	TimeFormat = "2006-01-02 15:04:05"

	dirPerm  = 0o755
	filePerm = 0o644
)

// Header is the fixed CSV column order.
var Header = []string{
	"Timestamp",
	"CPU Load (%)",
	"Temperature (°C)",
	"RAM Usage (%)",
	"Disk Usage (%)",
	"Network Sent (MB)",
	"Network Received (MB)",
	"Estimated Power (W)",
	"Interval Wh",
}

// Record is one CSV row: snapshot fields plus derived metrics.
type Record struct {
	Timestamp      time.Time
	CPULoad        float64
	Temperature    float64
	HasTemperature bool
	RAMUsage       float64
	DiskUsage      float64
	SentMB         float64
	RecvMB         float64
	Watts          float64
	IntervalWh     float64
}

func (r Record) fields() []string {
	temperature := ""
	if r.HasTemperature {
		temperature = formatFixed(r.Temperature, 2)
	}

	return []string{
		r.Timestamp.Format(TimeFormat),
		formatFixed(r.CPULoad, 2),
		temperature,
		formatFixed(r.RAMUsage, 2),
		formatFixed(r.DiskUsage, 2),
		formatFixed(r.SentMB, 2),
		formatFixed(r.RecvMB, 2),
		formatFixed(r.Watts, 2),
		formatFixed(r.IntervalWh, 4),
	}
}

func formatFixed(v float64, decimals int) string {
	return strconv.FormatFloat(v, 'f', decimals, 64)
}

// Writer owns the live log file and the archive tree under dataDir.
type Writer struct {
	livePath   string
	archiveDir string
}

func NewWriter(dataDir string) *Writer {
	return &Writer{
		livePath:   filepath.Join(dataDir, LiveFileName),
		archiveDir: filepath.Join(dataDir, ArchiveDir),
	}
}

// LivePath returns the path of the live log file.
func (w *Writer) LivePath() string {
	return w.livePath
}

// Append rotates the live file if its rows belong to an earlier calendar
// day than rec, then appends rec, creating the file with a header when
// needed.
func (w *Writer) Append(rec Record) error {
	errFactory := errors.New()

	if err := w.rotateIfStale(rec.Timestamp); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(w.livePath), dirPerm); err != nil {
		return errFactory.Wrap(ErrOpenFailed, err)
	}

	f, err := os.OpenFile(w.livePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, filePerm)
	if err != nil {
		return errFactory.Wrap(ErrOpenFailed, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return errFactory.Wrap(ErrWriteFailed, err)
	}

	cw := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := cw.Write(Header); err != nil {
			return errFactory.Wrap(ErrWriteFailed, err)
		}
	}
	if err := cw.Write(rec.fields()); err != nil {
		return errFactory.Wrap(ErrWriteFailed, err)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return errFactory.Wrap(ErrWriteFailed, err)
	}

	return nil
}

// ArchivePath returns the archive location for a given day:
// <archiveDir>/<YYYY>/<MonthName>_<MM>/<DD>_<Weekday>.csv
func (w *Writer) ArchivePath(day time.Time) string {
	return filepath.Join(
		w.archiveDir,
		strconv.Itoa(day.Year()),
		fmt.Sprintf("%s_%02d", day.Month().String(), int(day.Month())),
		fmt.Sprintf("%02d_%s.csv", day.Day(), day.Weekday().String()),
	)
}

// rotateIfStale moves the live file into the archive when its last row
// was written on an earlier calendar day than now. A missing, empty or
// header-only live file never rotates, which makes rotation idempotent
// within a day.
func (w *Writer) rotateIfStale(now time.Time) error {
	last, ok, err := w.lastWrittenDate()
	if err != nil {
		return err
	}
	if !ok || sameDay(last, now) {
		return nil
	}

	return w.archive(last)
}

func (w *Writer) archive(day time.Time) error {
	errFactory := errors.New()

	target := w.ArchivePath(day)
	if err := os.MkdirAll(filepath.Dir(target), dirPerm); err != nil {
		return errFactory.Wrap(ErrRotateFailed, err)
	}
	if err := os.Rename(w.livePath, target); err != nil {
		return errFactory.Wrap(ErrRotateFailed, err)
	}

	logger.Info().
		Str("archive", target).
		Msg("Rotated daily log")

	return nil
}

// lastWrittenDate parses the timestamp of the live file's last data row.
// ok is false when the file does not exist or holds no data rows.
func (w *Writer) lastWrittenDate() (time.Time, bool, error) {
	errFactory := errors.New()

	f, err := os.Open(w.livePath)
	if os.IsNotExist(err) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, errFactory.Wrap(ErrOpenFailed, err)
	}
	defer f.Close()

	var lastLine string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lastLine = line
		}
	}
	if err := scanner.Err(); err != nil {
		return time.Time{}, false, errFactory.Wrap(ErrScanFailed, err)
	}

	if lastLine == "" || strings.HasPrefix(lastLine, Header[0]+",") {
		return time.Time{}, false, nil
	}

	idx := strings.Index(lastLine, ",")
	if idx < 0 {
		return time.Time{}, false, errFactory.WithData(ErrBadLastRecord, lastLine)
	}

	ts, err := time.ParseInLocation(TimeFormat, lastLine[:idx], time.Local)
	if err != nil {
		return time.Time{}, false, errFactory.Wrap(ErrBadLastRecord, err)
	}

	return ts, true, nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
