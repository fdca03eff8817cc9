package stats

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/ncruces/go-strftime"
)

// TimestampFormat is the strftime layout used for log timestamps and
// checkpoint name prefixes.
const TimestampFormat = "%m-%d-%Y_%H-%M"

var fitnessLogHeader = []string{"timestamp", "generation", "mean_fitness", "min_fitness", "max_fitness"}

// FitnessRow is one line of the fitness log.
type FitnessRow struct {
	Timestamp  time.Time
	Generation int
	Mean       float64
	Min        float64
	Max        float64
}

// FitnessLog appends one CSV row per generation. Rows are flushed as they are
// written so a killed run keeps its history.
type FitnessLog struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	writer *csv.Writer
}

// OpenFitnessLog opens path for appending, creating it and its directory
// when needed. A header is written to new or empty files only.
func OpenFitnessLog(path string) (*FitnessLog, error) {
	if path == "" {
		return nil, fmt.Errorf("fitness log path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, err
	}

	fl := &FitnessLog{path: path, file: file, writer: csv.NewWriter(file)}
	if info.Size() == 0 {
		if err := fl.write(fitnessLogHeader); err != nil {
			_ = file.Close()
			return nil, err
		}
	}
	return fl, nil
}

func (l *FitnessLog) Append(row FitnessRow) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return fmt.Errorf("fitness log %s is closed", l.path)
	}
	return l.write([]string{
		strftime.Format(TimestampFormat, row.Timestamp),
		strconv.Itoa(row.Generation),
		strconv.FormatFloat(row.Mean, 'f', -1, 64),
		strconv.FormatFloat(row.Min, 'f', -1, 64),
		strconv.FormatFloat(row.Max, 'f', -1, 64),
	})
}

func (l *FitnessLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	l.writer.Flush()
	werr := l.writer.Error()
	cerr := l.file.Close()
	l.file = nil
	if werr != nil {
		return werr
	}
	return cerr
}

func (l *FitnessLog) write(record []string) error {
	if err := l.writer.Write(record); err != nil {
		return err
	}
	l.writer.Flush()
	return l.writer.Error()
}

// ReadFitnessLog parses a fitness log. Files without a header row, as
// written by older tools, are accepted.
func ReadFitnessLog(path string) ([]FitnessRow, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	rows := make([]FitnessRow, 0, 128)
	for line := 1; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if line == 1 && len(record) > 0 && record[0] == fitnessLogHeader[0] {
			continue
		}
		row, err := parseFitnessRow(record)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseFitnessRow(record []string) (FitnessRow, error) {
	if len(record) < len(fitnessLogHeader) {
		return FitnessRow{}, fmt.Errorf("fitness log row must have %d columns, got %d", len(fitnessLogHeader), len(record))
	}
	timestamp, err := strftime.Parse(TimestampFormat, record[0])
	if err != nil {
		return FitnessRow{}, fmt.Errorf("timestamp: %w", err)
	}
	generation, err := strconv.Atoi(record[1])
	if err != nil {
		return FitnessRow{}, fmt.Errorf("generation: %w", err)
	}
	values := make([]float64, 3)
	for i := range values {
		values[i], err = strconv.ParseFloat(record[2+i], 64)
		if err != nil {
			return FitnessRow{}, fmt.Errorf("%s: %w", fitnessLogHeader[2+i], err)
		}
	}
	return FitnessRow{
		Timestamp:  timestamp,
		Generation: generation,
		Mean:       values[0],
		Min:        values[1],
		Max:        values[2],
	}, nil
}
