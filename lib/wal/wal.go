package wal

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// maxLineSize bounds a single log line during replay (1 MB).
const maxLineSize = 1 << 20

// tmpSuffix is appended to the log path for the compaction rewrite target.
const tmpSuffix = ".tmp"

// --------------------------------------------------------------------------
// Log Structure
// --------------------------------------------------------------------------

// Log is an append-only write-ahead log of mutation records, one JSON
// object per line. Appends are flushed to the OS on every write; no fsync
// is issued, so a crash may lose the trailing partially written record.
//
// Thread-safety: The log is not safe for concurrent use; the owning store
// serializes all access behind its mutex. The one exception is
// WriteSnapshot, which touches only the temporary file and may run outside
// the store's critical section between BeginCompaction and
// CommitCompaction.
type Log struct {
	path   string
	file   *os.File
	logger *zap.Logger

	// compaction capture state: while a compaction is in flight, appended
	// records are retained so they can be replayed onto the rewritten log
	capturing bool
	captured  []Record
}

// Open creates the log's parent directory if needed and opens the file for
// appending.
func Open(path string, logger *zap.Logger) (*Log, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	return &Log{
		path:   path,
		file:   file,
		logger: logger,
	}, nil
}

// Path returns the log's file path.
func (l *Log) Path() string {
	return l.path
}

// Close closes the underlying file.
func (l *Log) Close() error {
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// --------------------------------------------------------------------------
// Append and Replay
// --------------------------------------------------------------------------

// Append writes one record to the log. The record is on disk (in the OS
// page cache) when Append returns nil; on error nothing is considered
// written and the caller must not apply the mutation in memory.
func (l *Log) Append(rec Record) error {
	line, err := rec.encode()
	if err != nil {
		return fmt.Errorf("encode log record: %w", err)
	}

	if _, err := l.file.Write(line); err != nil {
		return fmt.Errorf("append log record: %w", err)
	}

	if l.capturing {
		l.captured = append(l.captured, rec)
	}
	return nil
}

// Replay reads the log from the beginning and invokes fn for every valid
// record in order of appearance. Malformed lines are logged and skipped.
// It returns the number of valid records and the number of skipped lines.
// A missing log file is not an error.
func (l *Log) Replay(fn func(Record)) (records, skipped int, err error) {
	file, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, 0, nil
		}
		return 0, 0, fmt.Errorf("open log for replay: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		rec, err := parseRecord(line)
		if err != nil {
			skipped++
			l.logger.Warn("skipping malformed log record",
				zap.Error(err),
				zap.Int("line", records+skipped))
			continue
		}

		records++
		fn(rec)
	}

	if err := scanner.Err(); err != nil {
		// a line longer than maxLineSize or a read error ends replay;
		// everything read so far stands
		l.logger.Warn("log replay ended early", zap.Error(err))
	}

	return records, skipped, nil
}

// --------------------------------------------------------------------------
// Compaction
//
// Compaction rewrites the log so it holds exactly one SET record per live
// entry and no DELETE records. The protocol keeps appends non-blocking and
// loss-free:
//
//  1. BeginCompaction (under the store mutex) flips the log into capture
//     mode: subsequent appends go to the live file AND are retained in
//     memory.
//  2. WriteSnapshot (outside the mutex) writes the snapshot records to a
//     temporary file next to the log.
//  3. CommitCompaction (under the mutex) atomically renames the temporary
//     file over the live log, reopens it for appending, and re-appends the
//     captured records so no concurrent write is lost.
//
// If the snapshot write fails, AbortCompaction drops the capture state and
// the live log is untouched.
// --------------------------------------------------------------------------

// BeginCompaction enters capture mode. Must be called under the store
// mutex.
func (l *Log) BeginCompaction() {
	l.capturing = true
	l.captured = nil
}

// AbortCompaction leaves capture mode without touching the live log and
// removes a leftover temporary file if one exists.
func (l *Log) AbortCompaction() {
	l.capturing = false
	l.captured = nil
	_ = os.Remove(l.path + tmpSuffix)
}

// WriteSnapshot writes the given records to the temporary rewrite target.
// It may run outside the store's critical section.
func (l *Log) WriteSnapshot(records []Record) error {
	tmp, err := os.OpenFile(l.path+tmpSuffix, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create compaction file: %w", err)
	}

	w := bufio.NewWriter(tmp)
	for _, rec := range records {
		line, err := rec.encode()
		if err != nil {
			tmp.Close()
			return fmt.Errorf("encode snapshot record: %w", err)
		}
		if _, err := w.Write(line); err != nil {
			tmp.Close()
			return fmt.Errorf("write snapshot record: %w", err)
		}
	}

	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush compaction file: %w", err)
	}
	return tmp.Close()
}

// CommitCompaction replaces the live log with the snapshot written by
// WriteSnapshot, re-appends the records captured since BeginCompaction,
// and returns the new record count. Must be called under the store mutex.
//
// If the rename fails the live log is untouched and stays open for
// appending; the temporary file is left for manual cleanup.
func (l *Log) CommitCompaction(snapshotCount int) (int, error) {
	captured := l.captured
	l.capturing = false
	l.captured = nil

	// close the handle on the old inode before swapping the file
	if err := l.file.Close(); err != nil {
		l.logger.Warn("closing log before compaction swap", zap.Error(err))
	}

	if err := os.Rename(l.path+tmpSuffix, l.path); err != nil {
		// captured records are already in the untouched live log
		reopenErr := l.reopen()
		if reopenErr != nil {
			return 0, fmt.Errorf("reopen log after failed compaction swap: %w", reopenErr)
		}
		return 0, fmt.Errorf("swap compacted log: %w", err)
	}

	if err := l.reopen(); err != nil {
		return 0, fmt.Errorf("reopen compacted log: %w", err)
	}

	// writes that raced the snapshot were only in the replaced file;
	// replay them onto the fresh log
	for _, rec := range captured {
		if err := l.Append(rec); err != nil {
			return 0, fmt.Errorf("replay captured record: %w", err)
		}
	}

	return snapshotCount + len(captured), nil
}

// reopen re-establishes the append handle on the log path.
func (l *Log) reopen() error {
	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	l.file = file
	return nil
}
