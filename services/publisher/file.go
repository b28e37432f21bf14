package publisher

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sync"

	"sjsage522/meliscraper/internal/models"
	"sjsage522/meliscraper/pkg/errors"
)

const fileSource = "dataset"

// FilePublisher writes records as JSON lines, one per record, in publish
// order. The file is truncated when opened.
type FilePublisher struct {
	mu   sync.Mutex
	file *os.File
	buf  *bufio.Writer
	enc  *json.Encoder
}

// NewFilePublisher creates path and any missing parent directories.
func NewFilePublisher(path string) (*FilePublisher, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.NewPublisher(fileSource, "create dataset directory", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.NewPublisher(fileSource, "create "+path, err)
	}
	buf := bufio.NewWriter(f)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	return &FilePublisher{file: f, buf: buf, enc: enc}, nil
}

// Publish appends rec as one line. runID is not part of the record.
func (p *FilePublisher) Publish(ctx context.Context, runID string, rec models.ProductRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enc.Encode(rec); err != nil {
		return errors.NewPublisher(fileSource, "write "+rec.ProductID, err)
	}
	return nil
}

// Close flushes buffered lines and closes the file.
func (p *FilePublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.buf.Flush(); err != nil {
		p.file.Close()
		return errors.NewPublisher(fileSource, "flush dataset", err)
	}
	return p.file.Close()
}

// ReadDataset loads a JSON lines dataset written by FilePublisher.
func ReadDataset(path string) ([]models.ProductRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewValidation(fileSource, "open "+path+": "+err.Error())
	}
	defer f.Close()
	return DecodeDataset(f)
}

// DecodeDataset reads JSON lines from r. Blank lines are skipped.
func DecodeDataset(r io.Reader) ([]models.ProductRecord, error) {
	records := []models.ProductRecord{}
	dec := json.NewDecoder(r)
	for {
		var rec models.ProductRecord
		err := dec.Decode(&rec)
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return nil, errors.NewParsing(fileSource, "decode dataset", err)
		}
		records = append(records, rec)
	}
}
