package discover

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ppiankov/casefile/internal/model"
)

// filePrefix names every export so the reader can find them again
const filePrefix = "saved_urls_"

var csvHeader = []string{"url", "domain_name", "source"}

// WriteCSV writes urls to dir/saved_urls_<searchID>_<timestamp>.csv and
// returns the file path
func WriteCSV(dir, searchID string, urls []string, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	name := fmt.Sprintf("%s%s_%s.csv", filePrefix, searchID, now.Format("20060102_150405"))
	path := filepath.Join(dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create csv: %w", err)
	}
	defer func() { _ = f.Close() }()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return "", fmt.Errorf("write csv header: %w", err)
	}
	for _, u := range urls {
		if err := w.Write([]string{u, model.DomainName(u), model.SourceGoogleMiner}); err != nil {
			return "", fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flush csv: %w", err)
	}
	return path, f.Close()
}

// ReadCandidates returns the unique values of the url column across the
// newest CSV exports in dir, in file order, capped at limit
func ReadCandidates(dir string, files, limit int) ([]string, error) {
	paths, err := newestExports(dir, files)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var urls []string
	for _, path := range paths {
		column, err := readURLColumn(path)
		if err != nil {
			return nil, err
		}
		for _, u := range column {
			if seen[u] {
				continue
			}
			seen[u] = true
			urls = append(urls, u)
			if limit > 0 && len(urls) >= limit {
				return urls, nil
			}
		}
	}
	return urls, nil
}

func newestExports(dir string, n int) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read candidate dir: %w", err)
	}

	type export struct {
		path    string
		modTime time.Time
	}
	var exports []export
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".csv") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		exports = append(exports, export{path: filepath.Join(dir, e.Name()), modTime: info.ModTime()})
	}

	sort.Slice(exports, func(i, j int) bool {
		if exports[i].modTime.Equal(exports[j].modTime) {
			return exports[i].path > exports[j].path
		}
		return exports[i].modTime.After(exports[j].modTime)
	})
	if n > 0 && len(exports) > n {
		exports = exports[:n]
	}

	paths := make([]string, len(exports))
	for i, e := range exports {
		paths[i] = e.path
	}
	return paths, nil
}

func readURLColumn(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	col := -1
	for i, name := range header {
		if strings.EqualFold(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")), "url") {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, nil
	}

	var urls []string
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		if col < len(row) {
			if u := strings.TrimSpace(row[col]); u != "" {
				urls = append(urls, u)
			}
		}
	}
	return urls, nil
}
