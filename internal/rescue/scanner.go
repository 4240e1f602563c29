package rescue

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// SinkSummary aggregates one sink's rescued files under a scan root.
type SinkSummary struct {
	Count int64
	Lines int64
	Bytes int64
}

// Summary is the result of Scan: a rescue-root-wide rollup plus a
// per-sink-name breakdown (§4.7).
type Summary struct {
	TotalFiles int64
	TotalLines int64
	TotalBytes int64
	BySink     map[string]*SinkSummary
	Files      []string
}

// Scan walks root for `.dat` files (never `.lock` — those are still being
// written) and produces a Summary. The sink name is parsed from the
// filename by stripping everything from the first '-' onward; a file found
// in a subdirectory is prefixed `<subdir>/<sinkName>`.
func Scan(root string) (*Summary, error) {
	sum := &Summary{BySink: make(map[string]*SinkSummary)}
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(path, ".dat") {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}
		sinkName := sinkNameFromFile(rel)

		lines, bytes, err := countLinesAndBytes(path)
		if err != nil {
			return err
		}

		sum.TotalFiles++
		sum.TotalLines += lines
		sum.TotalBytes += bytes
		sum.Files = append(sum.Files, rel)

		s := sum.BySink[sinkName]
		if s == nil {
			s = &SinkSummary{}
			sum.BySink[sinkName] = s
		}
		s.Count++
		s.Lines += lines
		s.Bytes += bytes
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sum, nil
}

// sinkNameFromFile strips everything from the first '-' in the base
// filename, prefixing with the subdirectory (if any) relative to the
// rescue root — e.g. "primary/primary-2024-01-02_15:04:05-1.dat" -> "primary/primary".
func sinkNameFromFile(rel string) string {
	dir, base := filepath.Split(rel)
	if idx := strings.IndexByte(base, '-'); idx >= 0 {
		base = base[:idx]
	} else {
		base = strings.TrimSuffix(base, ".dat")
	}
	dir = strings.TrimSuffix(dir, string(filepath.Separator))
	if dir == "" {
		return base
	}
	return dir + "/" + base
}

func countLinesAndBytes(path string) (int64, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, 0, err
	}

	var lines int64
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines++
	}
	if err := scanner.Err(); err != nil {
		return 0, 0, err
	}
	return lines, info.Size(), nil
}
