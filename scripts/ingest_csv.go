// Package main provides a CLI tool to convert a CSV export of support
// articles into the JSON knowledge-base format read by the API at startup.
//
// Usage:
//
//	go run scripts/ingest_csv.go -file /path/to/articles.csv -out data/support_kb.json
//
// Expected CSV header: id,category,question,answer,tags[,source]
// Tags are separated by semicolons inside the tags column.
package main

import (
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// Config holds the CLI configuration
type Config struct {
	FilePath string
	OutPath  string
	DryRun   bool
}

// Passage matches the knowledge-base record consumed by the corpus loader.
type Passage struct {
	ID        string    `json:"id"`
	Category  string    `json:"category"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Tags      []string  `json:"tags"`
	Source    string    `json:"source,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Stats tracks conversion statistics
type Stats struct {
	TotalRows    int
	SkippedEmpty int
	Converted    int
	Duplicates   int
}

func main() {
	cfg := parseFlags()

	f, err := os.Open(cfg.FilePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening CSV file: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	passages, stats, err := convert(f, cfg.FilePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error converting CSV: %v\n", err)
		os.Exit(1)
	}

	if cfg.DryRun {
		fmt.Printf("Dry run: would write %d passages to %s\n", len(passages), cfg.OutPath)
	} else {
		data, err := json.MarshalIndent(passages, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
			os.Exit(1)
		}
		if err := os.WriteFile(cfg.OutPath, append(data, '\n'), 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing output file: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote %d passages to %s\n", len(passages), cfg.OutPath)
	}

	fmt.Printf("Rows: %d, converted: %d, skipped (empty fields): %d, duplicate ids: %d\n",
		stats.TotalRows, stats.Converted, stats.SkippedEmpty, stats.Duplicates)
}

func parseFlags() Config {
	var cfg Config
	flag.StringVar(&cfg.FilePath, "file", "", "Path to the CSV file (required)")
	flag.StringVar(&cfg.OutPath, "out", "data/support_kb.json", "Path to the JSON output file")
	flag.BoolVar(&cfg.DryRun, "dry-run", false, "Parse and report without writing the output file")
	flag.Parse()

	if cfg.FilePath == "" {
		fmt.Fprintln(os.Stderr, "Error: -file is required")
		flag.Usage()
		os.Exit(1)
	}

	return cfg
}

func convert(r io.Reader, source string) ([]Passage, Stats, error) {
	var stats Stats

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, stats, fmt.Errorf("read header: %w", err)
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"id", "category", "question", "answer"} {
		if _, ok := col[required]; !ok {
			return nil, stats, fmt.Errorf("missing required column %q", required)
		}
	}

	seen := make(map[string]struct{})
	var passages []Passage

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, stats, fmt.Errorf("read row: %w", err)
		}
		stats.TotalRows++

		p := Passage{
			ID:       field(row, col, "id"),
			Category: field(row, col, "category"),
			Question: field(row, col, "question"),
			Answer:   field(row, col, "answer"),
			Source:   source,
		}
		if p.ID == "" || p.Category == "" || p.Question == "" || p.Answer == "" {
			stats.SkippedEmpty++
			continue
		}
		if _, dup := seen[p.ID]; dup {
			stats.Duplicates++
			continue
		}
		seen[p.ID] = struct{}{}

		for _, tag := range strings.Split(field(row, col, "tags"), ";") {
			if tag = strings.TrimSpace(tag); tag != "" {
				p.Tags = append(p.Tags, tag)
			}
		}
		if src := field(row, col, "source"); src != "" {
			p.Source = src
		}

		passages = append(passages, p)
		stats.Converted++
	}

	return passages, stats, nil
}

func field(row []string, col map[string]int, name string) string {
	i, ok := col[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
