package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	marketLatestName = "market-report-latest.json"
	tokenLatestName  = "token-report-latest.json"
)

// Store persists reports under one directory: a "latest" copy that downstream
// stages read, plus a timestamped snapshot per run for the audit trail.
type Store struct {
	dir string
}

// NewStore creates the report directory if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("report store: create %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// MarketPath returns the path of the latest market report.
func (s *Store) MarketPath() string { return filepath.Join(s.dir, marketLatestName) }

// TokenPath returns the path of the latest token report.
func (s *Store) TokenPath() string { return filepath.Join(s.dir, tokenLatestName) }

// SaveMarket writes the latest copy and a timestamped snapshot.
func (s *Store) SaveMarket(r *MarketReport) error {
	snapshot := fmt.Sprintf("market-report-%d.json", time.Now().UTC().Unix())
	return s.save(r, marketLatestName, snapshot)
}

// SaveToken writes the latest copy and a timestamped snapshot.
func (s *Store) SaveToken(r *TokenReport) error {
	snapshot := fmt.Sprintf("token-report-%d.json", time.Now().UTC().Unix())
	return s.save(r, tokenLatestName, snapshot)
}

func (s *Store) save(v any, latest, snapshot string) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("report store: encode: %w", err)
	}
	data = append(data, '\n')
	for _, name := range []string{latest, snapshot} {
		if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
			return fmt.Errorf("report store: write %s: %w", name, err)
		}
	}
	return nil
}

// LoadMarket reads the latest market report. A missing file yields (nil, nil)
// so a first run starts from an empty report.
func (s *Store) LoadMarket() (*MarketReport, error) {
	return LoadMarketFile(s.MarketPath())
}

// LoadToken reads the latest token report, (nil, nil) when absent.
func (s *Store) LoadToken() (*TokenReport, error) {
	data, err := os.ReadFile(s.TokenPath())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("report store: read token report: %w", err)
	}
	var r TokenReport
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("report store: decode token report: %w", err)
	}
	return &r, nil
}

// LoadMarketFile reads a market report from an explicit path, (nil, nil)
// when the file does not exist.
func LoadMarketFile(path string) (*MarketReport, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("report store: read market report: %w", err)
	}
	var r MarketReport
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("report store: decode market report: %w", err)
	}
	return &r, nil
}
