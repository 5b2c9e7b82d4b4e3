package listing

import (
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

// Table is the static per-network listing configuration. Asset addresses may
// be left zero in the file for tokens that only exist at run time; Resolve
// fills them from overrides.
type Table struct {
	Network  string     `yaml:"network"`
	Listings []tableRow `yaml:"listings"`
}

type tableRow struct {
	Descriptor `yaml:",inline"`
	Asset      string `yaml:"asset"`
	PriceFeed  string `yaml:"priceFeed"`
}

// LoadTable parses a listing table file.
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("listing table: read %s: %w", path, err)
	}
	return ParseTable(data)
}

// ParseTable parses listing table YAML.
func ParseTable(data []byte) (*Table, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("listing table: decode: %w", err)
	}
	for i := range t.Listings {
		row := &t.Listings[i]
		if row.Asset != "" && !common.IsHexAddress(row.Asset) {
			return nil, fmt.Errorf("listing table: %s: malformed asset address %q", row.Symbol, row.Asset)
		}
		if row.PriceFeed != "" && !common.IsHexAddress(row.PriceFeed) {
			return nil, fmt.Errorf("listing table: %s: malformed price feed %q", row.Symbol, row.PriceFeed)
		}
		row.Descriptor.Asset = common.HexToAddress(row.Asset)
		row.Descriptor.PriceFeed = common.HexToAddress(row.PriceFeed)
	}
	return &t, nil
}

// Resolve produces the final descriptor list: placeholder (zero) asset
// addresses are replaced from overrides keyed by symbol, and every
// descriptor is validated. Any asset still zero after overrides fails the
// whole resolution, so a partial listing can never reach the market.
func (t *Table) Resolve(overrides map[string]common.Address) ([]Descriptor, error) {
	out := make([]Descriptor, 0, len(t.Listings))
	for _, row := range t.Listings {
		d := row.Descriptor
		if d.Asset == (common.Address{}) {
			d.Asset = overrides[d.Symbol]
		}
		if err := d.Validate(); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("listing table: no listings for network %s", t.Network)
	}
	return out, nil
}
