package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// AssetStandard represents the token accounting convention of a collection
type AssetStandard int

const (
	// StandardERC721 is the single-owner-per-id standard
	StandardERC721 AssetStandard = iota + 1
	// StandardERC1155 is the multi-owner-per-id standard
	StandardERC1155
)

// AssetStandards lists every supported standard, in scan order
var AssetStandards = []AssetStandard{StandardERC721, StandardERC1155}

// String returns the wire name of the standard
func (s AssetStandard) String() string {
	switch s {
	case StandardERC721:
		return "erc721"
	case StandardERC1155:
		return "erc1155"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Valid reports whether s is a supported standard
func (s AssetStandard) Valid() bool {
	return s == StandardERC721 || s == StandardERC1155
}

// ParseAssetStandard parses the wire name of a standard
func ParseAssetStandard(v string) (AssetStandard, error) {
	switch strings.ToLower(v) {
	case "erc721":
		return StandardERC721, nil
	case "erc1155":
		return StandardERC1155, nil
	default:
		return 0, fmt.Errorf("unsupported asset standard: %q", v)
	}
}

// MarshalText implements encoding.TextMarshaler
func (s AssetStandard) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("unsupported asset standard: %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (s *AssetStandard) UnmarshalText(text []byte) error {
	parsed, err := ParseAssetStandard(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// DepositRecord is one decoded award-added log entry of a prize strategy
type DepositRecord struct {
	CollectionAddress common.Address
	Standard          AssetStandard
	ItemIDs           []*big.Int
	BlockNumber       uint64
}

// InventoryEntry is the canonical, deduplicated set of ids deposited from one collection.
// ItemIDs is unique and sorted ascending by numeric value.
type InventoryEntry struct {
	CollectionAddress common.Address `json:"address"`
	Standard          AssetStandard  `json:"type"`
	ItemIDs           []*big.Int     `json:"ids"`
}

// Contains reports whether id belongs to the entry
func (e InventoryEntry) Contains(id *big.Int) bool {
	i := sort.Search(len(e.ItemIDs), func(i int) bool { return e.ItemIDs[i].Cmp(id) >= 0 })
	return i < len(e.ItemIDs) && e.ItemIDs[i].Cmp(id) == 0
}

// Validate checks that ItemIDs is non-negative, unique and sorted ascending
func (e InventoryEntry) Validate() error {
	if !e.Standard.Valid() {
		return fmt.Errorf("collection %s: unsupported asset standard %d", e.CollectionAddress.Hex(), int(e.Standard))
	}
	for i, id := range e.ItemIDs {
		if id == nil || id.Sign() < 0 {
			return fmt.Errorf("collection %s: invalid item id at index %d", e.CollectionAddress.Hex(), i)
		}
		if i > 0 && e.ItemIDs[i-1].Cmp(id) >= 0 {
			return fmt.Errorf("collection %s: item ids not strictly ascending at index %d", e.CollectionAddress.Hex(), i)
		}
	}
	return nil
}

// PoolConfig is the durable record of a tracked pool. It is written once when the pool is registered.
type PoolConfig struct {
	ID                      string           `json:"id"`
	Name                    string           `json:"name"`
	StrategyContractAddress common.Address   `json:"prizeStrategyAddress"`
	OriginBlockNumber       uint64           `json:"startBlock"`
	InitialInventory        []InventoryEntry `json:"initialNfts"`
}

// Validate checks every inventory entry and that no collection appears twice
func (p PoolConfig) Validate() error {
	seen := make(map[common.Address]struct{}, len(p.InitialInventory))
	for _, entry := range p.InitialInventory {
		if _, ok := seen[entry.CollectionAddress]; ok {
			return fmt.Errorf("pool %s: collection %s listed twice", p.ID, entry.CollectionAddress.Hex())
		}
		seen[entry.CollectionAddress] = struct{}{}

		if err := entry.Validate(); err != nil {
			return fmt.Errorf("pool %s: %w", p.ID, err)
		}
	}
	return nil
}

// FindPool returns the pool with the given id
func FindPool(pools []PoolConfig, id string) (PoolConfig, bool) {
	for _, p := range pools {
		if p.ID == id {
			return p, true
		}
	}
	return PoolConfig{}, false
}

// ItemKey identifies one item of one collection
type ItemKey struct {
	CollectionAddress common.Address
	ItemID            string
}

// NewItemKey creates a new ItemKey
func NewItemKey(collection common.Address, id *big.Int) ItemKey {
	return ItemKey{CollectionAddress: collection, ItemID: id.String()}
}

// String returns the string representation of the key
func (k ItemKey) String() string {
	return fmt.Sprintf("%s:%s", k.CollectionAddress.Hex(), k.ItemID)
}

// MetadataDocument is the off-chain metadata of one item.
// Raw carries every field of the fetched document, including address, id and name.
type MetadataDocument struct {
	CollectionAddress common.Address
	ItemID            *big.Int
	Name              string
	Raw               map[string]interface{}
}

// NewMetadataDocument builds a document from a fetched JSON object, stamping address and id into it
func NewMetadataDocument(collection common.Address, id *big.Int, raw map[string]interface{}) *MetadataDocument {
	if raw == nil {
		raw = make(map[string]interface{})
	}
	raw["address"] = collection.Hex()
	raw["id"] = json.Number(id.String())

	doc := &MetadataDocument{
		CollectionAddress: collection,
		ItemID:            new(big.Int).Set(id),
		Raw:               raw,
	}
	if n, ok := raw["name"].(string); ok {
		doc.Name = n
	}
	return doc
}

// Key returns the cache key of the document
func (d *MetadataDocument) Key() ItemKey {
	return NewItemKey(d.CollectionAddress, d.ItemID)
}

// MarshalJSON writes the raw document
func (d *MetadataDocument) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Raw)
}

// UnmarshalJSON reads a raw document and extracts the typed fields
func (d *MetadataDocument) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]interface{}
	if err := dec.Decode(&raw); err != nil {
		return err
	}

	addr, _ := raw["address"].(string)
	if !common.IsHexAddress(addr) {
		return fmt.Errorf("invalid document address: %q", addr)
	}

	id, ok := new(big.Int).SetString(fmt.Sprint(raw["id"]), 10)
	if !ok {
		return fmt.Errorf("invalid document id: %v", raw["id"])
	}

	d.CollectionAddress = common.HexToAddress(addr)
	d.ItemID = id
	d.Raw = raw
	d.Name, _ = raw["name"].(string)
	return nil
}

// MetadataDocuments maps an item to its metadata document
type MetadataDocuments map[ItemKey]*MetadataDocument

// RemainingByPool maps pool id → collection → sorted remaining ids
type RemainingByPool map[string]map[common.Address][]*big.Int

// ParseItemIDs parses decimal item ids
func ParseItemIDs(values []string) ([]*big.Int, error) {
	ids := make([]*big.Int, 0, len(values))
	for _, v := range values {
		id, ok := new(big.Int).SetString(strings.TrimSpace(v), 10)
		if !ok || id.Sign() < 0 {
			return nil, fmt.Errorf("invalid item id: %q", v)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// SortItemIDs sorts ids ascending by numeric value, in place
func SortItemIDs(ids []*big.Int) {
	sort.Slice(ids, func(i, j int) bool { return ids[i].Cmp(ids[j]) < 0 })
}
