package ethereum

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/feral-file/prize-indexer/internal/domain"
)

// prizeStrategyABI is the subset of the MultipleWinners prize strategy used by the indexer
const prizeStrategyABI = `[
	{"anonymous":false,"inputs":[{"indexed":true,"name":"externalErc721","type":"address"},{"indexed":false,"name":"tokenIds","type":"uint256[]"}],"name":"ExternalErc721AwardAdded","type":"event"},
	{"anonymous":false,"inputs":[{"indexed":true,"name":"externalErc1155","type":"address"},{"indexed":false,"name":"tokenIds","type":"uint256[]"}],"name":"ExternalErc1155AwardAdded","type":"event"},
	{"inputs":[{"name":"_externalErc721","type":"address"}],"name":"getExternalErc721AwardTokenIds","outputs":[{"name":"","type":"uint256[]"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"name":"_externalErc1155","type":"address"}],"name":"getExternalErc1155AwardTokenIds","outputs":[{"name":"","type":"uint256[]"}],"stateMutability":"view","type":"function"}
]`

const erc721ABI = `[{"inputs":[{"name":"tokenId","type":"uint256"}],"name":"tokenURI","outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"}]`

const erc1155ABI = `[{"inputs":[{"name":"id","type":"uint256"}],"name":"uri","outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"}]`

// StandardSchema holds the per-standard event and method names
type StandardSchema struct {
	// DepositEvent is the strategy event emitted when items are added as prizes
	DepositEvent abi.Event
	// RemainingMethod is the strategy view returning the ids still held for a collection
	RemainingMethod string
	// URIMethod is the collection view returning the metadata URI of an id
	URIMethod string
	// CollectionABI is the collection ABI holding URIMethod
	CollectionABI abi.ABI
}

// Schema describes the contracts the indexer reads. It is built once and passed
// to every component that encodes calls or decodes logs.
type Schema struct {
	Strategy abi.ABI
	// OwnershipTransferredTopic marks the strategy deployment
	OwnershipTransferredTopic common.Hash
	Standards                 map[domain.AssetStandard]StandardSchema
}

// DefaultSchema returns the schema of the MultipleWinners prize strategy
func DefaultSchema() (*Schema, error) {
	strategy, err := abi.JSON(strings.NewReader(prizeStrategyABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse strategy ABI: %w", err)
	}
	erc721, err := abi.JSON(strings.NewReader(erc721ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ERC721 ABI: %w", err)
	}
	erc1155, err := abi.JSON(strings.NewReader(erc1155ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ERC1155 ABI: %w", err)
	}

	return NewSchema(strategy, map[domain.AssetStandard]StandardSchema{
		domain.StandardERC721: {
			DepositEvent:    strategy.Events["ExternalErc721AwardAdded"],
			RemainingMethod: "getExternalErc721AwardTokenIds",
			URIMethod:       "tokenURI",
			CollectionABI:   erc721,
		},
		domain.StandardERC1155: {
			DepositEvent:    strategy.Events["ExternalErc1155AwardAdded"],
			RemainingMethod: "getExternalErc1155AwardTokenIds",
			URIMethod:       "uri",
			CollectionABI:   erc1155,
		},
	})
}

// NewSchema validates that every supported standard has a complete entry
func NewSchema(strategy abi.ABI, standards map[domain.AssetStandard]StandardSchema) (*Schema, error) {
	for _, standard := range domain.AssetStandards {
		s, ok := standards[standard]
		if !ok {
			return nil, fmt.Errorf("schema has no entry for %s", standard)
		}
		if s.DepositEvent.Name == "" {
			return nil, fmt.Errorf("schema for %s has no deposit event", standard)
		}
		if _, ok := strategy.Methods[s.RemainingMethod]; !ok {
			return nil, fmt.Errorf("strategy ABI has no method %q", s.RemainingMethod)
		}
		if _, ok := s.CollectionABI.Methods[s.URIMethod]; !ok {
			return nil, fmt.Errorf("collection ABI for %s has no method %q", standard, s.URIMethod)
		}
	}

	return &Schema{
		Strategy:                  strategy,
		OwnershipTransferredTopic: crypto.Keccak256Hash([]byte("OwnershipTransferred(address,address)")),
		Standards:                 standards,
	}, nil
}

// For returns the schema entry of a standard
func (s *Schema) For(standard domain.AssetStandard) (StandardSchema, error) {
	entry, ok := s.Standards[standard]
	if !ok {
		return StandardSchema{}, fmt.Errorf("unsupported asset standard: %s", standard)
	}
	return entry, nil
}

// DepositTopic returns the topic0 of the deposit event of a standard
func (s *Schema) DepositTopic(standard domain.AssetStandard) (common.Hash, error) {
	entry, err := s.For(standard)
	if err != nil {
		return common.Hash{}, err
	}
	return entry.DepositEvent.ID, nil
}

// DecodeDeposit decodes a deposit log: topic 1 is the collection, data holds the id array
func (s *Schema) DecodeDeposit(standard domain.AssetStandard, vLog types.Log) (domain.DepositRecord, error) {
	entry, err := s.For(standard)
	if err != nil {
		return domain.DepositRecord{}, err
	}

	if len(vLog.Topics) != 2 {
		return domain.DepositRecord{}, fmt.Errorf("%w: %s log has %d topics, want 2",
			domain.ErrDecodeFailure, entry.DepositEvent.Name, len(vLog.Topics))
	}
	if vLog.Topics[0] != entry.DepositEvent.ID {
		return domain.DepositRecord{}, fmt.Errorf("%w: unexpected topic %s for %s",
			domain.ErrDecodeFailure, vLog.Topics[0].Hex(), entry.DepositEvent.Name)
	}

	values, err := entry.DepositEvent.Inputs.NonIndexed().Unpack(vLog.Data)
	if err != nil {
		return domain.DepositRecord{}, fmt.Errorf("%w: %s data: %v", domain.ErrDecodeFailure, entry.DepositEvent.Name, err)
	}
	if len(values) != 1 {
		return domain.DepositRecord{}, fmt.Errorf("%w: %s has %d data values, want 1",
			domain.ErrDecodeFailure, entry.DepositEvent.Name, len(values))
	}
	ids, ok := values[0].([]*big.Int)
	if !ok {
		return domain.DepositRecord{}, fmt.Errorf("%w: %s ids have type %T",
			domain.ErrDecodeFailure, entry.DepositEvent.Name, values[0])
	}

	return domain.DepositRecord{
		CollectionAddress: common.BytesToAddress(vLog.Topics[1].Bytes()),
		Standard:          standard,
		ItemIDs:           ids,
		BlockNumber:       vLog.BlockNumber,
	}, nil
}

// EncodeRemaining packs the strategy call returning the ids of collection still held
func (s *Schema) EncodeRemaining(standard domain.AssetStandard, collection common.Address) ([]byte, error) {
	entry, err := s.For(standard)
	if err != nil {
		return nil, err
	}

	data, err := s.Strategy.Pack(entry.RemainingMethod, collection)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", entry.RemainingMethod, err)
	}
	return data, nil
}

// DecodeRemaining unpacks the result of the remaining-ids call, sorted ascending
func (s *Schema) DecodeRemaining(standard domain.AssetStandard, data []byte) ([]*big.Int, error) {
	entry, err := s.For(standard)
	if err != nil {
		return nil, err
	}

	values, err := s.Strategy.Unpack(entry.RemainingMethod, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s result: %v", domain.ErrDecodeFailure, entry.RemainingMethod, err)
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("%w: %s returned %d values", domain.ErrDecodeFailure, entry.RemainingMethod, len(values))
	}
	ids, ok := values[0].([]*big.Int)
	if !ok {
		return nil, fmt.Errorf("%w: %s returned %T", domain.ErrDecodeFailure, entry.RemainingMethod, values[0])
	}

	domain.SortItemIDs(ids)
	return ids, nil
}
