package domain

const (
	// Gateway constants
	DEFAULT_IPFS_GATEWAY    = "https://ipfs.io"
	DEFAULT_ARWEAVE_GATEWAY = "https://arweave.net"

	// NFT_VAULT_TYPE is the catalogue vault type of pools awarding NFTs
	NFT_VAULT_TYPE = "nft"
)
