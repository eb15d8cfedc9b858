package model

// WalletRecord is one wallet's exportable identity.
// IsEncrypted refers to the wallet's own password layer and is independent of
// backup-level encryption: an encrypted PrivateKey cannot be used without it.
type WalletRecord struct {
	Name         string `json:"name"`
	Address      string `json:"address"`
	PrivateKey   string `json:"privateKey"`
	IsEncrypted  bool   `json:"isEncrypted"`
	Mnemonic     string `json:"mnemonic,omitempty"` // HD wallets only
	CreatedAt    int64  `json:"createdAt"`          // epoch ms
	LastAccessed int64  `json:"lastAccessed"`       // epoch ms
}

// ContactRecord is an address book entry.
type ContactRecord struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Label   string `json:"label,omitempty"`
}

// WatchedAddress is a watch-only address, optionally tied to one of the wallets.
type WatchedAddress struct {
	Address       string `json:"address"`
	Label         string `json:"label,omitempty"`
	WalletAddress string `json:"walletAddress,omitempty"`
	AddedAt       int64  `json:"addedAt"`
}
