package app

// Chain defines what the channel dispatcher needs from the ledger module
// This follows Dependency Inversion Principle - consumer defines the interface
type Chain interface {
	// HasCommitted reports whether a transaction with this hash already
	// sits in a committed block
	HasCommitted(txHash string) bool

	// GetTransaction returns the committed transaction body for the hash
	GetTransaction(txHash string) (map[string]any, bool)

	// GetTxResult returns the invoke result recorded at commit time
	GetTxResult(txHash string) (map[string]any, bool)

	// GetLastBlock returns the newest committed block
	GetLastBlock() (map[string]any, bool)

	// GetBlockByHash returns the block with the given hash
	GetBlockByHash(hash string) (map[string]any, bool)

	// GetBlockByHeight returns the block at the given height
	GetBlockByHeight(height int64) (map[string]any, bool)

	// Close shuts the ledger down. The lifecycle wrapper calls this
	// when the queue transport connection is lost
	Close() error
}
