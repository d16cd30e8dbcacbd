package model

// TxRecord is one journaled lifecycle outcome.
type TxRecord struct {
	ChainID     uint64     `json:"chain_id"`
	Slot        string     `json:"slot"`
	Kind        IntentKind `json:"kind"`
	Account     string     `json:"account"`
	TxHash      string     `json:"tx_hash,omitempty"`
	BlockNumber uint64     `json:"block_number,omitempty"`
	State       string     `json:"state"`
	Reason      string     `json:"reason,omitempty"`
	StartedAt   string     `json:"started_at"`
	FinishedAt  string     `json:"finished_at"`
}
