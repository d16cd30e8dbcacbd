package model

// ReceiptSummary is the decoded outcome of an included transaction.
type ReceiptSummary struct {
	TxHash      string         `json:"tx_hash"`
	BlockNumber uint64         `json:"block_number"`
	GasUsed     uint64         `json:"gas_used"`
	Reverted    bool           `json:"reverted"`
	Events      []ReceiptEvent `json:"events,omitempty"`
}

// ReceiptEvent is one decoded log of interest.
type ReceiptEvent struct {
	LogIndex  uint64 `json:"log_index"`
	Address   string `json:"address"`
	EventName string `json:"event_name"`
	Decoded   any    `json:"decoded"`
}

// ApprovalEventData is the decoded ERC20 Approval payload.
type ApprovalEventData struct {
	Owner   string `json:"owner"`
	Spender string `json:"spender"`
	Value   string `json:"value"`
}

// SwapEventData is the decoded pair Swap payload.
type SwapEventData struct {
	Sender     string `json:"sender"`
	To         string `json:"to"`
	Amount0In  string `json:"amount0_in"`
	Amount1In  string `json:"amount1_in"`
	Amount0Out string `json:"amount0_out"`
	Amount1Out string `json:"amount1_out"`
}

// MintEventData is the decoded pair Mint payload.
type MintEventData struct {
	Sender  string `json:"sender"`
	Amount0 string `json:"amount0"`
	Amount1 string `json:"amount1"`
}

// BurnEventData is the decoded pair Burn payload.
type BurnEventData struct {
	Sender  string `json:"sender"`
	To      string `json:"to"`
	Amount0 string `json:"amount0"`
	Amount1 string `json:"amount1"`
}

// SyncEventData is the decoded pair Sync payload.
type SyncEventData struct {
	Reserve0 string `json:"reserve0"`
	Reserve1 string `json:"reserve1"`
}
