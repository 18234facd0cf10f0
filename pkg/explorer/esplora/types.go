package esplora

// txStatus implements the explorer.TransactionStatus interface on top of the
// raw provider JSON. The provider is not trusted to honor the schema, so a
// missing or mistyped field yields the zero answer instead of a panic.
type txStatus map[string]interface{}

func (s txStatus) Confirmed() bool {
	iConfirmed := s["confirmed"]
	if iConfirmed == nil {
		return false
	}
	confirmed, ok := iConfirmed.(bool)
	if !ok {
		return false
	}
	return confirmed
}

func (s txStatus) BlockHash() string {
	iBlockHash := s["block_hash"]
	if iBlockHash == nil {
		return ""
	}
	blockHash, ok := iBlockHash.(string)
	if !ok {
		return ""
	}
	return blockHash
}

func (s txStatus) BlockHeight() int {
	iBlockHeight := s["block_height"]
	if iBlockHeight == nil {
		return -1
	}
	blockHeight, ok := iBlockHeight.(float64)
	if !ok {
		return -1
	}
	return int(blockHeight)
}

func (s txStatus) BlockTime() int {
	iBlockTime := s["block_time"]
	if iBlockTime == nil {
		return -1
	}
	blockTime, ok := iBlockTime.(float64)
	if !ok {
		return -1
	}
	return int(blockTime)
}
