package hive

// CustomJSON is the value of a custom_json operation. JSON carries the
// payload as an encoded string.
type CustomJSON struct {
	ID            string   `json:"id"`
	JSON          string   `json:"json"`
	RequiredAuths []string `json:"required_auths"`
}

// Signer returns the first required active authority, or "".
func (c CustomJSON) Signer() string {
	if len(c.RequiredAuths) == 0 {
		return ""
	}
	return c.RequiredAuths[0]
}

// Operation is one operation of a transaction.
type Operation struct {
	Type  string     `json:"type"`
	Value CustomJSON `json:"value"`
}

// Transaction is the response of GET /transactions/{id}.
type Transaction struct {
	TransactionJSON struct {
		Operations []Operation `json:"operations"`
	} `json:"transaction_json"`
	Timestamp string `json:"timestamp"`
}

// BlockOperation is one entry of GET /blocks/{height}/operations.
type BlockOperation struct {
	Op struct {
		Value CustomJSON `json:"value"`
	} `json:"op"`
	TrxID     string `json:"trx_id"`
	Timestamp string `json:"timestamp"`
}

type blockOperationsResp struct {
	OperationsResult []BlockOperation `json:"operations_result"`
}
