package model

import "time"

type TransactionKind string

const (
	KindDeposit     TransactionKind = "deposit"
	KindWithdraw    TransactionKind = "withdraw"
	KindTransferOut TransactionKind = "transfer-out"
	KindTransferIn  TransactionKind = "transfer-in"
)

// Transaction is one immutable ledger entry. Counterparty is set only for
// transfer entries and names the other side of the transfer.
type Transaction struct {
	ID               string          `json:"id"`
	AccountNumber    string          `json:"account_number"`
	Kind             TransactionKind `json:"kind"`
	Amount           int64           `json:"amount"`
	Counterparty     string          `json:"counterparty_account,omitempty"`
	Description      string          `json:"description,omitempty"`
	ResultingBalance int64           `json:"resulting_balance"`
	CreatedAt        time.Time       `json:"timestamp"`
	Seq              int64           `json:"-"`
}
