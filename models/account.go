package models

// AccountStateActive is the only account state eligible for interest processing
const AccountStateActive = "ACTIVE"

// Account is a deposit account owned by the core banking system; read-only here
type Account struct {
	ID               string    `db:"id" json:"id"`
	AccountNumber    string    `db:"account_number" json:"accountNumber"`
	AccountType      string    `db:"account_type" json:"accountType"`
	Status           string    `db:"status" json:"status"`
	AccrualFrequency Frequency `db:"accrual_frequency" json:"accrualFrequency"`
	PostingFrequency Frequency `db:"posting_frequency" json:"postingFrequency"`
}
