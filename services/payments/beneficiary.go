package payments

import (
	"time"

	"github.com/marketwell/payhub/libs/datastore"
	uuid "github.com/satori/go.uuid"
)

// Beneficiary is the receiver of an outgoing transaction. Only the read
// surface needed for payouts lives here, registration is handled
// elsewhere in the back office.
type Beneficiary struct {
	ID            uuid.UUID            `json:"id" db:"id"`
	Name          string               `json:"name" db:"name"`
	WalletAccount datastore.NullString `json:"walletAccount" db:"wallet_account"`
	CreatedAt     time.Time            `json:"createdAt" db:"created_at"`
}
