package models

import "github.com/shopspring/decimal"

// Balance is the materialized (item, location) quantity view. It is written
// only by the ledger package; every other component reads it.
type Balance struct {
	ItemID     int             `json:"item_id" db:"item_id"`
	LocationID int             `json:"location_id" db:"location_id"`
	Quantity   decimal.Decimal `json:"quantity" db:"quantity"`
}

type BalanceKey struct {
	ItemID     int
	LocationID int
}

func (b Balance) Key() BalanceKey {
	return BalanceKey{ItemID: b.ItemID, LocationID: b.LocationID}
}
