package models

type Item struct {
	ID                 int     `json:"id" db:"id"`
	Name               string  `json:"name" db:"name"`
	SKU                *string `json:"sku" db:"sku"`
	IsInventoryTracked bool    `json:"is_inventory_tracked" db:"is_inventory_tracked"`
}

func (i *Item) CreateLogView() AuditLog {
	return AuditLog{
		ResourceID:   i.ID,
		ResourceType: "item",
	}
}
