package sqlrepo

import (
	"github.com/shopspring/decimal"
)

type Customer struct {
	Id     int `db:";key"`
	Name   string
	Email  *string
	Active bool
	Notes  string `db:"-"`
	Tags   []string
}

type Order struct {
	Id         int `db:";key"`
	CustomerId int
	Total      decimal.Decimal
}

type Shipment struct {
	Id      int
	OrderId int
	Carrier string `db:"CarrierName"`
}

type RegionalAccount struct {
	Id      int    `db:";key"`
	Region  string `db:";pk"`
	Balance int
}

func (RegionalAccount) TableName() string { return "Account" }

type Invoice struct {
	Id     int `db:";key;identity"`
	Number string
	Amount decimal.Decimal
}

func (Invoice) TableSchema() string { return "billing" }

type Audit struct {
	CreatedBy string
}

type Widget struct {
	*Audit
	Id   int `db:";key"`
	Name string
}
