// Package receipt holds the invoice data model sent by the front-end and
// the pipeline that turns it into printer primitives.
package receipt

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/adcondev/print-agent/internal/layout"
)

// Amount is a decimal that upstream systems send either as a JSON number
// or as a numeric string. Non-numeric strings decode to zero.
type Amount float64

// UnmarshalJSON accepts numbers, numeric strings and null.
func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*a = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = Amount(layout.ParseAmount(s))
		return nil
	}
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		*a = 0
		return nil
	}
	*a = Amount(v)
	return nil
}

// Float returns the amount as a float64.
func (a Amount) Float() float64 { return float64(a) }

// Model is the invoice printed on a thermal receipt.
type Model struct {
	Organization Organization `json:"organization"`
	Invoice      Invoice      `json:"invoice"`
	Customer     *Customer    `json:"customer,omitempty"`
	Items        []LineItem   `json:"items"`
	Notes        []Note       `json:"notes,omitempty"`
}

// Organization is the header block of the receipt.
type Organization struct {
	Name         string `json:"name"`
	TaxID        string `json:"taxId,omitempty"`
	VATForm      string `json:"vatForm,omitempty"`
	Address      string `json:"address,omitempty"`
	Phone        string `json:"phone,omitempty"`
	Email        string `json:"email,omitempty"`
	CustomDomain string `json:"customDomain,omitempty"`
}

// Invoice identifies the document.
type Invoice struct {
	Number    string `json:"number"`
	CreatedAt string `json:"createdAt,omitempty"`
}

// Customer is the optional buyer block.
type Customer struct {
	Name      string    `json:"name,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	Addresses []Address `json:"addresses,omitempty"`
}

// Address is one postal address of a customer.
type Address struct {
	Street     string `json:"street,omitempty"`
	Area       string `json:"area,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
}

// String joins the non-empty parts with ", ".
func (a Address) String() string {
	parts := make([]string, 0, 5)
	for _, p := range []string{a.Street, a.Area, a.City, a.State, a.PostalCode} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// LineItem is one sold product.
type LineItem struct {
	Name        string `json:"name"`
	VariantName string `json:"variantName,omitempty"`
	Quantity    Amount `json:"quantity"`
	UnitPrice   Amount `json:"unitPrice"`
}

// DisplayName is "variant - name" when a variant exists.
func (i LineItem) DisplayName() string {
	if v := strings.TrimSpace(i.VariantName); v != "" {
		return v + " - " + i.Name
	}
	return i.Name
}

// Note is a free-text remark attached to the invoice.
type Note struct {
	Text             string `json:"text"`
	CreatedAt        string `json:"createdAt,omitempty"`
	Author           string `json:"author,omitempty"`
	VisibleOnInvoice bool   `json:"visibleOnInvoice"`
}

// ApplicationMethod tells whether a charge is already part of the prices.
type ApplicationMethod string

const (
	Inclusive ApplicationMethod = "inclusive"
	Exclusive ApplicationMethod = "exclusive"
)

// Totals are computed upstream; rendering only formats them.
type Totals struct {
	TotalQuantity Amount    `json:"totalQuantity"`
	Subtotal      Amount    `json:"subtotal"`
	Charges       []Charge  `json:"charges,omitempty"`
	GrandTotal    Amount    `json:"grandTotal"`
	Payments      []Payment `json:"payments,omitempty"`
	TotalPaid     Amount    `json:"totalPaid"`
	BalanceDue    Amount    `json:"balanceDue"`
}

// Charge is a tax, discount or fee line.
type Charge struct {
	Label             string            `json:"label"`
	CalculatedValue   Amount            `json:"calculatedValue"`
	ApplicationMethod ApplicationMethod `json:"applicationMethod"`
}

// Payment is one recorded payment.
type Payment struct {
	Method    string `json:"method"`
	Amount    Amount `json:"amount"`
	CreatedAt string `json:"createdAt,omitempty"`
	User      string `json:"user,omitempty"`
}
