package erp

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"poolprobe/internal/config"
	"poolprobe/internal/errors"
)

// TransactionStatus is the per-transaction status the vendor expects.
type TransactionStatus string

// Transaction statuses. Updates are also submitted as New; the keys decide.
const (
	StatusNew TransactionStatus = "New"
)

// Data element types.
const (
	ElementForm = "Form"
	ElementList = "List"
)

// TransactionSet is the body of a transaction submission.
type TransactionSet struct {
	Name          string        `json:"Name"`
	UseCodeValues bool          `json:"UseCodeValues"`
	Transactions  []Transaction `json:"Transactions"`
}

// Transaction is one record operation.
type Transaction struct {
	DataElements []DataElement     `json:"DataElements"`
	Status       TransactionStatus `json:"Status"`
}

// DataElement is one window section, named "<DATAWINDOW>.<name>".
type DataElement struct {
	Name string   `json:"Name"`
	Type string   `json:"Type"`
	Keys []string `json:"Keys"`
	Rows []Row    `json:"Rows"`
}

// Row is a set of field edits.
type Row struct {
	Edits             []Edit             `json:"Edits"`
	RelativeDateEdits []RelativeDateEdit `json:"RelativeDateEdits"`
}

// Edit sets one field. Value is a string or a number.
type Edit struct {
	Name  string `json:"Name"`
	Value any    `json:"Value"`
}

// RelativeDateEdit sets a date field relative to today.
type RelativeDateEdit struct {
	Name      string `json:"Name"`
	BaseValue string `json:"BaseValue"`
	Offset    int    `json:"Offset"`
	Unit      string `json:"Unit"`
}

// Validate checks the set before it is serialized so that a typo in a field
// name never reaches the vendor.
func (s *TransactionSet) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("%w: service name is empty", errors.ErrInvalidPayload)
	}
	if len(s.Transactions) == 0 {
		return fmt.Errorf("%w: no transactions", errors.ErrInvalidPayload)
	}
	for ti, tx := range s.Transactions {
		if tx.Status != StatusNew {
			return fmt.Errorf("%w: transaction %d has unknown status %q", errors.ErrInvalidPayload, ti, tx.Status)
		}
		if len(tx.DataElements) == 0 {
			return fmt.Errorf("%w: transaction %d has no data elements", errors.ErrInvalidPayload, ti)
		}
		for _, el := range tx.DataElements {
			if err := el.validate(); err != nil {
				return fmt.Errorf("%w: transaction %d: %w", errors.ErrInvalidPayload, ti, err)
			}
		}
	}
	return nil
}

func (e DataElement) validate() error {
	parts := strings.Split(e.Name, ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return fmt.Errorf("element name %q is not of the form WINDOW.name", e.Name)
	}
	if e.Type != ElementForm && e.Type != ElementList {
		return fmt.Errorf("element %s has unknown type %q", e.Name, e.Type)
	}
	for ri, row := range e.Rows {
		seen := make(map[string]struct{}, len(row.Edits))
		for _, ed := range row.Edits {
			if ed.Name == "" {
				return fmt.Errorf("element %s row %d has an unnamed edit", e.Name, ri)
			}
			if _, dup := seen[ed.Name]; dup {
				return fmt.Errorf("element %s row %d sets %s twice", e.Name, ri, ed.Name)
			}
			seen[ed.Name] = struct{}{}
			switch ed.Value.(type) {
			case string, float64, int, int64, bool:
			default:
				return fmt.Errorf("element %s field %s has unsupported value type %T", e.Name, ed.Name, ed.Value)
			}
		}
	}
	return nil
}

// Encode validates and marshals the set. Nil slices become [] because the
// vendor rejects null collections.
func (s *TransactionSet) Encode() ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	norm := *s
	norm.Transactions = make([]Transaction, len(s.Transactions))
	for i, tx := range s.Transactions {
		tx.DataElements = append([]DataElement(nil), tx.DataElements...)
		for j := range tx.DataElements {
			el := &tx.DataElements[j]
			if el.Keys == nil {
				el.Keys = []string{}
			}
			if el.Rows == nil {
				el.Rows = []Row{}
			}
			el.Rows = append([]Row(nil), el.Rows...)
			for k := range el.Rows {
				if el.Rows[k].Edits == nil {
					el.Rows[k].Edits = []Edit{}
				}
				if el.Rows[k].RelativeDateEdits == nil {
					el.Rows[k].RelativeDateEdits = []RelativeDateEdit{}
				}
			}
		}
		norm.Transactions[i] = tx
	}
	return json.Marshal(norm)
}

// SalesPricePage is the test record the probe creates: a supplier/product
// group price page that is safe to expire afterwards.
type SalesPricePage struct {
	Description       string
	PricePageType     string
	CompanyID         string
	SupplierID        float64
	ProductGroupID    string
	PricingMethod     string
	SourcePrice       string
	EffectiveDate     string
	ExpirationDate    string
	TotalingMethod    string
	TotalingBasis     string
	RowStatus         string
	CalculationMethod string
	CalculationValue  string
}

// NewSalesPricePage fills a page from the payload template with a description
// unique to now, e.g. SESSION-TEST-143005123456.
func NewSalesPricePage(tpl config.PayloadConfig, now time.Time) SalesPricePage {
	return SalesPricePage{
		Description:       UniqueDescription(tpl.DescriptionPrefix, now),
		PricePageType:     tpl.PricePageType,
		CompanyID:         tpl.CompanyID,
		SupplierID:        tpl.SupplierID,
		ProductGroupID:    tpl.ProductGroupID,
		PricingMethod:     tpl.PricingMethod,
		SourcePrice:       tpl.SourcePrice,
		EffectiveDate:     tpl.EffectiveDate,
		ExpirationDate:    tpl.ExpirationDate,
		TotalingMethod:    tpl.TotalingMethod,
		TotalingBasis:     tpl.TotalingBasis,
		RowStatus:         "Active",
		CalculationMethod: tpl.CalculationMethod,
		CalculationValue:  tpl.CalculationValue,
	}
}

// UniqueDescription is prefix + HHMMSS + microseconds.
func UniqueDescription(prefix string, now time.Time) string {
	return fmt.Sprintf("%s%s%06d", prefix, now.Format("150405"), now.Nanosecond()/1000)
}

// TransactionSet builds the create request for service.
func (p SalesPricePage) TransactionSet(service string) *TransactionSet {
	return &TransactionSet{
		Name:          service,
		UseCodeValues: false,
		Transactions: []Transaction{{
			Status: StatusNew,
			DataElements: []DataElement{
				{
					Name: "FORM.form",
					Type: ElementForm,
					Rows: []Row{{Edits: []Edit{
						{Name: "price_page_type_cd", Value: p.PricePageType},
						{Name: "company_id", Value: p.CompanyID},
						{Name: "supplier_id", Value: p.SupplierID},
						{Name: "product_group_id", Value: p.ProductGroupID},
						{Name: "description", Value: p.Description},
						{Name: "pricing_method_cd", Value: p.PricingMethod},
						{Name: "source_price_cd", Value: p.SourcePrice},
						{Name: "effective_date", Value: p.EffectiveDate},
						{Name: "expiration_date", Value: p.ExpirationDate},
						{Name: "totaling_method_cd", Value: p.TotalingMethod},
						{Name: "totaling_basis_cd", Value: p.TotalingBasis},
						{Name: "row_status_flag", Value: p.RowStatus},
					}}},
				},
				{
					Name: "VALUES.values",
					Type: ElementForm,
					Rows: []Row{{Edits: []Edit{
						{Name: "calculation_method_cd", Value: p.CalculationMethod},
						{Name: "calculation_value1", Value: p.CalculationValue},
					}}},
				},
			},
		}},
	}
}
