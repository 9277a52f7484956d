/*
Package catalog loads periods, employees and expense types from a YAML file.

PURPOSE:
  The period catalog is an external input: HR publishes the benefit cycles
  and their links once a year. A catalog file lets a deployment (or the
  benefitctl CLI) start from that data without an admin replaying it by hand.

FORMAT:
  periods:
    - id: p-2024
      label: "2024"
      accrual:    {start: 2023-01-01, end: 2023-12-31}
      submission: {start: 2024-01-11, end: 2024-01-20}
      next: p-2025
  employees:
    - {id: emp-1, name: Ana, ceiling: "1000.00"}
  expenseTypes:
    - {id: health, name: Health plan, classification: fixa, origins: [proprio, conjuge]}

SEE ALSO:
  - benefit/admin.go: The writes Seed goes through
*/
package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/warp/benefit-engine/benefit"
	"github.com/warp/benefit-engine/generic"
)

// Catalog is the decoded file.
type Catalog struct {
	Periods      []PeriodEntry      `yaml:"periods"`
	Employees    []EmployeeEntry    `yaml:"employees"`
	ExpenseTypes []ExpenseTypeEntry `yaml:"expenseTypes"`
}

type WindowEntry struct {
	Start Date `yaml:"start"`
	End   Date `yaml:"end"`
}

type PeriodEntry struct {
	ID         string      `yaml:"id"`
	Label      string      `yaml:"label"`
	Accrual    WindowEntry `yaml:"accrual"`
	Submission WindowEntry `yaml:"submission"`
	Status     string      `yaml:"status"`
	Next       string      `yaml:"next"`
}

type EmployeeEntry struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Ceiling     Amount `yaml:"ceiling"`
	IdentityRef string `yaml:"identityRef"`
}

type ExpenseTypeEntry struct {
	ID             string   `yaml:"id"`
	Name           string   `yaml:"name"`
	Classification string   `yaml:"classification"`
	Origins        []string `yaml:"origins"`
}

// Date decodes a YYYY-MM-DD scalar, quoted or not.
type Date struct{ generic.Date }

func (d *Date) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := generic.ParseDate(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	d.Date = parsed
	return nil
}

// Amount decodes a decimal scalar, quoted or not.
type Amount struct{ generic.Amount }

func (a *Amount) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := generic.ParseAmount(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	a.Amount = parsed
	return nil
}

// Load decodes a catalog. Unknown fields are rejected.
func Load(r io.Reader) (*Catalog, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var c Catalog
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("catalog: decode: %w", err)
	}
	return &c, nil
}

func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	return Load(bytes.NewReader(data))
}

// =============================================================================
// CONVERSION
// =============================================================================

// PeriodList converts the period entries, ordered so that every period comes
// after the period it links to.
func (c *Catalog) PeriodList() ([]benefit.Period, error) {
	byID := make(map[string]benefit.Period, len(c.Periods))
	for _, e := range c.Periods {
		p, err := e.period()
		if err != nil {
			return nil, err
		}
		if _, dup := byID[e.ID]; dup {
			return nil, generic.NewValidationError("periods", "duplicate period "+e.ID)
		}
		byID[e.ID] = p
	}

	ordered := make([]benefit.Period, 0, len(byID))
	state := make(map[string]int, len(byID)) // 1 visiting, 2 done
	var visit func(id string) error
	visit = func(id string) error {
		switch state[id] {
		case 1:
			return generic.NewValidationError("periods", "next-period cycle through "+id)
		case 2:
			return nil
		}
		state[id] = 1
		p := byID[id]
		if p.NextPeriodID != nil {
			if _, ok := byID[string(*p.NextPeriodID)]; ok {
				if err := visit(string(*p.NextPeriodID)); err != nil {
					return err
				}
			}
		}
		state[id] = 2
		ordered = append(ordered, p)
		return nil
	}
	for _, e := range c.Periods {
		if err := visit(e.ID); err != nil {
			return nil, err
		}
	}
	return ordered, nil
}

// Period returns the period with the given id and the period it links to.
func (c *Catalog) Period(id benefit.PeriodID) (*benefit.Period, *benefit.Period, error) {
	periods, err := c.PeriodList()
	if err != nil {
		return nil, nil, err
	}
	find := func(id benefit.PeriodID) *benefit.Period {
		for i := range periods {
			if periods[i].ID == id {
				return &periods[i]
			}
		}
		return nil
	}
	target := find(id)
	if target == nil {
		return nil, nil, &generic.NotFoundError{Entity: "period", ID: string(id)}
	}
	var next *benefit.Period
	if target.NextPeriodID != nil {
		next = find(*target.NextPeriodID)
	}
	return target, next, nil
}

func (e PeriodEntry) period() (benefit.Period, error) {
	p := benefit.Period{
		ID:         benefit.PeriodID(e.ID),
		Label:      e.Label,
		Accrual:    generic.Window{Start: e.Accrual.Start.Date, End: e.Accrual.End.Date},
		Submission: generic.Window{Start: e.Submission.Start.Date, End: e.Submission.End.Date},
		Status:     benefit.PeriodStatus(e.Status),
	}
	if p.Status == "" {
		p.Status = benefit.PeriodOpen
	}
	if e.Next != "" {
		next := benefit.PeriodID(e.Next)
		p.NextPeriodID = &next
	}
	if err := p.Validate(); err != nil {
		return p, fmt.Errorf("period %s: %w", e.ID, err)
	}
	return p, nil
}

func (e EmployeeEntry) employee() benefit.Employee {
	return benefit.Employee{
		ID:          benefit.EmployeeID(e.ID),
		Name:        e.Name,
		Ceiling:     e.Ceiling.Amount,
		IdentityRef: e.IdentityRef,
	}
}

func (e ExpenseTypeEntry) expenseType() benefit.ExpenseType {
	t := benefit.ExpenseType{
		ID:             benefit.ExpenseTypeID(e.ID),
		Name:           e.Name,
		Classification: benefit.Classification(e.Classification),
	}
	for _, o := range e.Origins {
		t.AllowedOrigins = append(t.AllowedOrigins, benefit.Origin(o))
	}
	return t
}

// =============================================================================
// SEEDING
// =============================================================================

// Admin is the subset of *benefit.ClaimService that Seed writes through.
type Admin interface {
	GetPeriod(ctx context.Context, id benefit.PeriodID) (*benefit.Period, error)
	SavePeriod(ctx context.Context, actor benefit.Actor, p benefit.Period) (*benefit.Period, error)
	GetEmployee(ctx context.Context, id benefit.EmployeeID) (*benefit.Employee, error)
	SaveEmployee(ctx context.Context, actor benefit.Actor, e benefit.Employee) (*benefit.Employee, error)
	GetExpenseType(ctx context.Context, id benefit.ExpenseTypeID) (*benefit.ExpenseType, error)
	SaveExpenseType(ctx context.Context, actor benefit.Actor, t benefit.ExpenseType) (*benefit.ExpenseType, error)
}

// SeedActor is the identity recorded in the audit trail for catalog writes.
var SeedActor = benefit.Actor{ID: "catalog", Roles: []string{benefit.RoleAdmin}}

// SeedResult counts the records written. Skipped counts employees and
// expense types left alone because the store already had them.
type SeedResult struct {
	Periods      int
	Employees    int
	ExpenseTypes int
	Skipped      int
}

// Seed upserts the periods of the catalog and inserts the employees and
// expense types the store does not know yet. A period already closed in the
// store stays closed, and an existing employee keeps the ceiling an admin
// gave it: the catalog is a starting point, not the source of truth.
func Seed(ctx context.Context, admin Admin, c *Catalog) (*SeedResult, error) {
	periods, err := c.PeriodList()
	if err != nil {
		return nil, err
	}

	res := &SeedResult{}
	for _, p := range periods {
		existing, err := admin.GetPeriod(ctx, p.ID)
		switch {
		case generic.IsNotFound(err):
		case err != nil:
			return res, err
		case existing.Status == benefit.PeriodClosed:
			p.Status = benefit.PeriodClosed
		}
		if _, err := admin.SavePeriod(ctx, SeedActor, p); err != nil {
			return res, fmt.Errorf("catalog: period %s: %w", p.ID, err)
		}
		res.Periods++
	}
	for _, e := range c.Employees {
		_, err := admin.GetEmployee(ctx, benefit.EmployeeID(e.ID))
		if err == nil {
			res.Skipped++
			continue
		}
		if !generic.IsNotFound(err) {
			return res, err
		}
		if _, err := admin.SaveEmployee(ctx, SeedActor, e.employee()); err != nil {
			return res, fmt.Errorf("catalog: employee %s: %w", e.ID, err)
		}
		res.Employees++
	}
	for _, e := range c.ExpenseTypes {
		_, err := admin.GetExpenseType(ctx, benefit.ExpenseTypeID(e.ID))
		if err == nil {
			res.Skipped++
			continue
		}
		if !generic.IsNotFound(err) {
			return res, err
		}
		if _, err := admin.SaveExpenseType(ctx, SeedActor, e.expenseType()); err != nil {
			return res, fmt.Errorf("catalog: expense type %s: %w", e.ID, err)
		}
		res.ExpenseTypes++
	}
	return res, nil
}
