package plans

import (
	"context"
	"errors"
	"fmt"
	"slices"
)

// Catalog is an immutable, validated set of plans.
type Catalog struct {
	byID    map[string]Plan
	ordered []Plan
}

// Load reads plans from src and validates them. The catalog must contain the
// free plan.
func Load(ctx context.Context, src Source) (*Catalog, error) {
	list, err := src.Load(ctx)
	if err != nil {
		return nil, err
	}
	return New(list...)
}

func New(list ...Plan) (*Catalog, error) {
	c := &Catalog{byID: make(map[string]Plan, len(list))}
	for _, p := range list {
		if err := validate(p); err != nil {
			return nil, err
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate plan %q", ErrInvalidPlan, p.ID)
		}
		if p.Currency == "" {
			p.Currency = "usd"
		}
		if p.Interval == "" {
			p.Interval = IntervalMonthly
			if p.Price.IsZero() {
				p.Interval = IntervalNone
			}
		}
		c.byID[p.ID] = p
		c.ordered = append(c.ordered, p)
	}
	if _, ok := c.byID[FreePlanID]; !ok {
		return nil, fmt.Errorf("%w: catalog has no %q plan", ErrInvalidPlan, FreePlanID)
	}
	slices.SortStableFunc(c.ordered, func(a, b Plan) int { return a.Price.Cmp(b.Price) })
	return c, nil
}

// MustNew is like New but panics on an invalid catalog.
func MustNew(list ...Plan) *Catalog {
	c, err := New(list...)
	if err != nil {
		panic(err)
	}
	return c
}

func validate(p Plan) error {
	switch {
	case p.ID == "":
		return fmt.Errorf("%w: empty id", ErrInvalidPlan)
	case p.Price.IsNegative():
		return fmt.Errorf("%w: %s has negative price", ErrInvalidPlan, p.ID)
	case p.Credits < 0 || p.CreditFloor < 0:
		return fmt.Errorf("%w: %s has negative credits", ErrInvalidPlan, p.ID)
	case p.CreditFloor > p.Credits:
		return fmt.Errorf("%w: %s floor exceeds allotment", ErrInvalidPlan, p.ID)
	case p.Price.IsPositive() && p.PriceID == "":
		return fmt.Errorf("%w: paid plan %s has no price id", ErrInvalidPlan, p.ID)
	}
	return nil
}

func (c *Catalog) Get(id string) (Plan, error) {
	p, ok := c.byID[id]
	if !ok {
		return Plan{}, errors.Join(ErrPlanNotFound, fmt.Errorf("plan %q", id))
	}
	return p, nil
}

// Free returns the fallback plan.
func (c *Catalog) Free() Plan {
	return c.byID[FreePlanID]
}

// ByPriceID finds the plan sold under a provider price id.
func (c *Catalog) ByPriceID(priceID string) (Plan, error) {
	for _, p := range c.ordered {
		if priceID != "" && p.PriceID == priceID {
			return p, nil
		}
	}
	return Plan{}, errors.Join(ErrPlanNotFound, fmt.Errorf("price %q", priceID))
}

// List returns all plans ordered by price.
func (c *Catalog) List() []Plan {
	return slices.Clone(c.ordered)
}
