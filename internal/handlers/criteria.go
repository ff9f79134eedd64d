package handlers

import (
	"fmt"
	"net/url"
	"slices"
	"time"

	"sales-dashboard/internal/errors"
	"sales-dashboard/internal/models"
)

// criteriaInput is the raw filter state. A nil slice means the widget was
// never touched and selects everything; an empty one selects nothing.
type criteriaInput struct {
	Products []string `json:"products"`
	Regions  []string `json:"regions"`
	Start    string   `json:"start"`
	End      string   `json:"end"`
}

func (in criteriaInput) resolve(opts models.FilterOptions) (models.FilterCriteria, error) {
	c := opts.Defaults()
	if in.Products != nil {
		c.Products = nonEmpty(in.Products)
	}
	if in.Regions != nil {
		c.Regions = nonEmpty(in.Regions)
	}

	if in.Start != "" {
		start, err := time.Parse(models.DateLayout, in.Start)
		if err != nil {
			return c, errors.ValidationWrap(err, fmt.Sprintf("invalid start date %q, expected YYYY-MM-DD", in.Start))
		}
		c.DateStart = start
	}
	if in.End != "" {
		end, err := time.Parse(models.DateLayout, in.End)
		if err != nil {
			return c, errors.ValidationWrap(err, fmt.Sprintf("invalid end date %q, expected YYYY-MM-DD", in.End))
		}
		c.DateEnd = end
	}

	if c.DateEnd.Before(c.DateStart) {
		return c, errors.Validation("start date must not be after end date")
	}
	return c, nil
}

// criteriaFromQuery reads repeated product and region parameters plus start
// and end. "product=" alone selects no products.
func criteriaFromQuery(q url.Values, opts models.FilterOptions) (models.FilterCriteria, error) {
	in := criteriaInput{
		Start: q.Get("start"),
		End:   q.Get("end"),
	}
	if values, ok := q["product"]; ok {
		in.Products = append([]string{}, values...)
	}
	if values, ok := q["region"]; ok {
		in.Regions = append([]string{}, values...)
	}
	return in.resolve(opts)
}

// encodeCriteria is the inverse of criteriaFromQuery.
func encodeCriteria(c models.FilterCriteria) url.Values {
	q := url.Values{}
	if len(c.Products) == 0 {
		q.Set("product", "")
	}
	for _, p := range c.Products {
		q.Add("product", p)
	}
	if len(c.Regions) == 0 {
		q.Set("region", "")
	}
	for _, r := range c.Regions {
		q.Add("region", r)
	}
	if !c.DateStart.IsZero() {
		q.Set("start", c.DateStart.Format(models.DateLayout))
	}
	if !c.DateEnd.IsZero() {
		q.Set("end", c.DateEnd.Format(models.DateLayout))
	}
	return q
}

func nonEmpty(values []string) []string {
	return slices.DeleteFunc(slices.Clone(values), func(s string) bool { return s == "" })
}
