package remote

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"cellarsync/internal/model"
)

// Cigar fetches a cigar catalog row by id.
func (c *Client) Cigar(ctx context.Context, id string) (*model.Cigar, error) {
	params := url.Values{}
	params.Set("select", "id,brand,line,vitola,wrapper,strength,photo_url,notes")
	params.Set("id", "eq."+id)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.restURL("cigars", params), nil)
	if err != nil {
		return nil, err
	}

	var rows []model.Cigar
	if err := c.do(req, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("cigar %s not found", id)
	}
	return &rows[0], nil
}

// Bottle fetches a bottle catalog row by id.
func (c *Client) Bottle(ctx context.Context, id string) (*model.Bottle, error) {
	params := url.Values{}
	params.Set("select", "id,brand,expression,type,proof,age_years,photo_url,notes")
	params.Set("id", "eq."+id)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.restURL("bottles", params), nil)
	if err != nil {
		return nil, err
	}

	var rows []model.Bottle
	if err := c.do(req, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("bottle %s not found", id)
	}
	return &rows[0], nil
}

// CreateCigar inserts a new cigar catalog row and returns it.
func (c *Client) CreateCigar(ctx context.Context, cigar model.Cigar) (*model.Cigar, error) {
	body, err := jsonBody(map[string]interface{}{
		"brand":    cigar.Brand,
		"line":     cigar.Line,
		"vitola":   cigar.Vitola,
		"wrapper":  cigar.Wrapper,
		"strength": cigar.Strength,
		"notes":    cigar.Notes,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.restURL("cigars", nil), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Prefer", "return=representation")

	var rows []model.Cigar
	if err := c.do(req, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("insert returned no row")
	}
	return &rows[0], nil
}

// CreateBottle inserts a new bottle catalog row and returns it.
func (c *Client) CreateBottle(ctx context.Context, bottle model.Bottle) (*model.Bottle, error) {
	body, err := jsonBody(map[string]interface{}{
		"brand":      bottle.Brand,
		"expression": bottle.Expression,
		"type":       bottle.Type,
		"proof":      bottle.Proof,
		"age_years":  bottle.AgeYears,
		"notes":      bottle.Notes,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.restURL("bottles", nil), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Prefer", "return=representation")

	var rows []model.Bottle
	if err := c.do(req, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("insert returned no row")
	}
	return &rows[0], nil
}

// SetPhotoURL updates the photo reference on a catalog row of the given kind.
func (c *Client) SetPhotoURL(ctx context.Context, kind model.Kind, refID, photoURL string) error {
	table := kind.Bucket() // table names match bucket names: cigars, bottles

	body, err := jsonBody(map[string]string{"photo_url": photoURL})
	if err != nil {
		return err
	}

	params := url.Values{}
	params.Set("id", "eq."+refID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, c.restURL(table, params), body)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}
