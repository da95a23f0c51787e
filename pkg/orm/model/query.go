package model

import (
	"context"

	"github.com/conduit-lang/datamap/pkg/orm/adapter"
	"github.com/conduit-lang/datamap/pkg/orm/schema"
)

// checkKeys validates every key of the given maps against the registry
func checkKeys(meta *schema.Model, maps ...map[string]any) error {
	var keys []string
	for _, m := range maps {
		for k := range m {
			keys = append(keys, k)
		}
	}
	return meta.CheckKeys(keys...)
}

// wireID converts an identifier with the id attribute's handler
func wireID(meta *schema.Model, id any) (any, error) {
	return toWire(meta, meta.IDField(), id)
}

// prepareWhere validates and converts a filter
func prepareWhere(meta *schema.Model, where map[string]any) (adapter.Where, error) {
	if err := checkKeys(meta, where); err != nil {
		return nil, err
	}
	return wireWhere(meta, where)
}

func (c *Class) one(b *binding, row adapter.Record, err error) (*Instance, error) {
	if err != nil || row == nil {
		return nil, err
	}
	return c.hydrate(b, row)
}

func (c *Class) some(b *binding, rows []adapter.Record, err error) (*Collection, error) {
	if err != nil {
		return nil, err
	}
	items := make([]*Instance, 0, len(rows))
	for _, row := range rows {
		inst, err := c.hydrate(b, row)
		if err != nil {
			return nil, err
		}
		items = append(items, inst)
	}
	return &Collection{class: c, Items: items}, nil
}

// One returns the first instance matching where, or nil when nothing matches
func (c *Class) One(ctx context.Context, where map[string]any, opts *adapter.SingleOptions) (*Instance, error) {
	b, err := c.bound()
	if err != nil {
		return nil, err
	}
	w, err := prepareWhere(b.meta, where)
	if err != nil {
		return nil, err
	}
	row, err := b.adapter.One(ctx, b.meta, w, opts)
	return c.one(b, row, err)
}

// OneByID returns the instance with the given identifier, or nil
func (c *Class) OneByID(ctx context.Context, id any, opts *adapter.SingleOptions) (*Instance, error) {
	b, err := c.bound()
	if err != nil {
		return nil, err
	}
	wid, err := wireID(b.meta, id)
	if err != nil {
		return nil, err
	}
	row, err := b.adapter.OneByID(ctx, b.meta, wid, opts)
	return c.one(b, row, err)
}

// OneBySQL runs a raw query and hydrates its first row, or returns nil
func (c *Class) OneBySQL(ctx context.Context, query string, params []any, opts *adapter.SingleOptions) (*Instance, error) {
	b, err := c.bound()
	if err != nil {
		return nil, err
	}
	row, err := b.adapter.OneBySQL(ctx, b.meta, query, params, opts)
	return c.one(b, row, err)
}

// Some returns the instances matching where in the requested order and page
func (c *Class) Some(ctx context.Context, where map[string]any, opts *adapter.MultiOptions) (*Collection, error) {
	b, err := c.bound()
	if err != nil {
		return nil, err
	}
	w, err := prepareWhere(b.meta, where)
	if err != nil {
		return nil, err
	}
	rows, err := b.adapter.Some(ctx, b.meta, w, opts)
	return c.some(b, rows, err)
}

// SomeBySQL runs a raw query and hydrates every row
func (c *Class) SomeBySQL(ctx context.Context, query string, params []any, opts *adapter.MultiOptions) (*Collection, error) {
	b, err := c.bound()
	if err != nil {
		return nil, err
	}
	rows, err := b.adapter.SomeBySQL(ctx, b.meta, query, params, opts)
	return c.some(b, rows, err)
}

// All returns every instance in the requested order and page
func (c *Class) All(ctx context.Context, opts *adapter.MultiOptions) (*Collection, error) {
	b, err := c.bound()
	if err != nil {
		return nil, err
	}
	rows, err := b.adapter.All(ctx, b.meta, opts)
	return c.some(b, rows, err)
}

// createPayload validates props, fills declared defaults and dehydrates
// the result
func createPayload(meta *schema.Model, props map[string]any) (adapter.Record, error) {
	if err := checkKeys(meta, props); err != nil {
		return nil, err
	}
	state, err := buildState(meta, applyDefaults(meta, props))
	if err != nil {
		return nil, err
	}
	return dehydrate(meta, state), nil
}

// CreateOne creates a record from props and returns it hydrated from the
// stored row
func (c *Class) CreateOne(ctx context.Context, props map[string]any) (*Instance, error) {
	b, err := c.bound()
	if err != nil {
		return nil, err
	}
	record, err := createPayload(b.meta, props)
	if err != nil {
		return nil, err
	}
	row, err := b.adapter.CreateRecord(ctx, b.meta, record)
	if err != nil {
		return nil, err
	}
	return c.hydrate(b, row)
}

// CreateSome creates one record per entry and returns the number created.
// Every entry is validated before the adapter is called.
func (c *Class) CreateSome(ctx context.Context, records []map[string]any) (int64, error) {
	b, err := c.bound()
	if err != nil {
		return 0, err
	}
	payload := make([]adapter.Record, 0, len(records))
	for _, props := range records {
		record, err := createPayload(b.meta, props)
		if err != nil {
			return 0, err
		}
		payload = append(payload, record)
	}
	return b.adapter.CreateSome(ctx, b.meta, payload)
}

// DeleteAll deletes every record
func (c *Class) DeleteAll(ctx context.Context) (int64, error) {
	b, err := c.bound()
	if err != nil {
		return 0, err
	}
	return b.adapter.DeleteAll(ctx, b.meta)
}

// DeleteSome deletes every record matching where
func (c *Class) DeleteSome(ctx context.Context, where map[string]any) (int64, error) {
	b, err := c.bound()
	if err != nil {
		return 0, err
	}
	w, err := prepareWhere(b.meta, where)
	if err != nil {
		return 0, err
	}
	return b.adapter.DeleteSome(ctx, b.meta, w)
}

// DeleteOne deletes the first record matching where
func (c *Class) DeleteOne(ctx context.Context, where map[string]any) (int64, error) {
	b, err := c.bound()
	if err != nil {
		return 0, err
	}
	w, err := prepareWhere(b.meta, where)
	if err != nil {
		return 0, err
	}
	return b.adapter.DeleteOne(ctx, b.meta, w)
}

// DeleteOneByID deletes the record with the given identifier
func (c *Class) DeleteOneByID(ctx context.Context, id any) (int64, error) {
	b, err := c.bound()
	if err != nil {
		return 0, err
	}
	wid, err := wireID(b.meta, id)
	if err != nil {
		return 0, err
	}
	return b.adapter.DeleteOneByID(ctx, b.meta, wid)
}

// prepareUpdate validates the keys of both maps before converting either
func prepareUpdate(meta *schema.Model, where, props map[string]any) (adapter.Where, adapter.Record, error) {
	if err := checkKeys(meta, where, props); err != nil {
		return nil, nil, err
	}
	w, err := wireWhere(meta, where)
	if err != nil {
		return nil, nil, err
	}
	p, err := wireProps(meta, props)
	if err != nil {
		return nil, nil, err
	}
	return w, p, nil
}

// UpdateAll applies props to every record
func (c *Class) UpdateAll(ctx context.Context, props map[string]any) (int64, error) {
	b, err := c.bound()
	if err != nil {
		return 0, err
	}
	_, p, err := prepareUpdate(b.meta, nil, props)
	if err != nil {
		return 0, err
	}
	return b.adapter.UpdateAll(ctx, b.meta, p)
}

// UpdateSome applies props to every record matching where
func (c *Class) UpdateSome(ctx context.Context, where, props map[string]any) (int64, error) {
	b, err := c.bound()
	if err != nil {
		return 0, err
	}
	w, p, err := prepareUpdate(b.meta, where, props)
	if err != nil {
		return 0, err
	}
	return b.adapter.UpdateSome(ctx, b.meta, w, p)
}

// UpdateOne applies props to the first record matching where
func (c *Class) UpdateOne(ctx context.Context, where, props map[string]any) (int64, error) {
	b, err := c.bound()
	if err != nil {
		return 0, err
	}
	w, p, err := prepareUpdate(b.meta, where, props)
	if err != nil {
		return 0, err
	}
	return b.adapter.UpdateOne(ctx, b.meta, w, p)
}

// UpdateOneByID applies props to the record with the given identifier
func (c *Class) UpdateOneByID(ctx context.Context, id any, props map[string]any) (int64, error) {
	b, err := c.bound()
	if err != nil {
		return 0, err
	}
	_, p, err := prepareUpdate(b.meta, nil, props)
	if err != nil {
		return 0, err
	}
	wid, err := wireID(b.meta, id)
	if err != nil {
		return 0, err
	}
	return b.adapter.UpdateOneByID(ctx, b.meta, wid, p)
}

// Truncate removes every record without reporting a count
func (c *Class) Truncate(ctx context.Context) error {
	b, err := c.bound()
	if err != nil {
		return err
	}
	return b.adapter.Truncate(ctx, b.meta)
}

// CountAll returns the number of records
func (c *Class) CountAll(ctx context.Context) (int64, error) {
	b, err := c.bound()
	if err != nil {
		return 0, err
	}
	return b.adapter.CountAll(ctx, b.meta)
}

// CountSome returns the number of records matching where
func (c *Class) CountSome(ctx context.Context, where map[string]any) (int64, error) {
	b, err := c.bound()
	if err != nil {
		return 0, err
	}
	w, err := prepareWhere(b.meta, where)
	if err != nil {
		return 0, err
	}
	return b.adapter.CountSome(ctx, b.meta, w)
}
