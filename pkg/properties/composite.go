package properties

import (
	"io"

	"github.com/animalet/substvars/pkg/subst"
	"github.com/hashicorp/go-multierror"
)

// Composite answers from the first of its items that holds the key.
type Composite struct {
	items []subst.PropertyContainer
}

// NewComposite chains items in order. Nil items are skipped.
func NewComposite(items ...subst.PropertyContainer) *Composite {
	c := &Composite{items: make([]subst.PropertyContainer, 0, len(items))}
	for _, item := range items {
		if item != nil {
			c.items = append(c.items, item)
		}
	}
	return c
}

// Property returns the value from the first item holding key.
func (c *Composite) Property(key string) (string, bool) {
	for _, item := range c.items {
		if v, ok := item.Property(key); ok {
			return v, true
		}
	}
	return "", false
}

// Len returns the number of chained items.
func (c *Composite) Len() int {
	return len(c.items)
}

// Close closes every item that implements io.Closer and reports all failures together.
func (c *Composite) Close() error {
	var result *multierror.Error
	for _, item := range c.items {
		if closer, ok := item.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				result = multierror.Append(result, err)
			}
		}
	}
	return result.ErrorOrNil()
}
