// Package itemsapi is a scanner test fixture.
package itemsapi

import (
	"context"

	"github.com/apigraph/apigraph"
)

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

type Item struct {
	ID     string            `json:"id"`
	Name   string            `json:"name"`
	Tags   []string          `json:"tags,omitempty"`
	Owner  *User             `json:"owner,omitempty"`
	Meta   map[string]string `json:"meta,omitempty"`
	Secret string            `json:"-"`

	hidden int
}

type User struct {
	ID      string `json:"id"`
	Role    Role   `json:"role"`
	Friends []User `json:"friends,omitempty"`
}

type Audit struct {
	CreatedAt string `json:"createdAt"`
}

type AuditedItem struct {
	Audit
	Item
}

type ListFilter struct {
	Role  Role `json:"role"`
	Limit int  `json:"limit,omitempty"`
}

type CreateItem struct {
	Name string `json:"name"`
}

type DB struct{}

type Q struct{}

func (d *DB) Query(model string) *Q { return &Q{} }

func (q *Q) Select(fields ...string) *Q { return q }

func (q *Q) Include(relations ...string) *Q { return q }

func (q *Q) Paginate() *Q { return q }

type Service struct {
	db *DB
}

func (s *Service) List(f ListFilter) ([]Item, error) {
	return exec(s.db.Query("Item").Select("id", "name").Include("owner").Paginate())
}

func exec(q *Q) ([]Item, error) {
	return nil, nil
}

//api:controller /items
type ItemsController struct {
	svc *Service
}

//api:get /{id}
func (c *ItemsController) Get(ctx context.Context, id string, expand apigraph.Query[bool]) (Item, error) {
	return Item{}, nil
}

//api:get /
func (c *ItemsController) List(q apigraph.Query[ListFilter]) ([]Item, error) {
	return c.svc.List(q.Value)
}

//api:post /
func (c *ItemsController) Create(input apigraph.Body[CreateItem], trace apigraph.Header[*string]) (Item, error) {
	return Item{}, nil
}

//api:get /search
func (c *ItemsController) Search(filter apigraph.DeepObject[ListFilter]) ([]Item, error) {
	return nil, nil
}

//api:get /audit
func (c *ItemsController) Audit(id string) (AuditedItem, error) {
	return AuditedItem{}, nil
}
