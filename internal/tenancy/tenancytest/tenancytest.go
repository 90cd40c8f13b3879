// Package tenancytest provides in-memory implementations of the tenancy
// ports for tests.
package tenancytest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Strob0t/democrm/internal/domain"
	"github.com/Strob0t/democrm/internal/domain/tenant"
	"github.com/Strob0t/democrm/internal/tenancy"
)

// Directory is an in-memory tenancy.Registry.
type Directory struct {
	mu      sync.RWMutex
	tenants []tenant.Tenant
	domains []tenant.Domain

	// Set these to make the matching call fail.
	ListErr   error
	InsertErr error

	lookups int
}

// NewDirectory returns an empty Directory.
func NewDirectory() *Directory {
	return &Directory{}
}

// AddTenant registers a tenant named name with the given hostnames, the
// first one primary. Its partition is derived from name.
func (d *Directory) AddTenant(name string, hostnames ...string) tenant.Tenant {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := len(d.tenants) + 1
	t := tenant.Tenant{
		ID:               fmt.Sprintf("t-%d", n),
		Name:             name,
		SchemaName:       string(tenancy.DerivePartitionName(name)),
		AutoCreateSchema: true,
		CreatedAt:        time.Unix(int64(n), 0).UTC(),
	}
	d.tenants = append(d.tenants, t)
	for i, h := range hostnames {
		d.domains = append(d.domains, tenant.Domain{
			ID:        fmt.Sprintf("d-%d-%d", n, i),
			Hostname:  h,
			IsPrimary: i == 0,
			TenantID:  t.ID,
		})
	}
	return t
}

// Tenants returns a copy of the stored tenants.
func (d *Directory) Tenants() []tenant.Tenant {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]tenant.Tenant(nil), d.tenants...)
}

// Domains returns a copy of the stored domains.
func (d *Directory) Domains() []tenant.Domain {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]tenant.Domain(nil), d.domains...)
}

// HostnameLookups counts TenantByHostnamePrefix calls.
func (d *Directory) HostnameLookups() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lookups
}

func (d *Directory) TenantByHostnamePrefix(_ context.Context, prefix string) (*tenant.Tenant, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lookups++
	prefix = strings.ToLower(prefix)
	for _, dom := range d.domains {
		if strings.HasPrefix(strings.ToLower(dom.Hostname), prefix) {
			if t := d.byID(dom.TenantID); t != nil {
				return t, nil
			}
		}
	}
	return nil, fmt.Errorf("domain %q: %w", prefix, domain.ErrNotFound)
}

func (d *Directory) TenantBySchema(_ context.Context, schema string) (*tenant.Tenant, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for i := range d.tenants {
		if d.tenants[i].SchemaName == schema {
			t := d.tenants[i]
			return &t, nil
		}
	}
	return nil, fmt.Errorf("schema %q: %w", schema, domain.ErrNotFound)
}

func (d *Directory) TenantByName(_ context.Context, name string) (*tenant.Tenant, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for i := range d.tenants {
		if strings.EqualFold(d.tenants[i].Name, name) {
			t := d.tenants[i]
			return &t, nil
		}
	}
	return nil, fmt.Errorf("name %q: %w", name, domain.ErrNotFound)
}

func (d *Directory) ListTenants(_ context.Context) ([]tenant.Tenant, error) {
	if d.ListErr != nil {
		return nil, d.ListErr
	}
	return d.Tenants(), nil
}

func (d *Directory) InsertTenant(_ context.Context, t *tenant.Tenant, dom *tenant.Domain) error {
	if d.InsertErr != nil {
		return d.InsertErr
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.tenants {
		if d.tenants[i].SchemaName == t.SchemaName || strings.EqualFold(d.tenants[i].Name, t.Name) {
			return fmt.Errorf("insert tenant: %w", tenancy.ErrDuplicateTenant)
		}
	}
	for i := range d.domains {
		if strings.EqualFold(d.domains[i].Hostname, dom.Hostname) {
			return fmt.Errorf("insert domain %s: %w", dom.Hostname, tenancy.ErrDuplicateTenant)
		}
	}
	d.tenants = append(d.tenants, *t)
	d.domains = append(d.domains, *dom)
	return nil
}

// GetTenant returns the tenant with the given ID.
func (d *Directory) GetTenant(_ context.Context, id string) (*tenant.Tenant, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if t := d.byID(id); t != nil {
		return t, nil
	}
	return nil, fmt.Errorf("tenant %q: %w", id, domain.ErrNotFound)
}

// UpdateTenant replaces the stored tenant with the same ID.
func (d *Directory) UpdateTenant(_ context.Context, t *tenant.Tenant) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.tenants {
		if d.tenants[i].ID != t.ID && strings.EqualFold(d.tenants[i].Name, t.Name) {
			return fmt.Errorf("update tenant: %w", tenancy.ErrDuplicateTenant)
		}
	}
	for i := range d.tenants {
		if d.tenants[i].ID == t.ID {
			t.UpdatedAt = time.Now().UTC()
			d.tenants[i] = *t
			return nil
		}
	}
	return fmt.Errorf("tenant %q: %w", t.ID, domain.ErrNotFound)
}

// ListDomains returns the domains owned by tenantID.
func (d *Directory) ListDomains(_ context.Context, tenantID string) ([]tenant.Domain, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	domains := []tenant.Domain{}
	for _, dom := range d.domains {
		if dom.TenantID == tenantID {
			domains = append(domains, dom)
		}
	}
	return domains, nil
}

func (d *Directory) byID(id string) *tenant.Tenant {
	for i := range d.tenants {
		if d.tenants[i].ID == id {
			t := d.tenants[i]
			return &t
		}
	}
	return nil
}

// Connector is an in-memory tenancy.Connector whose connections track the
// partition they point at. Only partitions that exist can be bound.
type Connector struct {
	mu         sync.Mutex
	existing   map[tenancy.Partition]bool
	failSwitch map[tenancy.Partition]error
	open       int
	discarded  int

	// AcquireErr makes Acquire fail.
	AcquireErr error
}

// NewConnector returns a Connector on which Public and parts exist.
func NewConnector(parts ...tenancy.Partition) *Connector {
	c := &Connector{
		existing:   map[tenancy.Partition]bool{tenancy.Public: true},
		failSwitch: make(map[tenancy.Partition]error),
	}
	for _, p := range parts {
		c.existing[p] = true
	}
	return c
}

// FailSwitchTo makes every switch to p fail with err.
func (c *Connector) FailSwitchTo(p tenancy.Partition, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failSwitch[p] = err
}

// Open returns the number of acquired connections not yet returned.
func (c *Connector) Open() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

// Discarded returns the number of connections discarded.
func (c *Connector) Discarded() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.discarded
}

func (c *Connector) Acquire(_ context.Context) (tenancy.Conn, error) {
	if c.AcquireErr != nil {
		return nil, c.AcquireErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open++
	return &Conn{connector: c, current: tenancy.Public}, nil
}

func (c *Connector) create(p tenancy.Partition) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.existing[p] {
		return false
	}
	c.existing[p] = true
	return true
}

func (c *Connector) drop(p tenancy.Partition) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.existing, p)
}

// Exists reports whether partition p exists.
func (c *Connector) Exists(p tenancy.Partition) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.existing[p]
}

// Conn is a connection handed out by Connector.
type Conn struct {
	connector *Connector
	mu        sync.Mutex
	current   tenancy.Partition
	history   []tenancy.Partition
	done      bool
}

// Current returns the partition the connection points at.
func (c *Conn) Current() tenancy.Partition {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// History returns every partition the connection was switched to.
func (c *Conn) History() []tenancy.Partition {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]tenancy.Partition(nil), c.history...)
}

func (c *Conn) SwitchPartition(_ context.Context, p tenancy.Partition) error {
	c.connector.mu.Lock()
	exists := c.connector.existing[p]
	failErr := c.connector.failSwitch[p]
	c.connector.mu.Unlock()

	if failErr != nil {
		return fmt.Errorf("%w: %w", tenancy.ErrPartitionBinding, failErr)
	}
	if !exists {
		return fmt.Errorf("%w: schema %q does not exist", tenancy.ErrPartitionBinding, p)
	}
	c.mu.Lock()
	c.current = p
	c.history = append(c.history, p)
	c.mu.Unlock()
	return nil
}

func (c *Conn) Release() { c.finish(false) }

func (c *Conn) Discard() { c.finish(true) }

func (c *Conn) finish(discard bool) {
	c.mu.Lock()
	already := c.done
	c.done = true
	c.mu.Unlock()
	if already {
		return
	}
	c.connector.mu.Lock()
	c.connector.open--
	if discard {
		c.connector.discarded++
	}
	c.connector.mu.Unlock()
}

// CurrentPartition returns the partition of the connection bound in ctx,
// or "" when ctx carries no fake connection.
func CurrentPartition(ctx context.Context) tenancy.Partition {
	conn, ok := tenancy.ConnFromContext(ctx)
	if !ok {
		return ""
	}
	c, ok := conn.(*Conn)
	if !ok {
		return ""
	}
	return c.Current()
}

// Partitions is an in-memory tenancy.PartitionManager backed by a Connector.
type Partitions struct {
	connector *Connector

	// CreateErr makes CreatePartition fail.
	CreateErr error

	mu      sync.Mutex
	dropped []tenancy.Partition
}

// NewPartitions returns a manager that creates partitions on connector.
func NewPartitions(connector *Connector) *Partitions {
	return &Partitions{connector: connector}
}

func (p *Partitions) CreatePartition(_ context.Context, part tenancy.Partition) error {
	if p.CreateErr != nil {
		return p.CreateErr
	}
	if !p.connector.create(part) {
		return fmt.Errorf("create schema %s: %w", part, tenancy.ErrDuplicateTenant)
	}
	return nil
}

func (p *Partitions) DropPartition(_ context.Context, part tenancy.Partition) error {
	p.connector.drop(part)
	p.mu.Lock()
	p.dropped = append(p.dropped, part)
	p.mu.Unlock()
	return nil
}

// Dropped returns the partitions dropped so far.
func (p *Partitions) Dropped() []tenancy.Partition {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]tenancy.Partition(nil), p.dropped...)
}
