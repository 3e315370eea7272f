// Package events defines the closed set of domain events RusTok emits and
// the envelope that carries them on the wire. New event kinds are added by
// extending the DomainEvent union and its dispatch table, never by
// introducing virtual dispatch over an open interface — the event catalog
// is meant to be a closed, reviewable namespace.
package events

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Sentinel validation errors. validate() methods wrap these with field
// context via fmt.Errorf so callers can still errors.Is against the kind.
var (
	ErrNilID          = errors.New("events: required id is nil")
	ErrNegativeAmount = errors.New("events: monetary amount is negative")
	ErrEmptyLocale    = errors.New("events: locale code is empty")
	ErrEmptyField     = errors.New("events: required field is empty")
)

// DomainEvent is the closed union of business facts the pipeline transports.
// Each variant is a small, self-contained struct carrying only IDs and
// primitive fields — never pointers to mutable records — so the envelope
// that wraps it can be serialized, replayed, and compared for equality
// without touching the database.
type DomainEvent interface {
	// EventType returns the stable dotted string identifying this variant
	// (e.g. "node.created"). Part of the closed <aggregate>.<verb> namespace.
	EventType() string
	// SchemaVersion returns this variant's schema version. Bumped whenever
	// a field is removed or retyped; adding an optional field is not a
	// breaking change and keeps the same version.
	SchemaVersion() int
	// Validate self-checks required IDs, non-negative amounts, and
	// non-empty locale codes. It never performs I/O.
	Validate() error
}

// --- Content events ---------------------------------------------------

// NodeCreated fires when a content node (post, page, ...) is created.
type NodeCreated struct {
	NodeID   uuid.UUID
	Kind     string
	Locale   string
	Title    string
	AuthorID uuid.UUID
}

func (NodeCreated) EventType() string   { return "node.created" }
func (NodeCreated) SchemaVersion() int  { return 1 }
func (e NodeCreated) Validate() error {
	if e.NodeID == uuid.Nil {
		return fmt.Errorf("NodeCreated.NodeID: %w", ErrNilID)
	}

	if e.Locale == "" {
		return fmt.Errorf("NodeCreated.Locale: %w", ErrEmptyLocale)
	}

	return nil
}

// NodeUpdated fires when a node's metadata changes (not its translated body).
type NodeUpdated struct {
	NodeID  uuid.UUID
	Version int
}

func (NodeUpdated) EventType() string  { return "node.updated" }
func (NodeUpdated) SchemaVersion() int { return 1 }
func (e NodeUpdated) Validate() error {
	if e.NodeID == uuid.Nil {
		return fmt.Errorf("NodeUpdated.NodeID: %w", ErrNilID)
	}

	return nil
}

// NodePublished fires when a node transitions to the published state.
type NodePublished struct {
	NodeID uuid.UUID
	Locale string
}

func (NodePublished) EventType() string  { return "node.published" }
func (NodePublished) SchemaVersion() int { return 1 }
func (e NodePublished) Validate() error {
	if e.NodeID == uuid.Nil {
		return fmt.Errorf("NodePublished.NodeID: %w", ErrNilID)
	}

	return nil
}

// NodeDeleted fires on soft delete; the row remains with deleted_at set.
type NodeDeleted struct {
	NodeID uuid.UUID
}

func (NodeDeleted) EventType() string  { return "node.deleted" }
func (NodeDeleted) SchemaVersion() int { return 1 }
func (e NodeDeleted) Validate() error {
	if e.NodeID == uuid.Nil {
		return fmt.Errorf("NodeDeleted.NodeID: %w", ErrNilID)
	}

	return nil
}

// TranslationUpdated fires when a node's per-locale body changes.
type TranslationUpdated struct {
	NodeID uuid.UUID
	Locale string
	Body   string
}

func (TranslationUpdated) EventType() string  { return "node.translation_updated" }
func (TranslationUpdated) SchemaVersion() int { return 1 }
func (e TranslationUpdated) Validate() error {
	if e.NodeID == uuid.Nil {
		return fmt.Errorf("TranslationUpdated.NodeID: %w", ErrNilID)
	}

	if e.Locale == "" {
		return fmt.Errorf("TranslationUpdated.Locale: %w", ErrEmptyLocale)
	}

	return nil
}

// TagAttached fires when a tag is attached to a node.
type TagAttached struct {
	NodeID uuid.UUID
	TagID  uuid.UUID
}

func (TagAttached) EventType() string  { return "node.tag_attached" }
func (TagAttached) SchemaVersion() int { return 1 }
func (e TagAttached) Validate() error {
	if e.NodeID == uuid.Nil {
		return fmt.Errorf("TagAttached.NodeID: %w", ErrNilID)
	}

	if e.TagID == uuid.Nil {
		return fmt.Errorf("TagAttached.TagID: %w", ErrNilID)
	}

	return nil
}

// TagDetached fires when a tag is removed from a node.
type TagDetached struct {
	NodeID uuid.UUID
	TagID  uuid.UUID
}

func (TagDetached) EventType() string  { return "node.tag_detached" }
func (TagDetached) SchemaVersion() int { return 1 }
func (e TagDetached) Validate() error {
	if e.NodeID == uuid.Nil {
		return fmt.Errorf("TagDetached.NodeID: %w", ErrNilID)
	}

	if e.TagID == uuid.Nil {
		return fmt.Errorf("TagDetached.TagID: %w", ErrNilID)
	}

	return nil
}

// CategoryChanged fires when a node moves to a different category.
type CategoryChanged struct {
	NodeID        uuid.UUID
	OldCategoryID uuid.UUID
	NewCategoryID uuid.UUID
}

func (CategoryChanged) EventType() string  { return "node.category_changed" }
func (CategoryChanged) SchemaVersion() int { return 1 }
func (e CategoryChanged) Validate() error {
	if e.NodeID == uuid.Nil {
		return fmt.Errorf("CategoryChanged.NodeID: %w", ErrNilID)
	}

	if e.NewCategoryID == uuid.Nil {
		return fmt.Errorf("CategoryChanged.NewCategoryID: %w", ErrNilID)
	}

	return nil
}

// --- Commerce events ----------------------------------------------------

// ProductCreated fires when a product is created.
type ProductCreated struct {
	ProductID uuid.UUID
	SKU       string
	Name      string
}

func (ProductCreated) EventType() string  { return "product.created" }
func (ProductCreated) SchemaVersion() int { return 1 }
func (e ProductCreated) Validate() error {
	if e.ProductID == uuid.Nil {
		return fmt.Errorf("ProductCreated.ProductID: %w", ErrNilID)
	}

	if e.SKU == "" {
		return fmt.Errorf("ProductCreated.SKU: %w", ErrEmptyField)
	}

	return nil
}

// InventoryUpdated fires when available stock changes for a product.
type InventoryUpdated struct {
	ProductID uuid.UUID
	Delta     int
	NewLevel  int
}

func (InventoryUpdated) EventType() string  { return "inventory.updated" }
func (InventoryUpdated) SchemaVersion() int { return 1 }
func (e InventoryUpdated) Validate() error {
	if e.ProductID == uuid.Nil {
		return fmt.Errorf("InventoryUpdated.ProductID: %w", ErrNilID)
	}

	if e.NewLevel < 0 {
		return fmt.Errorf("InventoryUpdated.NewLevel: %w", ErrNegativeAmount)
	}

	return nil
}

// InventoryLow fires when available stock crosses below a reorder threshold.
type InventoryLow struct {
	ProductID uuid.UUID
	Level     int
	Threshold int
}

func (InventoryLow) EventType() string  { return "inventory.low" }
func (InventoryLow) SchemaVersion() int { return 1 }
func (e InventoryLow) Validate() error {
	if e.ProductID == uuid.Nil {
		return fmt.Errorf("InventoryLow.ProductID: %w", ErrNilID)
	}

	if e.Level < 0 {
		return fmt.Errorf("InventoryLow.Level: %w", ErrNegativeAmount)
	}

	return nil
}

// PriceUpdated fires when a product's listed price changes. Amounts use
// decimal.Decimal so accumulated rounding never drifts the read model from
// the price the customer was actually charged.
type PriceUpdated struct {
	ProductID uuid.UUID
	OldPrice  decimal.Decimal
	NewPrice  decimal.Decimal
	Currency  string
}

func (PriceUpdated) EventType() string  { return "product.price_updated" }
func (PriceUpdated) SchemaVersion() int { return 1 }
func (e PriceUpdated) Validate() error {
	if e.ProductID == uuid.Nil {
		return fmt.Errorf("PriceUpdated.ProductID: %w", ErrNilID)
	}

	if e.NewPrice.IsNegative() {
		return fmt.Errorf("PriceUpdated.NewPrice: %w", ErrNegativeAmount)
	}

	if e.Currency == "" {
		return fmt.Errorf("PriceUpdated.Currency: %w", ErrEmptyField)
	}

	return nil
}

// OrderPlaced fires when a commerce order is placed.
type OrderPlaced struct {
	OrderID  uuid.UUID
	BuyerID  uuid.UUID
	Total    decimal.Decimal
	Currency string
}

func (OrderPlaced) EventType() string  { return "order.placed" }
func (OrderPlaced) SchemaVersion() int { return 1 }
func (e OrderPlaced) Validate() error {
	if e.OrderID == uuid.Nil {
		return fmt.Errorf("OrderPlaced.OrderID: %w", ErrNilID)
	}

	if e.Total.IsNegative() {
		return fmt.Errorf("OrderPlaced.Total: %w", ErrNegativeAmount)
	}

	if e.Currency == "" {
		return fmt.Errorf("OrderPlaced.Currency: %w", ErrEmptyField)
	}

	return nil
}

// --- Identity / tenancy / RBAC events ------------------------------------

// UserRegistered fires when a new user account is created.
type UserRegistered struct {
	UserID uuid.UUID
	Email  string
}

func (UserRegistered) EventType() string  { return "user.registered" }
func (UserRegistered) SchemaVersion() int { return 1 }
func (e UserRegistered) Validate() error {
	if e.UserID == uuid.Nil {
		return fmt.Errorf("UserRegistered.UserID: %w", ErrNilID)
	}

	if e.Email == "" {
		return fmt.Errorf("UserRegistered.Email: %w", ErrEmptyField)
	}

	return nil
}

// UserLoggedIn fires on successful authentication.
type UserLoggedIn struct {
	UserID uuid.UUID
}

func (UserLoggedIn) EventType() string  { return "user.logged_in" }
func (UserLoggedIn) SchemaVersion() int { return 1 }
func (e UserLoggedIn) Validate() error {
	if e.UserID == uuid.Nil {
		return fmt.Errorf("UserLoggedIn.UserID: %w", ErrNilID)
	}

	return nil
}

// TenantCreated fires when a new tenant is provisioned.
type TenantCreated struct {
	NewTenantID uuid.UUID
	Slug        string
	Domain      string
}

func (TenantCreated) EventType() string  { return "tenant.created" }
func (TenantCreated) SchemaVersion() int { return 1 }
func (e TenantCreated) Validate() error {
	if e.NewTenantID == uuid.Nil {
		return fmt.Errorf("TenantCreated.NewTenantID: %w", ErrNilID)
	}

	if e.Slug == "" {
		return fmt.Errorf("TenantCreated.Slug: %w", ErrEmptyField)
	}

	return nil
}

// ReindexRequested fires when an operator asks for a full rebuild of a
// projector's read model (§4.10 backfill command).
type ReindexRequested struct {
	Indexer string
}

func (ReindexRequested) EventType() string  { return "system.reindex_requested" }
func (ReindexRequested) SchemaVersion() int { return 1 }
func (e ReindexRequested) Validate() error {
	if e.Indexer == "" {
		return fmt.Errorf("ReindexRequested.Indexer: %w", ErrEmptyField)
	}

	return nil
}

// RBACAssignmentChanged fires when a role is granted or revoked for a user
// within a tenant. The pipeline only carries the IDs; policy evaluation
// itself is an external collaborator.
type RBACAssignmentChanged struct {
	UserID  uuid.UUID
	RoleID  uuid.UUID
	Granted bool
}

func (RBACAssignmentChanged) EventType() string  { return "rbac.assignment_changed" }
func (RBACAssignmentChanged) SchemaVersion() int { return 1 }
func (e RBACAssignmentChanged) Validate() error {
	if e.UserID == uuid.Nil {
		return fmt.Errorf("RBACAssignmentChanged.UserID: %w", ErrNilID)
	}

	if e.RoleID == uuid.Nil {
		return fmt.Errorf("RBACAssignmentChanged.RoleID: %w", ErrNilID)
	}

	return nil
}
