package cart

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/glowmart/storefront/internal/money"
)

var ErrInvalidQuantity = errors.New("quantity must be at least 1")

// MirrorRepo is the remote copy of the cart, keyed by
// (user_id, product_id, variant_id). Writes to it are best-effort; the
// in-memory store stays authoritative.
type MirrorRepo interface {
	Upsert(ctx context.Context, userID string, l Line) error
	UpdateQuantity(ctx context.Context, userID, productID, variantID string, quantity int) error
	Remove(ctx context.Context, userID, productID, variantID string) error
	Clear(ctx context.Context, userID string) error
	List(ctx context.Context, userID string) ([]Line, error)
}

// Store is the single source of truth for one in-progress cart. All
// read-then-write cycles run under the mutex, so two rapid quantity updates
// on the same line cannot lose each other's write.
type Store struct {
	mu     sync.Mutex
	lines  []Line
	userID string
	mirror MirrorRepo
	path   string // snapshot file; "" disables persistence
	sfg    singleflight.Group
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// Attach binds the store to an authenticated user so mutations mirror to the
// remote copy. Call Rehydrate afterwards to reconcile the two.
func (s *Store) Attach(userID string, mirror MirrorRepo) {
	s.mu.Lock()
	s.userID = userID
	s.mirror = mirror
	s.mu.Unlock()
}

// AddItem merges into an existing (product, variant) line or inserts a new
// one with a fresh identity.
func (s *Store) AddItem(ctx context.Context, in LineInput) error {
	if in.Quantity < 1 {
		return ErrInvalidQuantity
	}

	s.mu.Lock()
	var merged Line
	found := false
	for i := range s.lines {
		if s.lines[i].ProductID == in.ProductID && s.lines[i].VariantID == in.VariantID {
			s.lines[i].Quantity += in.Quantity
			merged = s.lines[i]
			found = true
			break
		}
	}
	if !found {
		merged = Line{
			ID:        uuid.NewString(),
			ProductID: in.ProductID,
			VariantID: in.VariantID,
			Name:      in.Name,
			Image:     in.Image,
			Color:     in.Color,
			Size:      in.Size,
			UnitPrice: in.UnitPrice,
			Quantity:  in.Quantity,
		}
		s.lines = append(s.lines, merged)
	}
	s.saveLocked()
	s.mu.Unlock()

	s.mirrorAsync("upsert", func(ctx context.Context, m MirrorRepo, uid string) error {
		return m.Upsert(ctx, uid, merged)
	})
	return nil
}

// RemoveItem deletes the line with the given id. Unknown ids are a no-op.
func (s *Store) RemoveItem(ctx context.Context, id string) error {
	s.mu.Lock()
	var removed Line
	found := false
	for i := range s.lines {
		if s.lines[i].ID == id {
			removed = s.lines[i]
			s.lines = append(s.lines[:i], s.lines[i+1:]...)
			found = true
			break
		}
	}
	if found {
		s.saveLocked()
	}
	s.mu.Unlock()
	if !found {
		return nil
	}

	s.mirrorAsync("remove", func(ctx context.Context, m MirrorRepo, uid string) error {
		return m.Remove(ctx, uid, removed.ProductID, removed.VariantID)
	})
	return nil
}

// UpdateQuantity replaces a line's quantity. Quantities below 1 and unknown
// ids are no-ops.
func (s *Store) UpdateQuantity(ctx context.Context, id string, quantity int) error {
	if quantity < 1 {
		return nil
	}

	s.mu.Lock()
	var updated Line
	found := false
	for i := range s.lines {
		if s.lines[i].ID == id {
			s.lines[i].Quantity = quantity
			updated = s.lines[i]
			found = true
			break
		}
	}
	if found {
		s.saveLocked()
	}
	s.mu.Unlock()
	if !found {
		return nil
	}

	s.mirrorAsync("update", func(ctx context.Context, m MirrorRepo, uid string) error {
		return m.UpdateQuantity(ctx, uid, updated.ProductID, updated.VariantID, updated.Quantity)
	})
	return nil
}

// Clear empties the cart. Called once as the final step of a successful
// checkout; the remote delete is best-effort.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.lines = nil
	s.saveLocked()
	mirror, uid := s.mirror, s.userID
	s.mu.Unlock()

	if mirror != nil && uid != "" {
		if err := mirror.Clear(ctx, uid); err != nil {
			log.Printf("[cart] mirror clear failed for user %s: %v", uid, err)
		}
	}
	return nil
}

// Rehydrate loads the persisted snapshot and, when a session exists, merges
// the remote rows in. Local wins on conflict: a pre-authentication cart beats
// whatever an older device left behind. Concurrent calls collapse to one.
func (s *Store) Rehydrate(ctx context.Context) error {
	_, err, _ := s.sfg.Do("rehydrate", func() (interface{}, error) {
		s.mu.Lock()
		if len(s.lines) == 0 {
			s.loadLocked()
		}
		mirror, uid := s.mirror, s.userID
		s.mu.Unlock()

		if mirror == nil || uid == "" {
			return nil, nil
		}

		remote, err := mirror.List(ctx, uid)
		if err != nil {
			// local stays authoritative; reconcile on the next load
			log.Printf("[cart] rehydrate list failed for user %s: %v", uid, err)
			return nil, nil
		}

		s.mu.Lock()
		for _, r := range remote {
			if s.find(r.ProductID, r.VariantID) >= 0 {
				continue // local wins
			}
			r.ID = uuid.NewString()
			s.lines = append(s.lines, r)
		}
		merged := append([]Line(nil), s.lines...)
		s.saveLocked()
		s.mu.Unlock()

		// push the merged view back so the remote copy converges
		for _, l := range merged {
			if err := mirror.Upsert(ctx, uid, l); err != nil {
				log.Printf("[cart] rehydrate upsert failed for user %s: %v", uid, err)
			}
		}
		return nil, nil
	})
	return err
}

// Items returns a copy of the current lines.
func (s *Store) Items() []Line {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Line(nil), s.lines...)
}

// ItemCount is the sum of quantities over all lines, computed on read.
func (s *Store) ItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, l := range s.lines {
		n += l.Quantity
	}
	return n
}

// Subtotal is sum(unit price * quantity) over all lines, computed on read.
func (s *Store) Subtotal() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := decimal.Zero
	for _, l := range s.lines {
		price, err := money.Parse(l.UnitPrice)
		if err != nil {
			log.Printf("[cart] bad unit price on line %s: %v", l.ID, err)
			continue
		}
		total = total.Add(price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return total
}

func (s *Store) find(productID, variantID string) int {
	for i := range s.lines {
		if s.lines[i].ProductID == productID && s.lines[i].VariantID == variantID {
			return i
		}
	}
	return -1
}

// mirrorAsync runs a remote write in the background. Failures are logged and
// never roll back the local mutation.
func (s *Store) mirrorAsync(op string, fn func(ctx context.Context, m MirrorRepo, uid string) error) {
	s.mu.Lock()
	mirror, uid := s.mirror, s.userID
	s.mu.Unlock()
	if mirror == nil || uid == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := fn(ctx, mirror, uid); err != nil {
			log.Printf("[cart] mirror %s failed for user %s: %v", op, uid, err)
		}
	}()
}

func (s *Store) saveLocked() {
	if s.path == "" {
		return
	}
	data, err := json.Marshal(snapshot{Items: s.lines})
	if err != nil {
		log.Printf("[cart] snapshot marshal: %v", err)
		return
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		log.Printf("[cart] snapshot dir: %v", err)
		return
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		log.Printf("[cart] snapshot write: %v", err)
	}
}

func (s *Store) loadLocked() {
	if s.path == "" {
		return
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("[cart] snapshot read: %v", err)
		}
		return
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		log.Printf("[cart] snapshot decode: %v", err)
		return
	}
	s.lines = snap.Items
}
