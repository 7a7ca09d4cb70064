package billing

import (
	"fmt"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Pricing holds the seat-tier price table. All monetary values are in
// centavos.
type Pricing struct {
	BaseFeeCents     int64 `yaml:"base_fee_cents"`
	FreeRegularSeats int   `yaml:"free_regular_seats"`
	FreeAdminSeats   int   `yaml:"free_admin_seats"`
	RegularSeatCents int64 `yaml:"regular_seat_cents"`
	AdminSeatCents   int64 `yaml:"admin_seat_cents"`
}

// DefaultPricing returns the standard plan: R$99.90 base covering 20 regular
// seats and 1 admin seat, R$7.90 per extra regular seat and R$49.90 per extra
// admin seat.
func DefaultPricing() Pricing {
	return Pricing{
		BaseFeeCents:     9990,
		FreeRegularSeats: 20,
		FreeAdminSeats:   1,
		RegularSeatCents: 790,
		AdminSeatCents:   4990,
	}
}

func (p Pricing) validate() error {
	if p.BaseFeeCents < 0 || p.RegularSeatCents < 0 || p.AdminSeatCents < 0 {
		return fmt.Errorf("pricing: negative amount")
	}
	if p.FreeRegularSeats < 0 || p.FreeAdminSeats < 0 {
		return fmt.Errorf("pricing: negative free allowance")
	}
	return nil
}

// LoadPricing reads a pricing override from a YAML file. Fields omitted in
// the file keep their default values.
func LoadPricing(path string) (Pricing, error) {
	pricing := DefaultPricing()

	data, err := os.ReadFile(path)
	if err != nil {
		return Pricing{}, fmt.Errorf("failed to read pricing file: %w", err)
	}
	if err := yaml.Unmarshal(data, &pricing); err != nil {
		return Pricing{}, fmt.Errorf("failed to parse pricing file: %w", err)
	}
	if err := pricing.validate(); err != nil {
		return Pricing{}, err
	}
	return pricing, nil
}

// PricingStore serves the current price table to concurrent readers and
// supports hot reload from a file.
type PricingStore struct {
	mu      sync.RWMutex
	current Pricing
}

// NewPricingStore creates a store seeded with the given pricing
func NewPricingStore(pricing Pricing) *PricingStore {
	return &PricingStore{current: pricing}
}

// Current returns the active price table
func (s *PricingStore) Current() Pricing {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Set replaces the active price table
func (s *PricingStore) Set(pricing Pricing) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = pricing
}

// Watch reloads the price table whenever the file changes. It blocks until
// stop is closed; run it in its own goroutine. Reload failures keep the
// previous table and are reported through onError.
func (s *PricingStore) Watch(path string, stop <-chan struct{}, onError func(error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create pricing watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return fmt.Errorf("failed to watch pricing file: %w", err)
	}

	for {
		select {
		case <-stop:
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			pricing, err := LoadPricing(path)
			if err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			s.Set(pricing)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			if onError != nil {
				onError(err)
			}
		}
	}
}
