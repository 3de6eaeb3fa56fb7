package menu

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ordervoice/voicemetrics/internal/cache"
	"github.com/ordervoice/voicemetrics/internal/storage"
	"github.com/ordervoice/voicemetrics/internal/types"
	"github.com/rs/zerolog"
)

// Provider serves the menu as prompt-ready text. Reads go through a TTL
// cache so session startup never hammers the table, and a fetch failure
// falls back to the last good menu rather than an empty prompt.
type Provider struct {
	cache  *cache.TTLCache[string]
	logger zerolog.Logger
}

// NewProvider creates a provider backed by store with the given cache TTL.
func NewProvider(store storage.Store, ttl time.Duration, logger zerolog.Logger) *Provider {
	p := &Provider{logger: logger}
	p.cache = cache.New[string](ttl, func(ctx context.Context) (string, error) {
		items, err := store.GetMenuItems()
		if err != nil {
			return "", fmt.Errorf("fetch menu items: %w", err)
		}
		if len(items) == 0 {
			logger.Warn().Msg("no menu items found")
			return "", nil
		}
		text := formatMenu(items)
		logger.Info().
			Int("items", len(items)).
			Int("chars", len(text)).
			Msg("menu loaded")
		return text, nil
	},
		cache.WithLogger[string](logger),
		cache.WithServeStale[string](true),
	)
	return p
}

// PromptText returns the formatted menu, refreshing the cache if needed.
// Never returns an error: a failed refresh serves the previous menu, and a
// cold failed cache serves an empty string.
func (p *Provider) PromptText(ctx context.Context) string {
	return p.cache.GetOrRefresh(ctx)
}

// Invalidate drops the cached menu so the next read fetches fresh data.
// Call after the menu table changes.
func (p *Provider) Invalidate() {
	p.cache.Invalidate()
}

// formatMenu renders items as a compact list an LLM system prompt can
// embed: a [Category] header per group, one "- Name: $price" line per
// item, blank line between groups. Scan order is not stable, so items are
// sorted by category then name first.
func formatMenu(items []types.MenuItem) string {
	sorted := make([]types.MenuItem, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Category != sorted[j].Category {
			return sorted[i].Category < sorted[j].Category
		}
		return sorted[i].Name < sorted[j].Name
	})

	var b strings.Builder
	currentCat := ""
	for _, item := range sorted {
		cat := item.Category
		if cat == "" {
			cat = "Other"
		}
		if cat != currentCat {
			if currentCat != "" {
				b.WriteString("\n")
			}
			fmt.Fprintf(&b, "[%s]\n", cat)
			currentCat = cat
		}
		fmt.Fprintf(&b, "- %s: $%.2f\n", item.Name, item.Price)
	}
	return strings.TrimRight(b.String(), "\n")
}
