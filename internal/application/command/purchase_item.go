package command

import (
	"context"

	"github.com/owlet-learn/owlet-core/internal/application/profilestore"
	"github.com/owlet-learn/owlet-core/internal/domain/progress"
	"github.com/owlet-learn/owlet-core/internal/domain/shared"
	"github.com/owlet-learn/owlet-core/pkg/logger"
)

// PurchaseItemCommand spends coins on a shop item.
type PurchaseItemCommand struct {
	ItemID string
	Price  int
}

// Validate checks command invariants.
func (c PurchaseItemCommand) Validate() error {
	if c.ItemID == "" {
		return shared.NewDomainError("shop", "purchase_item", shared.ErrEmptyValue, "item id is required")
	}
	if c.Price < 0 {
		return shared.NewDomainError("shop", "purchase_item", shared.ErrNegativeValue, "price cannot be negative")
	}
	return nil
}

// PurchaseItemResult reports the outcome of a purchase attempt.
type PurchaseItemResult struct {
	// Purchased is false when a precondition failed; Reason then carries
	// the sentinel. Preconditions are outcomes, not errors.
	Purchased bool
	Reason    error
	Coins     int
}

// PurchaseItemHandler handles PurchaseItemCommand.
type PurchaseItemHandler struct {
	profiles *profilestore.Store
	bus      shared.EventPublisher
	logger   *logger.Logger
}

// NewPurchaseItemHandler creates a PurchaseItemHandler.
func NewPurchaseItemHandler(profiles *profilestore.Store, bus shared.EventPublisher, log *logger.Logger) *PurchaseItemHandler {
	if log == nil {
		log = logger.Default()
	}
	return &PurchaseItemHandler{
		profiles: profiles,
		bus:      bus,
		logger:   log.With(logger.Component("purchase_item")),
	}
}

// Handle attempts the purchase. Owning the item already or lacking coins is
// reported in the result, not as an error; errors are reserved for invalid
// commands.
func (h *PurchaseItemHandler) Handle(ctx context.Context, cmd PurchaseItemCommand) (*PurchaseItemResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	result := &PurchaseItemResult{}

	updated := h.profiles.Update(ctx, func(p *progress.Profile) {
		if p.HasPurchase(cmd.ItemID) {
			result.Reason = shared.ErrAlreadyOwned
			return
		}
		if p.Coins < cmd.Price {
			result.Reason = shared.ErrInsufficientCoins
			return
		}
		p.Coins -= cmd.Price
		p.Purchases = append(p.Purchases, cmd.ItemID)
		result.Purchased = true
	})

	result.Coins = updated.Coins

	if result.Purchased {
		if h.bus != nil {
			event := shared.NewItemPurchasedEvent("local", cmd.ItemID, cmd.Price)
			if err := h.bus.Publish(event); err != nil {
				h.logger.Warn("event publish failed", logger.Err(err))
			}
		}
		h.logger.Info("item purchased",
			logger.String("item_id", cmd.ItemID),
			logger.Coins(cmd.Price))
	}

	return result, nil
}
