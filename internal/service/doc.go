// Package service contains the storefront use cases. It orchestrates domain
// objects, the read-side stores and units of work from internal/store, and
// the credential gateway from internal/identity.
//
// Key components:
//
//   - Coordinator provisions and removes users across the credential store
//     and the domain store, compensating when the second half fails.
//   - PricingEngine validates promotions against their game and resolves the
//     effective price of a game at read time.
//   - GameService, PromotionService and UserService cover the catalog,
//     promotion and library use cases on top of the engine.
//
// Errors are classified with KindOf so delivery layers can map them without
// knowing every sentinel.
package service
