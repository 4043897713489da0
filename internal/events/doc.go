// Package events provides a small in-process publish/subscribe mechanism for
// domain events.
//
// Services emit events such as user.provisioned or provisioning.inconsistency
// without knowing who listens. Handlers subscribe to every event with
// RegisterHandler or to a single type with On.
package events
