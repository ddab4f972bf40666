// Package triggers implements the trigger-matching and configuration-mutation
// engine of the autoresponder bot.
//
// A Store holds an insertion-ordered, immutable snapshot of rules (a
// TriggerSet) behind an atomic pointer. Matching reads the current snapshot
// without locking; Admin mutations clone the snapshot, swap it in and persist
// it through a Backend while holding the store's writer lock, so a concurrent
// match pass never observes a half-applied change.
//
// Matching is first-match-wins over insertion order:
//
//	engine := triggers.NewEngine(store, triggers.NewSelector(nil), logger)
//	if m, ok := engine.CheckMessage(text); ok {
//		reply(m.Response)
//	}
package triggers
