// Package resource maps foreign handles to hosted wrappers.
//
// A guest never holds a Go pointer. It holds a Handle, an index into a
// Table owned by the host. Handle 0 is reserved and always invalid, so a
// guest can use it as "no object".
//
//	table := resource.NewTable()
//	h := table.Insert(resource.None, model)
//
//	v, err := resource.Lookup[*model.ListModel](table, h)
//
// # Borrows
//
// A handle is borrowed for the duration of a host call that uses it. A
// borrowed handle cannot be removed; Remove reports an outstanding borrow
// instead of tearing the wrapper down under its caller.
//
//	v, done, err := table.Borrow(h)
//	if err != nil {
//		return err
//	}
//	defer done()
//
// # Ownership
//
// Every entry records the handle of its parent. RemoveTree removes an entry
// after removing everything it owns, children first.
//
// # Observers
//
// Observers are told about creation, removal and borrows:
//
//	table.Subscribe(resource.ObserverFunc(func(e resource.Event) {
//		log.Printf("%s %d", e.Type, e.Handle)
//	}))
//
// Values implementing Closer are closed when removed. Entries are not
// collected automatically: the guest drops them, or the host calls Close
// when the guest instance goes away.
package resource
