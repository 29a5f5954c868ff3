// Package permissions holds the permission registry and the permission
// store.
//
// The registry maps (group, signature) pairs to permission definitions, each
// optionally carrying check/approve/reject hooks supplied at registration
// time. A permission path is "group.signature" split on the first dot only,
// so signatures may themselves contain dots ("Member.reset.password").
//
// The store is the durable side: member-to-permission assignments in
// Postgres, consumed through the Store interface so the authorization engine
// never touches SQL directly.
package permissions
