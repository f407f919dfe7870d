// Package models defines the records moderated by the RentEase admin dashboard
// and the catalogue of resources that describes how each table is fetched,
// searched, filtered, edited, and moderated.
//
// # Records
//
// A [Record] is a schemaless row: a map of field name to value plus an
// immutable "id". Related rows fetched through a join are embedded under an
// alias (for example a product listing embeds "owner1_profile") and can be
// addressed with dotted paths such as "user1.name" through [Record.Lookup].
// Embedded records are read-only snapshots taken at load time.
//
// # Resources
//
// Every dashboard page is described by a [Resource]: the backing table, the
// joins to resolve, the fields searched by the free-text query, the field the
// status filter applies to, the fields an administrator may edit, and the
// moderation actions the page offers. [Resources] lists all six:
//
//   - profiles: user profiles
//   - products: product listings, approved or rejected by an admin
//   - donations: donation listings, approved or rejected by an admin
//   - damage-reports: reports filed after a rental, resolved by an admin
//   - queries: help-center queries
//   - shared-ownership: co-ownership agreements between two users
//
// Products and donations carry a [Notice] describing the notification rows and
// push messages sent to their owners after a moderation decision.
package models
