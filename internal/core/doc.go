// Package core runs sync passes and data-quality checks over Kobo
// submissions.
//
// It holds all domain orchestration independent of transport: the web
// server, the CLI and the scheduler call the same [Service] methods.
//
// # Sync Passes
//
// A pass fetches every submission (or takes caller-supplied records), maps
// them into locations, surveyors, clients, surveys and responses, and writes
// the whole batch in one store transaction. The flow is:
//
//  1. Take the pass lock. A second concurrent pass fails with [ErrPassInProgress].
//  2. Evolve the schema so every table and column exists.
//  3. Fetch, then in incremental mode keep only records submitted strictly
//     after the newest stored submission.
//  4. Map the batch, and when enabled validate it concurrently.
//  5. Apply in dependency order inside [store.WithTx]; any failure rolls the
//     whole batch back.
//  6. Append data-quality issues after the entities commit.
//
// Locations and surveyors are insert-once. Clients, surveys and responses
// are overwritten on every pass with an incremented version; a survey's
// submission time and client never change once stored.
//
// # Data Quality
//
// [Service.CheckQuality] evaluates the rule catalogue and appends every
// issue to the audit log. [Service.ListIssues], [Service.IssueSummary] and
// [Service.ExportIssues] read it back.
//
// # Error Handling
//
// Technical errors are mapped to stable codes with [MapError]:
//
//   - SYNC001-SYNC002: pass lock and pass timeout
//   - FETCH001-FETCH003: Kobo authentication, availability, payload
//   - STORE001-STORE003: store connectivity, schema, rolled-back writes
//   - REQ001: malformed requests
package core
