package storage

// Package storage provides the persistent key-value layer used by the quiz
// pipeline (schedules, the used-question log, and any cross-restart state).
//
// Semantics are whole-value: Get/Set move complete JSON blobs; there are no
// partial or field updates. Callers do read-modify-write on full objects.
//
// Drivers:
//   - "file": dependency-free backend (snapshot + append-only journal)
//   - "sqlite": SQLite database file (build tag "sqlite")
