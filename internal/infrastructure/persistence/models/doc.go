// Package models contains the GORM persistence models for the purchasing
// tables. Domain types stay free of ORM tags; each model converts to and from
// its domain counterpart with ToDomain and FromDomain.
//
// The tables themselves are owned by the SQL migrations under migrations/.
// AutoMigrate is only used against SQLite in tests.
package models
