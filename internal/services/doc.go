// Package services contains the application services used by the CLI:
// registry maintenance, voting, dashboards and backups.
//
// Services read through a CachedReader and keep the query cache coherent:
// every write invalidates the affected collection and the classes derived
// from it before returning.
package services
