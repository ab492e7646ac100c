// Package cli implements the ballotkeeper command line: a cobra command tree
// over the registry, voting, dashboard and backup services, plus an
// interactive shell that keeps one store and cache open across commands.
package cli
