// Package ziptype holds the entry model and error taxonomy shared by the
// archive engine packages. The root package re-exports everything here.
package ziptype
